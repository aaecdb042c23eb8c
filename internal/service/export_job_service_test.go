package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumenlms/announce-api/internal/models"
	"github.com/lumenlms/announce-api/internal/repository"
	"github.com/lumenlms/announce-api/pkg/jobs"
)

type mockExportJobStore struct {
	items   map[string]*models.ExportJob
	updates []repository.UpdateExportJobParams
	nextID  int
}

func newMockExportJobStore() *mockExportJobStore {
	return &mockExportJobStore{items: make(map[string]*models.ExportJob)}
}

func (m *mockExportJobStore) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		m.nextID++
		job.ID = "job-1"
	}
	cp := *job
	m.items[job.ID] = &cp
	return nil
}

func (m *mockExportJobStore) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	if job, ok := m.items[id]; ok {
		cp := *job
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExportJobStore) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	m.updates = append(m.updates, params)
	job, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockExportJobStore) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	out := make([]models.ExportJob, 0)
	for _, job := range m.items {
		if job.Status == models.ExportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *mockExportJobStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error) {
	return nil, nil
}

type mockAnnouncementLoader struct {
	items map[string]*models.Announcement
}

func (m *mockAnnouncementLoader) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	if ann, ok := m.items[id]; ok {
		return ann, nil
	}
	return nil, sql.ErrNoRows
}

type mockDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockGenerator struct {
	result *ExportResult
	err    error
}

func (m *mockGenerator) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	return m.result, m.err
}

func newExportJobFixture() (*ExportJobService, *mockExportJobStore, *mockDispatcher) {
	store := newMockExportJobStore()
	loader := &mockAnnouncementLoader{items: map[string]*models.Announcement{
		"a1": {ID: "a1", AuthorEmail: "author@example.com", Title: "Exam week"},
	}}
	queue := &mockDispatcher{}
	svc := NewExportJobService(store, loader, queue, nil, zap.NewNop(), ExportJobServiceConfig{})
	return svc, store, queue
}

func TestCreateExportJob(t *testing.T) {
	svc, store, queue := newExportJobFixture()

	resp, err := svc.CreateJob(context.Background(), "a1", models.ExportFormatCSV, teacherClaims("author@example.com"))
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)
	assert.Len(t, store.items, 1)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "acknowledgment_export", queue.enqueued[0].Type)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)
}

func TestCreateExportJobRejectsUnknownFormat(t *testing.T) {
	svc, _, _ := newExportJobFixture()

	_, err := svc.CreateJob(context.Background(), "a1", models.ExportFormat("xlsx"), teacherClaims("author@example.com"))
	require.Error(t, err)
	assert.Equal(t, 400, statusOf(t, err))
}

func TestCreateExportJobForbiddenForNonAuthor(t *testing.T) {
	svc, _, _ := newExportJobFixture()

	_, err := svc.CreateJob(context.Background(), "a1", models.ExportFormatCSV, teacherClaims("other@example.com"))
	require.Error(t, err)
	assert.Equal(t, 403, statusOf(t, err))

	_, err = svc.CreateJob(context.Background(), "a1", models.ExportFormatCSV, adminClaims("admin@example.com"))
	require.NoError(t, err)
}

func TestCreateExportJobMarksFailedOnEnqueueError(t *testing.T) {
	svc, store, queue := newExportJobFixture()
	queue.err = errors.New("queue stopped")

	_, err := svc.CreateJob(context.Background(), "a1", models.ExportFormatPDF, teacherClaims("author@example.com"))
	require.Error(t, err)
	require.Len(t, store.items, 1)
	for _, job := range store.items {
		assert.Equal(t, models.ExportStatusFailed, job.Status)
	}
}

func TestGetExportJobStatusOwnership(t *testing.T) {
	svc, store, _ := newExportJobFixture()
	store.items["job-1"] = &models.ExportJob{ID: "job-1", Status: models.ExportStatusProcessing, CreatedBy: "author@example.com"}

	resp, err := svc.GetStatus(context.Background(), "job-1", teacherClaims("author@example.com"))
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusProcessing, resp.Status)

	_, err = svc.GetStatus(context.Background(), "job-1", teacherClaims("other@example.com"))
	require.Error(t, err)
	assert.Equal(t, 403, statusOf(t, err))
}

func TestExportWorkerHandleSuccess(t *testing.T) {
	store := newMockExportJobStore()
	store.items["job-1"] = &models.ExportJob{
		ID:     "job-1",
		Status: models.ExportStatusQueued,
		Params: models.ExportJobParams{AnnouncementID: "a1", Format: models.ExportFormatCSV},
	}
	generator := &mockGenerator{result: &ExportResult{URL: "/api/v1/export/tok"}}
	worker := NewExportWorker(store, generator, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Type: "acknowledgment_export"}))
	assert.Equal(t, models.ExportStatusFinished, store.items["job-1"].Status)
	require.NotNil(t, store.items["job-1"].ResultURL)
	assert.Equal(t, "/api/v1/export/tok", *store.items["job-1"].ResultURL)
}

func TestExportWorkerHandleFailure(t *testing.T) {
	store := newMockExportJobStore()
	store.items["job-1"] = &models.ExportJob{
		ID:     "job-1",
		Status: models.ExportStatusQueued,
		Params: models.ExportJobParams{AnnouncementID: "a1", Format: models.ExportFormatPDF},
	}
	generator := &mockGenerator{err: errors.New("render failed")}
	worker := NewExportWorker(store, generator, zap.NewNop())

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Type: "acknowledgment_export"}))
	assert.Equal(t, models.ExportStatusFailed, store.items["job-1"].Status)
	require.NotNil(t, store.items["job-1"].ErrorMessage)
}

func TestExportWorkerSkipsFinishedJobs(t *testing.T) {
	store := newMockExportJobStore()
	store.items["job-1"] = &models.ExportJob{ID: "job-1", Status: models.ExportStatusFinished}
	generator := &mockGenerator{err: errors.New("should not run")}
	worker := NewExportWorker(store, generator, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	assert.Empty(t, store.updates)
}
