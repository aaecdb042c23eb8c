package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumenlms/announce-api/internal/models"
	"github.com/lumenlms/announce-api/pkg/storage"
)

type mockAckSource struct {
	announcement *models.Announcement
	records      []models.Acknowledgment
}

func (m *mockAckSource) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	return m.announcement, nil
}

func (m *mockAckSource) ListAcknowledgments(ctx context.Context, id string, limit, offset int) ([]models.Acknowledgment, int, error) {
	if offset >= len(m.records) {
		return nil, len(m.records), nil
	}
	end := offset + limit
	if end > len(m.records) {
		end = len(m.records)
	}
	return m.records[offset:end], len(m.records), nil
}

type memoryStorage struct {
	files map[string][]byte
}

func (m *memoryStorage) Save(filename string, data []byte) (string, error) {
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[filename] = data
	return filename, nil
}

func (m *memoryStorage) Open(filename string) (*os.File, error) { return nil, os.ErrNotExist }

func (m *memoryStorage) Delete(filename string) error {
	delete(m.files, filename)
	return nil
}

func (m *memoryStorage) CleanupOlderThan(ttl time.Duration) ([]string, error) { return nil, nil }

func TestExportServiceGenerateCSV(t *testing.T) {
	source := &mockAckSource{
		announcement: &models.Announcement{ID: "a1", Title: "Exam week"},
		records: []models.Acknowledgment{
			{AnnouncementID: "a1", UserEmail: "one@example.com", Interaction: models.InteractionAcknowledged, InteractedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
			{AnnouncementID: "a1", UserEmail: "two@example.com", Interaction: models.InteractionDismissed, InteractedAt: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)},
		},
	}
	store := &memoryStorage{}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(source, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), nil, nil)

	job := &models.ExportJob{ID: "job-1", Params: models.ExportJobParams{AnnouncementID: "a1", Format: models.ExportFormatCSV}}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.Equal(t, models.ExportFormatCSV, result.Format)

	require.Len(t, store.files, 1)
	payload := store.files[result.RelativePath]
	content := string(payload)
	assert.Contains(t, content, "one@example.com")
	assert.Contains(t, content, "DISMISSED")

	jobID, relPath, _, err := signer.Parse(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceGeneratePDF(t *testing.T) {
	source := &mockAckSource{
		announcement: &models.Announcement{ID: "a1", Title: "Exam week"},
		records: []models.Acknowledgment{
			{AnnouncementID: "a1", UserEmail: "one@example.com", Interaction: models.InteractionAcknowledged, InteractedAt: time.Now().UTC()},
		},
	}
	store := &memoryStorage{}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(source, store, signer, ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop(), nil, nil)

	job := &models.ExportJob{ID: "job-2", Params: models.ExportJobParams{AnnouncementID: "a1", Format: models.ExportFormatPDF}}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)

	payload := store.files[result.RelativePath]
	require.NotEmpty(t, payload)
	assert.True(t, strings.HasPrefix(string(payload[:5]), "%PDF-"))
}

func TestExportServiceGenerateUnknownFormat(t *testing.T) {
	source := &mockAckSource{announcement: &models.Announcement{ID: "a1"}}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(source, &memoryStorage{}, signer, ExportConfig{}, zap.NewNop(), nil, nil)

	job := &models.ExportJob{ID: "job-3", Params: models.ExportJobParams{AnnouncementID: "a1", Format: models.ExportFormat("xlsx")}}
	_, err := svc.Generate(context.Background(), job)
	require.Error(t, err)
}
