package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlms/announce-api/internal/models"
)

func exportJobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "params", "status", "result_url", "created_by", "created_at", "finished_at", "error_message"})
}

func TestExportRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExportRepository(db)

	mock.ExpectExec("INSERT INTO export_jobs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ExportJob{
		Params:    models.ExportJobParams{AnnouncementID: "a1", Format: models.ExportFormatCSV},
		CreatedBy: "author@example.com",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExportRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM export_jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnRows(exportJobRows().AddRow(
			"job-1", []byte(`{"announcementId":"a1","format":"csv"}`), "QUEUED", nil, "author@example.com", now, nil, nil,
		))

	job, err := repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "a1", job.Params.AnnouncementID)
	assert.Equal(t, models.ExportFormatCSV, job.Params.Format)
	assert.Equal(t, models.ExportStatusQueued, job.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportRepositoryUpdate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExportRepository(db)

	status := models.ExportStatusFinished
	url := "/api/v1/export/tok"
	finished := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE export_jobs SET status = $1, result_url = $2, finished_at = $3 WHERE id = $4")).
		WithArgs("FINISHED", url, finished, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateExportJobParams{
		Status:     &status,
		ResultURL:  &url,
		FinishedAt: &finished,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportRepositoryUpdateNoFields(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExportRepository(db)

	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateExportJobParams{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExportRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewExportRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM export_jobs WHERE status = \$1 ORDER BY created_at ASC LIMIT 50`).
		WithArgs("QUEUED").
		WillReturnRows(exportJobRows().AddRow(
			"job-1", []byte(`{"announcementId":"a1","format":"pdf"}`), "QUEUED", nil, "author@example.com", now, nil, nil,
		))

	jobs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ExportFormatPDF, jobs[0].Params.Format)
	assert.NoError(t, mock.ExpectationsWereMet())
}
