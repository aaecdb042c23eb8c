package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenlms/announce-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func announcementRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "author_email", "title", "content", "rich_content", "display_type", "priority",
		"context_type", "context_id", "starts_at", "ends_at", "status", "recurrence_rule",
		"recurrence_ends_at", "metadata", "created_at", "updated_at",
	})
}

func audienceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "announcement_id", "audience_type", "audience_id", "audience_value", "position"})
}

func TestAnnouncementRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT (.+) FROM announcements WHERE id = \$1`).
		WithArgs("a1").
		WillReturnRows(announcementRows().AddRow(
			"a1", "author@example.com", "Exam week", "Good luck", nil, "BANNER", "NORMAL",
			nil, nil, nil, nil, "PUBLISHED", nil, nil, nil, now, now,
		))
	mock.ExpectQuery(`FROM announcement_audiences WHERE announcement_id = ANY\(\$1\)`).
		WillReturnRows(audienceRows().AddRow("r1", "a1", "ROLE", nil, "TEACHER", 0))

	ann, err := repo.GetByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "Exam week", ann.Title)
	require.Len(t, ann.Audience, 1)
	assert.Equal(t, models.AudienceTypeRole, ann.Audience[0].AudienceType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM announcements WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO announcements").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO announcement_audiences").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	value := "TEACHER"
	ann := &models.Announcement{
		AuthorEmail: "author@example.com",
		Title:       "Exam week",
		Content:     "Good luck",
		DisplayType: models.AnnouncementDisplayBanner,
		Priority:    models.AnnouncementPriorityNormal,
		Status:      models.AnnouncementStatusPublished,
		Audience:    []models.AudienceRule{{AudienceType: models.AudienceTypeRole, AudienceValue: &value}},
	}
	require.NoError(t, repo.Create(context.Background(), ann))
	assert.NotEmpty(t, ann.ID)
	assert.Equal(t, ann.ID, ann.Audience[0].AnnouncementID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryUpdateReplacesAudience(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE announcements SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM announcement_audiences WHERE announcement_id = \$1`).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO announcement_audiences").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ann := &models.Announcement{
		ID:       "a1",
		Title:    "Updated",
		Content:  "x",
		Status:   models.AnnouncementStatusPublished,
		Audience: []models.AudienceRule{{AudienceType: models.AudienceTypeEveryone}},
	}
	require.NoError(t, repo.Update(context.Background(), ann, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryUpdateStatusWindow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	start := time.Now().UTC()
	mock.ExpectExec(`UPDATE announcements SET status = \$1, starts_at = \$2, ends_at = \$3, updated_at = \$4 WHERE id = \$5`).
		WithArgs("PUBLISHED", start, nil, sqlmock.AnyArg(), "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatusWindow(context.Background(), "a1", models.AnnouncementStatusPublished, &start, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryDelete(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM announcement_acknowledgments WHERE announcement_id = \$1`).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM announcement_audiences WHERE announcement_id = \$1`).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM announcements WHERE id = \$1`).
		WithArgs("a1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "a1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM announcement_acknowledgments WHERE announcement_id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM announcement_audiences WHERE announcement_id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM announcements WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryListWithStatusFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT (.+) FROM announcements WHERE 1=1 AND status = ANY\(\$1\)`).
		WillReturnRows(announcementRows().AddRow(
			"a1", "author@example.com", "Exam week", "Good luck", nil, "BANNER", "NORMAL",
			nil, nil, nil, nil, "PUBLISHED", nil, nil, nil, now, now,
		))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements WHERE 1=1 AND status = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM announcement_audiences WHERE announcement_id = ANY\(\$1\)`).
		WillReturnRows(audienceRows())

	list, total, err := repo.List(context.Background(), models.AnnouncementFilter{
		Statuses: []models.AnnouncementStatus{models.AnnouncementStatusScheduled, models.AnnouncementStatusPublished},
	})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	assert.NotNil(t, list[0].Audience)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryListDefaultExcludesTerminal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM announcements WHERE 1=1 AND status NOT IN \(\$1, \$2\)`).
		WithArgs("EXPIRED", "CANCELLED").
		WillReturnRows(announcementRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements WHERE 1=1 AND status NOT IN ($1, $2)")).
		WithArgs("EXPIRED", "CANCELLED").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	list, total, err := repo.List(context.Background(), models.AnnouncementFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryUpsertAcknowledgment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	mock.ExpectExec("INSERT INTO announcement_acknowledgments").
		WithArgs("a1", "student@example.com", models.InteractionDismissed, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpsertAcknowledgment(context.Background(), "a1", "student@example.com", models.InteractionDismissed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryInteractedIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(`FROM announcement_acknowledgments WHERE user_email = \$1 AND announcement_id = ANY\(\$2\)`).
		WillReturnRows(sqlmock.NewRows([]string{"announcement_id", "user_email", "interaction", "interacted_at"}).
			AddRow("a1", "student@example.com", "ACKNOWLEDGED", now))

	interacted, err := repo.InteractedIDs(context.Background(), []string{"a1", "a2"}, "student@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.InteractionAcknowledged, interacted["a1"])
	assert.NotContains(t, interacted, "a2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryInteractedIDsEmptyInput(t *testing.T) {
	db, _, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	interacted, err := repo.InteractedIDs(context.Background(), nil, "student@example.com")
	require.NoError(t, err)
	assert.Empty(t, interacted)
}
