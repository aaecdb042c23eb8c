package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lumenlms/announce-api/internal/models"
)

const announcementColumns = `id, author_email, title, content, rich_content, display_type, priority,
context_type, context_id, starts_at, ends_at, status, recurrence_rule, recurrence_ends_at,
metadata, created_at, updated_at`

// AnnouncementRepository provides persistence for announcements, their
// audience rules and per-user acknowledgment records.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// Create inserts a new announcement together with its audience rules.
func (r *AnnouncementRepository) Create(ctx context.Context, ann *models.Announcement) error {
	if ann.ID == "" {
		ann.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if ann.CreatedAt.IsZero() {
		ann.CreatedAt = now
	}
	ann.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create announcement: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := fmt.Sprintf(`INSERT INTO announcements (%s)
VALUES (:id, :author_email, :title, :content, :rich_content, :display_type, :priority,
:context_type, :context_id, :starts_at, :ends_at, :status, :recurrence_rule, :recurrence_ends_at,
:metadata, :created_at, :updated_at)`, announcementColumns)
	if _, err := tx.NamedExecContext(ctx, query, ann); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	if err := insertAudienceRules(ctx, tx, ann.ID, ann.Audience); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create announcement: %w", err)
	}
	for i := range ann.Audience {
		ann.Audience[i].AnnouncementID = ann.ID
		ann.Audience[i].Position = i
	}
	return nil
}

// GetByID returns a hydrated announcement by identifier.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	query := fmt.Sprintf("SELECT %s FROM announcements WHERE id = $1", announcementColumns)
	var ann models.Announcement
	if err := r.db.GetContext(ctx, &ann, query, id); err != nil {
		return nil, err
	}
	rules, err := r.audienceRulesFor(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	ann.Audience = rules[id]
	if ann.Audience == nil {
		ann.Audience = []models.AudienceRule{}
	}
	return &ann, nil
}

// Update persists the announcement row and, when replaceAudience is set,
// swaps the audience rule set wholesale.
func (r *AnnouncementRepository) Update(ctx context.Context, ann *models.Announcement, replaceAudience bool) error {
	ann.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update announcement: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `UPDATE announcements SET title = :title, content = :content, rich_content = :rich_content,
display_type = :display_type, priority = :priority, context_type = :context_type, context_id = :context_id,
starts_at = :starts_at, ends_at = :ends_at, status = :status, recurrence_rule = :recurrence_rule,
recurrence_ends_at = :recurrence_ends_at, metadata = :metadata, updated_at = :updated_at
WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, ann); err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	if replaceAudience {
		if _, err := tx.ExecContext(ctx, "DELETE FROM announcement_audiences WHERE announcement_id = $1", ann.ID); err != nil {
			return fmt.Errorf("clear audience rules: %w", err)
		}
		if err := insertAudienceRules(ctx, tx, ann.ID, ann.Audience); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update announcement: %w", err)
	}
	return nil
}

// UpdateStatusWindow flushes a lazily materialized status along with any
// re-armed window. Concurrent flushes compute identical values, so last
// write wins without coordination.
func (r *AnnouncementRepository) UpdateStatusWindow(ctx context.Context, id string, status models.AnnouncementStatus, startsAt, endsAt *time.Time) error {
	const query = `UPDATE announcements SET status = $1, starts_at = $2, ends_at = $3, updated_at = $4 WHERE id = $5`
	if _, err := r.db.ExecContext(ctx, query, status, startsAt, endsAt, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("flush announcement status: %w", err)
	}
	return nil
}

// Delete removes an announcement, cascading to its audience rules and
// acknowledgment records atomically.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete announcement: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM announcement_acknowledgments WHERE announcement_id = $1", id); err != nil {
		return fmt.Errorf("delete acknowledgments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM announcement_audiences WHERE announcement_id = $1", id); err != nil {
		return fmt.Errorf("delete audience rules: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM announcements WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete announcement: %w", err)
	}
	return nil
}

// List returns announcements matching the filter plus the total match count.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.AuthorEmail != "" {
		where = append(where, fmt.Sprintf("author_email = $%d", len(args)+1))
		args = append(args, filter.AuthorEmail)
	}
	if filter.ContextType != nil {
		where = append(where, fmt.Sprintf("context_type = $%d", len(args)+1))
		args = append(args, *filter.ContextType)
	}
	if filter.ContextID != nil {
		where = append(where, fmt.Sprintf("context_id = $%d", len(args)+1))
		args = append(args, *filter.ContextID)
	}
	if len(filter.Statuses) > 0 {
		values := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			values = append(values, string(s))
		}
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(values))
	} else if !filter.IncludeExpired {
		where = append(where, fmt.Sprintf("status NOT IN ($%d, $%d)", len(args)+1, len(args)+2))
		args = append(args, string(models.AnnouncementStatusExpired), string(models.AnnouncementStatusCancelled))
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR content ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM announcements WHERE %s
ORDER BY %s
LIMIT %d OFFSET %d`, announcementColumns, whereClause, orderClause(filter.SortBy, filter.SortOrder), limit, offset)
	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM announcements WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}

	ids := make([]string, 0, len(announcements))
	for _, a := range announcements {
		ids = append(ids, a.ID)
	}
	rules, err := r.audienceRulesFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range announcements {
		announcements[i].Audience = rules[announcements[i].ID]
		if announcements[i].Audience == nil {
			announcements[i].Audience = []models.AudienceRule{}
		}
	}
	return announcements, total, nil
}

// UpsertAcknowledgment records or overwrites a user's interaction with an
// announcement. The (announcement, user) key keeps the record unique.
func (r *AnnouncementRepository) UpsertAcknowledgment(ctx context.Context, id, userEmail string, kind models.InteractionKind) error {
	const query = `INSERT INTO announcement_acknowledgments (announcement_id, user_email, interaction, interacted_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (announcement_id, user_email)
DO UPDATE SET interaction = EXCLUDED.interaction, interacted_at = EXCLUDED.interacted_at`
	if _, err := r.db.ExecContext(ctx, query, id, userEmail, kind, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert acknowledgment: %w", err)
	}
	return nil
}

// ListAcknowledgments returns interaction records for one announcement.
func (r *AnnouncementRepository) ListAcknowledgments(ctx context.Context, id string, limit, offset int) ([]models.Acknowledgment, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT announcement_id, user_email, interaction, interacted_at
FROM announcement_acknowledgments WHERE announcement_id = $1
ORDER BY interacted_at DESC
LIMIT %d OFFSET %d`, limit, offset)
	var records []models.Acknowledgment
	if err := r.db.SelectContext(ctx, &records, query, id); err != nil {
		return nil, 0, fmt.Errorf("list acknowledgments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM announcement_acknowledgments WHERE announcement_id = $1", id); err != nil {
		return nil, 0, fmt.Errorf("count acknowledgments: %w", err)
	}
	return records, total, nil
}

// InteractedIDs returns which of the provided announcements the user has
// already acknowledged or dismissed.
func (r *AnnouncementRepository) InteractedIDs(ctx context.Context, ids []string, userEmail string) (map[string]models.InteractionKind, error) {
	result := make(map[string]models.InteractionKind)
	if len(ids) == 0 {
		return result, nil
	}
	const query = `SELECT announcement_id, user_email, interaction, interacted_at
FROM announcement_acknowledgments WHERE user_email = $1 AND announcement_id = ANY($2)`
	var records []models.Acknowledgment
	if err := r.db.SelectContext(ctx, &records, query, userEmail, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load interactions: %w", err)
	}
	for _, rec := range records {
		result[rec.AnnouncementID] = rec.Interaction
	}
	return result, nil
}

func (r *AnnouncementRepository) audienceRulesFor(ctx context.Context, ids []string) (map[string][]models.AudienceRule, error) {
	result := make(map[string][]models.AudienceRule, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	const query = `SELECT id, announcement_id, audience_type, audience_id, audience_value, position
FROM announcement_audiences WHERE announcement_id = ANY($1)
ORDER BY announcement_id, position`
	var rules []models.AudienceRule
	if err := r.db.SelectContext(ctx, &rules, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("load audience rules: %w", err)
	}
	for _, rule := range rules {
		result[rule.AnnouncementID] = append(result[rule.AnnouncementID], rule)
	}
	return result, nil
}

func insertAudienceRules(ctx context.Context, tx *sqlx.Tx, announcementID string, rules []models.AudienceRule) error {
	const query = `INSERT INTO announcement_audiences (id, announcement_id, audience_type, audience_id, audience_value, position)
VALUES ($1, $2, $3, $4, $5, $6)`
	for i, rule := range rules {
		ruleID := rule.ID
		if ruleID == "" {
			ruleID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, query, ruleID, announcementID, rule.AudienceType, rule.AudienceID, rule.AudienceValue, i); err != nil {
			return fmt.Errorf("insert audience rule: %w", err)
		}
	}
	return nil
}

func orderClause(sortBy, sortOrder string) string {
	column := "created_at"
	if sortBy == "starts_at" {
		column = "starts_at"
	}
	direction := "DESC"
	if strings.EqualFold(sortOrder, "asc") {
		direction = "ASC"
	}
	return fmt.Sprintf("%s %s NULLS LAST", column, direction)
}
