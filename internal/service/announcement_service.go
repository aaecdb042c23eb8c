package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lumenlms/announce-api/internal/models"
	appErrors "github.com/lumenlms/announce-api/pkg/errors"
)

type announcementStore interface {
	Create(ctx context.Context, ann *models.Announcement) error
	GetByID(ctx context.Context, id string) (*models.Announcement, error)
	Update(ctx context.Context, ann *models.Announcement, replaceAudience bool) error
	UpdateStatusWindow(ctx context.Context, id string, status models.AnnouncementStatus, startsAt, endsAt *time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	UpsertAcknowledgment(ctx context.Context, id, userEmail string, kind models.InteractionKind) error
	ListAcknowledgments(ctx context.Context, id string, limit, offset int) ([]models.Acknowledgment, int, error)
	InteractedIDs(ctx context.Context, ids []string, userEmail string) (map[string]models.InteractionKind, error)
}

type membershipResolver interface {
	ResolveViewer(ctx context.Context, email string, role models.UserRole) (*models.ViewerContext, error)
}

type viewerCache interface {
	GetViewer(ctx context.Context, email string) (*models.ViewerContext, error)
	SetViewer(ctx context.Context, viewer *models.ViewerContext, ttl time.Duration) error
}

type metricsObserver interface {
	RecordStatusFlush(success bool)
	RecordCacheLookup(hit bool)
	ObserveDBQuery(label string, duration time.Duration)
}

// AnnouncementServiceConfig tunes listing defaults and caching.
type AnnouncementServiceConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	ViewerCacheTTL  time.Duration
}

// AnnouncementService orchestrates the announcement lifecycle: validation,
// lazy status materialization, audience filtering and acknowledgments.
type AnnouncementService struct {
	repo        announcementStore
	memberships membershipResolver
	cache       viewerCache
	metrics     metricsObserver
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         AnnouncementServiceConfig
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementStore, memberships membershipResolver, cache viewerCache, metrics metricsObserver, validate *validator.Validate, logger *zap.Logger, cfg AnnouncementServiceConfig) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	if cfg.ViewerCacheTTL <= 0 {
		cfg.ViewerCacheTTL = 2 * time.Minute
	}
	svc := &AnnouncementService{
		repo:        repo,
		memberships: memberships,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
	svc.registerValidations()
	return svc
}

func (s *AnnouncementService) registerValidations() {
	s.validator.RegisterValidation("display_type", func(fl validator.FieldLevel) bool {
		switch models.AnnouncementDisplayType(strings.ToUpper(fl.Field().String())) {
		case models.AnnouncementDisplayBanner, models.AnnouncementDisplayModal, models.AnnouncementDisplayEmail:
			return true
		default:
			return false
		}
	})
	s.validator.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		switch models.AnnouncementPriority(strings.ToUpper(fl.Field().String())) {
		case models.AnnouncementPriorityNormal, models.AnnouncementPriorityHigh, models.AnnouncementPriorityCritical:
			return true
		default:
			return false
		}
	})
	s.validator.RegisterValidation("audience_type", func(fl validator.FieldLevel) bool {
		switch models.AudienceType(strings.ToUpper(fl.Field().String())) {
		case models.AudienceTypeEveryone, models.AudienceTypeRole, models.AudienceTypeCourse, models.AudienceTypeUser:
			return true
		default:
			return false
		}
	})
	s.validator.RegisterValidation("recurrence", func(fl validator.FieldLevel) bool {
		return IsRecurrenceRule(fl.Field().String())
	})
}

// AudienceRuleInput describes one audience rule in create/update payloads.
type AudienceRuleInput struct {
	AudienceType  string  `json:"audience_type" validate:"required,audience_type"`
	AudienceID    *string `json:"audience_id"`
	AudienceValue *string `json:"audience_value"`
}

// CreateAnnouncementRequest describes the create payload.
type CreateAnnouncementRequest struct {
	Title            string              `json:"title" validate:"required"`
	Content          string              `json:"content" validate:"required"`
	RichContent      models.JSONMap      `json:"rich_content"`
	DisplayType      string              `json:"display_type" validate:"omitempty,display_type"`
	Priority         string              `json:"priority" validate:"omitempty,priority"`
	ContextType      *string             `json:"context_type"`
	ContextID        *string             `json:"context_id"`
	StartsAt         *time.Time          `json:"starts_at"`
	EndsAt           *time.Time          `json:"ends_at"`
	RecurrenceRule   *string             `json:"recurrence_rule" validate:"omitempty,recurrence"`
	RecurrenceEndsAt *time.Time          `json:"recurrence_ends_at"`
	Audience         []AudienceRuleInput `json:"audience" validate:"dive"`
	Metadata         models.JSONMap      `json:"metadata"`
	Draft            bool                `json:"draft"`
}

// UpdateAnnouncementRequest describes the partial update payload.
type UpdateAnnouncementRequest struct {
	Title            *string              `json:"title" validate:"omitempty,min=1"`
	Content          *string              `json:"content" validate:"omitempty,min=1"`
	RichContent      models.JSONMap       `json:"rich_content"`
	DisplayType      *string              `json:"display_type" validate:"omitempty,display_type"`
	Priority         *string              `json:"priority" validate:"omitempty,priority"`
	ContextType      *string              `json:"context_type"`
	ContextID        *string              `json:"context_id"`
	StartsAt         *time.Time           `json:"starts_at"`
	EndsAt           *time.Time           `json:"ends_at"`
	RecurrenceRule   *string              `json:"recurrence_rule" validate:"omitempty,recurrence"`
	RecurrenceEndsAt *time.Time           `json:"recurrence_ends_at"`
	Audience         *[]AudienceRuleInput `json:"audience" validate:"omitempty,dive"`
	Metadata         models.JSONMap       `json:"metadata"`
	Draft            *bool                `json:"draft"`
}

// ListAnnouncementsRequest describes listing filters.
type ListAnnouncementsRequest struct {
	AuthorEmail    string
	ContextType    *string
	ContextID      *string
	Status         string
	IncludeExpired bool
	Search         string
	Limit          int
	Offset         int
	SortBy         string
	SortOrder      string
}

// ListResult bundles listing output with viewer metadata. TotalCount in
// Pagination reflects the SQL filter match count; audience filtering happens
// in process, so a viewer's reachable item count can be smaller.
type ListResult struct {
	Items      []models.Announcement
	Pagination *models.Pagination
	Unseen     int
}

// Create validates invariants and persists a new announcement.
func (s *AnnouncementService) Create(ctx context.Context, req CreateAnnouncementRequest, actor *models.JWTClaims) (*models.Announcement, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !actor.Role.CanManageAnnouncements() {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	now := time.Now().UTC()
	ann := &models.Announcement{
		AuthorEmail:      actor.Email,
		Title:            req.Title,
		Content:          req.Content,
		RichContent:      req.RichContent,
		DisplayType:      displayTypeOrDefault(req.DisplayType),
		Priority:         priorityOrDefault(req.Priority),
		ContextType:      req.ContextType,
		ContextID:        req.ContextID,
		StartsAt:         req.StartsAt,
		EndsAt:           req.EndsAt,
		RecurrenceRule:   normalizeRecurrence(req.RecurrenceRule),
		RecurrenceEndsAt: req.RecurrenceEndsAt,
		Metadata:         req.Metadata,
		Audience:         audienceFromInput(req.Audience),
	}
	if err := validateAnnouncement(ann); err != nil {
		return nil, err
	}
	if req.Draft {
		ann.Status = models.AnnouncementStatusDraft
	} else {
		ann.Status = InitialStatus(ann.StartsAt, now)
	}

	if err := s.repo.Create(ctx, ann); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	return ann, nil
}

// Get returns an announcement to its author for management use.
func (s *AnnouncementService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Announcement, error) {
	ann, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	s.materialize(ctx, ann, time.Now().UTC())
	return ann, nil
}

// Update applies a partial update, re-validating the merged record so a
// patch cannot leave the announcement in an invalid time ordering.
func (s *AnnouncementService) Update(ctx context.Context, id string, req UpdateAnnouncementRequest, actor *models.JWTClaims) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	ann, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if ann.Status == models.AnnouncementStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "announcement is cancelled")
	}

	replaceAudience := applyPatch(ann, req)
	if err := validateAnnouncement(ann); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	windowTouched := req.StartsAt != nil || req.EndsAt != nil || req.RecurrenceRule != nil || req.RecurrenceEndsAt != nil
	switch ann.Status {
	case models.AnnouncementStatusDraft, models.AnnouncementStatusScheduled:
		if req.Draft != nil && *req.Draft {
			ann.Status = models.AnnouncementStatusDraft
		} else if windowTouched || (req.Draft != nil && !*req.Draft) || ann.Status == models.AnnouncementStatusScheduled {
			ann.Status = InitialStatus(ann.StartsAt, now)
		}
	case models.AnnouncementStatusExpired:
		// A widened window re-arms an expired announcement; published
		// records never move backward into draft or scheduled.
		if windowTouched {
			ann.Status = InitialStatus(ann.StartsAt, now)
		}
	}

	if err := s.repo.Update(ctx, ann, replaceAudience); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	s.materialize(ctx, ann, now)
	return ann, nil
}

// Delete removes an announcement and its acknowledgment records.
func (s *AnnouncementService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	if _, err := s.loadOwned(ctx, id, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}

// PublishNow forces immediate publication, superseding any scheduled start.
// The record is materialized first so a lapsed window surfaces as EXPIRED and
// is rejected rather than stored with ends_at preceding the new starts_at.
func (s *AnnouncementService) PublishNow(ctx context.Context, id string, actor *models.JWTClaims) (*models.Announcement, error) {
	ann, err := s.loadOwned(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	s.materialize(ctx, ann, now)
	if !ValidateTransition(ann.Status, models.AnnouncementStatusPublished) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "announcement cannot be published from its current state")
	}
	if ann.EndsAt != nil && !ann.EndsAt.After(now) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "announcement window has already ended")
	}
	ann.StartsAt = &now
	ann.Status = models.AnnouncementStatusPublished
	if err := validateAnnouncement(ann); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, ann, false); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish announcement")
	}
	return ann, nil
}

// List returns announcements for either a management view (author scope) or
// a viewer feed (audience filtered, published only).
func (s *AnnouncementService) List(ctx context.Context, req ListAnnouncementsRequest, actor *models.JWTClaims) (*ListResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	authorView := req.AuthorEmail != ""
	if authorView && !s.canManage(actor, req.AuthorEmail) {
		return nil, appErrors.ErrForbidden
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	filter := models.AnnouncementFilter{
		AuthorEmail:    req.AuthorEmail,
		ContextType:    req.ContextType,
		ContextID:      req.ContextID,
		IncludeExpired: req.IncludeExpired,
		Search:         req.Search,
		Limit:          limit,
		Offset:         offset,
		SortBy:         req.SortBy,
		SortOrder:      req.SortOrder,
	}
	requested := parseStatuses(req.Status)
	if authorView {
		filter.Statuses = requested
	} else {
		filter.Statuses = []models.AnnouncementStatus{models.AnnouncementStatusScheduled, models.AnnouncementStatusPublished}
		if req.IncludeExpired {
			filter.Statuses = append(filter.Statuses, models.AnnouncementStatusExpired)
		}
	}

	queryStart := time.Now()
	rows, total, err := s.repo.List(ctx, filter)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("announcements_list", time.Since(queryStart))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}

	var viewer *models.ViewerContext
	if !authorView {
		viewer, err = s.viewerContext(ctx, actor)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	items := make([]models.Announcement, 0, len(rows))
	for i := range rows {
		ann := rows[i]
		s.materialize(ctx, &ann, now)
		if authorView {
			if len(requested) > 0 && !containsStatus(requested, ann.Status) {
				continue
			}
			items = append(items, ann)
			continue
		}
		switch ann.Status {
		case models.AnnouncementStatusPublished:
		case models.AnnouncementStatusExpired:
			if !req.IncludeExpired {
				continue
			}
		default:
			continue
		}
		// A viewer-supplied status filter narrows within the visible set.
		if len(requested) > 0 && !containsStatus(requested, ann.Status) {
			continue
		}
		if !MatchesAudience(&ann, *viewer) {
			continue
		}
		items = append(items, ann)
	}

	result := &ListResult{
		Items: items,
		Pagination: &models.Pagination{
			Page:       offset/limit + 1,
			PageSize:   limit,
			TotalCount: total,
		},
	}
	if !authorView && len(items) > 0 {
		ids := make([]string, 0, len(items))
		for _, a := range items {
			ids = append(ids, a.ID)
		}
		interacted, err := s.repo.InteractedIDs(ctx, ids, actor.Email)
		if err != nil {
			s.logger.Warn("failed to load viewer interactions", zap.Error(err))
		} else {
			result.Unseen = len(items) - len(interacted)
		}
	}
	return result, nil
}

// Acknowledge records a viewer's acknowledgment of an announcement.
func (s *AnnouncementService) Acknowledge(ctx context.Context, id string, actor *models.JWTClaims) error {
	return s.interact(ctx, id, actor, models.InteractionAcknowledged)
}

// Dismiss records a viewer's dismissal of an announcement.
func (s *AnnouncementService) Dismiss(ctx context.Context, id string, actor *models.JWTClaims) error {
	return s.interact(ctx, id, actor, models.InteractionDismissed)
}

// ListAcknowledgments returns interaction records to the announcement author.
func (s *AnnouncementService) ListAcknowledgments(ctx context.Context, id string, actor *models.JWTClaims, limit, offset int) ([]models.Acknowledgment, *models.Pagination, error) {
	if _, err := s.loadOwned(ctx, id, actor); err != nil {
		return nil, nil, err
	}
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	records, total, err := s.repo.ListAcknowledgments(ctx, id, limit, offset)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list acknowledgments")
	}
	pagination := &models.Pagination{Page: offset/limit + 1, PageSize: limit, TotalCount: total}
	return records, pagination, nil
}

func (s *AnnouncementService) interact(ctx context.Context, id string, actor *models.JWTClaims, kind models.InteractionKind) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	queryStart := time.Now()
	ann, err := s.repo.GetByID(ctx, id)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("announcements_get", time.Since(queryStart))
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	s.materialize(ctx, ann, time.Now().UTC())
	switch ann.Status {
	case models.AnnouncementStatusDraft, models.AnnouncementStatusScheduled:
		// Drafts and not-yet-open windows are invisible to viewers; do not
		// reveal their existence.
		return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
	case models.AnnouncementStatusCancelled:
		return appErrors.Clone(appErrors.ErrConflict, "announcement is cancelled")
	}
	if err := s.repo.UpsertAcknowledgment(ctx, id, actor.Email, kind); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record interaction")
	}
	return nil
}

// loadOwned fetches a record and applies the management capability check.
// Widening authorization (e.g. admin override) happens here, in one place.
func (s *AnnouncementService) loadOwned(ctx context.Context, id string, actor *models.JWTClaims) (*models.Announcement, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	queryStart := time.Now()
	ann, err := s.repo.GetByID(ctx, id)
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("announcements_get", time.Since(queryStart))
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	if !s.canManage(actor, ann.AuthorEmail) {
		return nil, appErrors.ErrForbidden
	}
	return ann, nil
}

func (s *AnnouncementService) canManage(actor *models.JWTClaims, authorEmail string) bool {
	if actor == nil {
		return false
	}
	if actor.Role == models.RoleAdmin || actor.Role == models.RoleSuperAdmin {
		return true
	}
	return strings.EqualFold(actor.Email, authorEmail)
}

// materialize recomputes the status against now and flushes changes
// best-effort. A failed flush is logged, not surfaced: the computed status
// is still returned to the caller.
func (s *AnnouncementService) materialize(ctx context.Context, ann *models.Announcement, now time.Time) {
	eval := EvaluateStatus(ann, now)
	if !eval.Changed {
		return
	}
	ann.Status = eval.Status
	ann.StartsAt = eval.StartsAt
	ann.EndsAt = eval.EndsAt
	if err := s.repo.UpdateStatusWindow(ctx, ann.ID, eval.Status, eval.StartsAt, eval.EndsAt); err != nil {
		s.logger.Warn("failed to flush materialized status",
			zap.String("announcement_id", ann.ID),
			zap.String("status", string(eval.Status)),
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordStatusFlush(false)
		}
		return
	}
	if s.metrics != nil {
		s.metrics.RecordStatusFlush(true)
	}
}

func (s *AnnouncementService) viewerContext(ctx context.Context, actor *models.JWTClaims) (*models.ViewerContext, error) {
	if s.cache != nil {
		viewer, err := s.cache.GetViewer(ctx, actor.Email)
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(err == nil)
		}
		if err == nil {
			return viewer, nil
		}
	}
	viewer, err := s.memberships.ResolveViewer(ctx, actor.Email, actor.Role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve viewer context")
	}
	if s.cache != nil {
		if err := s.cache.SetViewer(ctx, viewer, s.cfg.ViewerCacheTTL); err != nil {
			s.logger.Warn("failed to cache viewer context", zap.String("email", actor.Email), zap.Error(err))
		}
	}
	return viewer, nil
}

// validateAnnouncement enforces the merged-record invariants.
func validateAnnouncement(ann *models.Announcement) error {
	if ann.EndsAt != nil && ann.StartsAt != nil && ann.EndsAt.Before(*ann.StartsAt) {
		return appErrors.Clone(appErrors.ErrValidation, "ends_at must not precede starts_at")
	}
	if ann.RecurrenceRule != nil {
		if ann.StartsAt == nil {
			return appErrors.Clone(appErrors.ErrValidation, "recurrence_rule requires starts_at")
		}
		if ann.RecurrenceEndsAt != nil && ann.RecurrenceEndsAt.Before(*ann.StartsAt) {
			return appErrors.Clone(appErrors.ErrValidation, "recurrence_ends_at must not precede starts_at")
		}
	}
	if (ann.ContextType == nil) != (ann.ContextID == nil) {
		return appErrors.Clone(appErrors.ErrValidation, "context_type and context_id must be provided together")
	}
	for _, rule := range ann.Audience {
		switch models.AudienceType(strings.ToUpper(string(rule.AudienceType))) {
		case models.AudienceTypeCourse:
			if rule.AudienceID == nil || *rule.AudienceID == "" {
				return appErrors.Clone(appErrors.ErrValidation, "course audience rule requires audience_id")
			}
		case models.AudienceTypeRole, models.AudienceTypeUser:
			if rule.AudienceValue == nil || *rule.AudienceValue == "" {
				return appErrors.Clone(appErrors.ErrValidation, "audience rule requires audience_value")
			}
		}
	}
	return nil
}

// applyPatch merges the update request into the record and reports whether
// the audience set should be replaced.
func applyPatch(ann *models.Announcement, req UpdateAnnouncementRequest) bool {
	if req.Title != nil {
		ann.Title = *req.Title
	}
	if req.Content != nil {
		ann.Content = *req.Content
	}
	if req.RichContent != nil {
		ann.RichContent = req.RichContent
	}
	if req.DisplayType != nil {
		ann.DisplayType = models.AnnouncementDisplayType(strings.ToUpper(*req.DisplayType))
	}
	if req.Priority != nil {
		ann.Priority = models.AnnouncementPriority(strings.ToUpper(*req.Priority))
	}
	if req.ContextType != nil {
		ann.ContextType = req.ContextType
	}
	if req.ContextID != nil {
		ann.ContextID = req.ContextID
	}
	if req.StartsAt != nil {
		ann.StartsAt = req.StartsAt
	}
	if req.EndsAt != nil {
		ann.EndsAt = req.EndsAt
	}
	if req.RecurrenceRule != nil {
		ann.RecurrenceRule = normalizeRecurrence(req.RecurrenceRule)
	}
	if req.RecurrenceEndsAt != nil {
		ann.RecurrenceEndsAt = req.RecurrenceEndsAt
	}
	if req.Metadata != nil {
		ann.Metadata = req.Metadata
	}
	if req.Audience != nil {
		ann.Audience = audienceFromInput(*req.Audience)
		return true
	}
	return false
}

func audienceFromInput(rules []AudienceRuleInput) []models.AudienceRule {
	out := make([]models.AudienceRule, 0, len(rules))
	for i, rule := range rules {
		out = append(out, models.AudienceRule{
			AudienceType:  models.AudienceType(strings.ToUpper(rule.AudienceType)),
			AudienceID:    rule.AudienceID,
			AudienceValue: rule.AudienceValue,
			Position:      i,
		})
	}
	return out
}

func parseStatuses(raw string) []models.AnnouncementStatus {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]models.AnnouncementStatus, 0, len(parts))
	for _, p := range parts {
		status := models.AnnouncementStatus(strings.ToUpper(strings.TrimSpace(p)))
		switch status {
		case models.AnnouncementStatusDraft, models.AnnouncementStatusScheduled, models.AnnouncementStatusPublished,
			models.AnnouncementStatusCancelled, models.AnnouncementStatusExpired:
			out = append(out, status)
		}
	}
	return out
}

func containsStatus(set []models.AnnouncementStatus, status models.AnnouncementStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func displayTypeOrDefault(raw string) models.AnnouncementDisplayType {
	if raw == "" {
		return models.AnnouncementDisplayBanner
	}
	return models.AnnouncementDisplayType(strings.ToUpper(raw))
}

func priorityOrDefault(raw string) models.AnnouncementPriority {
	if raw == "" {
		return models.AnnouncementPriorityNormal
	}
	return models.AnnouncementPriority(strings.ToUpper(raw))
}

func normalizeRecurrence(rule *string) *string {
	if rule == nil || *rule == "" {
		return nil
	}
	normalized := strings.ToLower(*rule)
	return &normalized
}
