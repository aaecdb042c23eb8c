package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AnnouncementStatus captures the broadcast lifecycle state.
type AnnouncementStatus string

const (
	AnnouncementStatusDraft     AnnouncementStatus = "DRAFT"
	AnnouncementStatusScheduled AnnouncementStatus = "SCHEDULED"
	AnnouncementStatusPublished AnnouncementStatus = "PUBLISHED"
	AnnouncementStatusCancelled AnnouncementStatus = "CANCELLED"
	AnnouncementStatusExpired   AnnouncementStatus = "EXPIRED"
)

// Terminal reports whether the status accepts no further author-driven transitions.
func (s AnnouncementStatus) Terminal() bool {
	return s == AnnouncementStatusCancelled || s == AnnouncementStatusExpired
}

// AnnouncementPriority defines urgency for announcement rendering.
type AnnouncementPriority string

const (
	AnnouncementPriorityNormal   AnnouncementPriority = "NORMAL"
	AnnouncementPriorityHigh     AnnouncementPriority = "HIGH"
	AnnouncementPriorityCritical AnnouncementPriority = "CRITICAL"
)

// AnnouncementDisplayType hints how consumers should render the announcement.
type AnnouncementDisplayType string

const (
	AnnouncementDisplayBanner AnnouncementDisplayType = "BANNER"
	AnnouncementDisplayModal  AnnouncementDisplayType = "MODAL"
	AnnouncementDisplayEmail  AnnouncementDisplayType = "EMAIL"
)

// AudienceType names a targeting dimension for audience rules.
type AudienceType string

const (
	AudienceTypeEveryone AudienceType = "EVERYONE"
	AudienceTypeRole     AudienceType = "ROLE"
	AudienceTypeCourse   AudienceType = "COURSE"
	AudienceTypeUser     AudienceType = "USER"
)

// InteractionKind distinguishes acknowledgment from dismissal.
type InteractionKind string

const (
	InteractionAcknowledged InteractionKind = "ACKNOWLEDGED"
	InteractionDismissed    InteractionKind = "DISMISSED"
)

// JSONMap stores free-form key/value attributes as a JSONB column.
type JSONMap map[string]interface{}

// Value marshals the map for persistence.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal json map: %w", err)
	}
	return data, nil
}

// Scan unmarshals a JSONB payload into the map.
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for JSONMap", value)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal json map: %w", err)
	}
	return nil
}

// Announcement represents a persisted announcement row plus its audience rules.
type Announcement struct {
	ID               string                  `db:"id" json:"id"`
	AuthorEmail      string                  `db:"author_email" json:"author_email"`
	Title            string                  `db:"title" json:"title"`
	Content          string                  `db:"content" json:"content"`
	RichContent      JSONMap                 `db:"rich_content" json:"rich_content,omitempty"`
	DisplayType      AnnouncementDisplayType `db:"display_type" json:"display_type"`
	Priority         AnnouncementPriority    `db:"priority" json:"priority"`
	ContextType      *string                 `db:"context_type" json:"context_type,omitempty"`
	ContextID        *string                 `db:"context_id" json:"context_id,omitempty"`
	StartsAt         *time.Time              `db:"starts_at" json:"starts_at,omitempty"`
	EndsAt           *time.Time              `db:"ends_at" json:"ends_at,omitempty"`
	Status           AnnouncementStatus      `db:"status" json:"status"`
	RecurrenceRule   *string                 `db:"recurrence_rule" json:"recurrence_rule,omitempty"`
	RecurrenceEndsAt *time.Time              `db:"recurrence_ends_at" json:"recurrence_ends_at,omitempty"`
	Metadata         JSONMap                 `db:"metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time               `db:"updated_at" json:"updated_at"`

	Audience []AudienceRule `db:"-" json:"audience"`
}

// AudienceRule is a single targeting predicate attached to an announcement.
type AudienceRule struct {
	ID             string       `db:"id" json:"-"`
	AnnouncementID string       `db:"announcement_id" json:"-"`
	AudienceType   AudienceType `db:"audience_type" json:"audience_type"`
	AudienceID     *string      `db:"audience_id" json:"audience_id,omitempty"`
	AudienceValue  *string      `db:"audience_value" json:"audience_value,omitempty"`
	Position       int          `db:"position" json:"-"`
}

// Acknowledgment records a single user's interaction with an announcement.
// At most one row exists per (announcement, user); a later acknowledge or
// dismiss overwrites the interaction kind in place.
type Acknowledgment struct {
	AnnouncementID string          `db:"announcement_id" json:"announcement_id"`
	UserEmail      string          `db:"user_email" json:"user_email"`
	Interaction    InteractionKind `db:"interaction" json:"interaction"`
	InteractedAt   time.Time       `db:"interacted_at" json:"interacted_at"`
}

// ViewerContext is the resolved identity and membership surface used for
// audience matching. Membership sets come from the enrollment data owned by
// the course service.
type ViewerContext struct {
	Email             string   `json:"email"`
	Role              UserRole `json:"role"`
	EnrolledCourseIDs []string `json:"enrolled_course_ids"`
	TaughtCourseIDs   []string `json:"taught_course_ids"`
}

// HasCourse reports whether the viewer teaches or is enrolled in the course.
func (v ViewerContext) HasCourse(courseID string) bool {
	for _, id := range v.EnrolledCourseIDs {
		if id == courseID {
			return true
		}
	}
	for _, id := range v.TaughtCourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

// AnnouncementFilter captures listing criteria for the store.
type AnnouncementFilter struct {
	AuthorEmail    string
	ContextType    *string
	ContextID      *string
	Statuses       []AnnouncementStatus
	IncludeExpired bool
	Search         string
	Limit          int
	Offset         int
	SortBy         string
	SortOrder      string
}
