package service

import (
	"time"

	"github.com/lumenlms/announce-api/internal/models"
)

// StatusEvaluation is the outcome of materializing an announcement's status
// against a point in time. When Changed is true the caller should attempt a
// best-effort write-through of Status/StartsAt/EndsAt.
type StatusEvaluation struct {
	Status   models.AnnouncementStatus
	StartsAt *time.Time
	EndsAt   *time.Time
	Changed  bool
}

// InitialStatus decides the status a new or rescheduled announcement takes:
// a future starts_at yields SCHEDULED, anything else publishes immediately.
func InitialStatus(startsAt *time.Time, now time.Time) models.AnnouncementStatus {
	if startsAt != nil && startsAt.After(now) {
		return models.AnnouncementStatusScheduled
	}
	return models.AnnouncementStatusPublished
}

// EvaluateStatus computes the status the announcement should hold at now.
// Drafts and terminal states are left untouched. Scheduled announcements
// whose window has opened become published; published announcements whose
// window has closed either re-arm onto the next recurrence window or expire.
func EvaluateStatus(ann *models.Announcement, now time.Time) StatusEvaluation {
	eval := StatusEvaluation{Status: ann.Status, StartsAt: ann.StartsAt, EndsAt: ann.EndsAt}

	switch ann.Status {
	case models.AnnouncementStatusDraft, models.AnnouncementStatusCancelled, models.AnnouncementStatusExpired:
		return eval
	case models.AnnouncementStatusScheduled:
		if eval.StartsAt == nil || !eval.StartsAt.After(now) {
			eval.Status = models.AnnouncementStatusPublished
			eval.Changed = true
		}
	}

	if eval.Status != models.AnnouncementStatusPublished {
		return eval
	}
	if eval.EndsAt == nil || !now.After(*eval.EndsAt) {
		return eval
	}

	if ann.RecurrenceRule == nil || eval.StartsAt == nil {
		eval.Status = models.AnnouncementStatusExpired
		eval.Changed = true
		return eval
	}

	// Walk recurrence windows forward until one covers or follows now.
	start, end := *eval.StartsAt, eval.EndsAt
	for i := 0; i < maxRecurrenceSteps; i++ {
		next := NextWindow(*ann.RecurrenceRule, start, end, ann.RecurrenceEndsAt)
		if next == nil {
			eval.Status = models.AnnouncementStatusExpired
			eval.Changed = true
			return eval
		}
		start, end = next.Start, next.End
		if end == nil || !now.After(*end) {
			eval.StartsAt = &start
			eval.EndsAt = end
			if start.After(now) {
				eval.Status = models.AnnouncementStatusScheduled
			} else {
				eval.Status = models.AnnouncementStatusPublished
			}
			eval.Changed = true
			return eval
		}
	}

	eval.Status = models.AnnouncementStatusExpired
	eval.Changed = true
	return eval
}

// ValidateTransition rejects explicit transitions the state machine forbids.
func ValidateTransition(from, to models.AnnouncementStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case models.AnnouncementStatusCancelled:
		return false
	case models.AnnouncementStatusExpired:
		// Expired announcements may only be cancelled outright.
		return to == models.AnnouncementStatusCancelled
	default:
		return true
	}
}
