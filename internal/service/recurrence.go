package service

import (
	"strings"
	"time"

	"github.com/lumenlms/announce-api/internal/models"
)

// maxRecurrenceSteps bounds window expansion so a long-dormant announcement
// cannot stall a read while catching up.
const maxRecurrenceSteps = 1000

const (
	RecurrenceDaily    = "daily"
	RecurrenceWeekly   = "weekly"
	RecurrenceBiweekly = "biweekly"
	RecurrenceMonthly  = "monthly"
)

// RecurrenceWindow is one occurrence's active interval.
type RecurrenceWindow struct {
	Start time.Time
	End   *time.Time
}

// IsRecurrenceRule reports whether the rule names a known cadence.
func IsRecurrenceRule(rule string) bool {
	switch strings.ToLower(rule) {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
		return true
	default:
		return false
	}
}

// NextWindow computes the occurrence strictly after lastStart by applying the
// rule's period, carrying the previous window's duration. It returns nil when
// the rule is unknown or the next start would exceed the recurrence cutoff,
// signalling the series has ended.
func NextWindow(rule string, lastStart time.Time, lastEnd *time.Time, cutoff *time.Time) *RecurrenceWindow {
	var nextStart time.Time
	switch strings.ToLower(rule) {
	case RecurrenceDaily:
		nextStart = lastStart.AddDate(0, 0, 1)
	case RecurrenceWeekly:
		nextStart = lastStart.AddDate(0, 0, 7)
	case RecurrenceBiweekly:
		nextStart = lastStart.AddDate(0, 0, 14)
	case RecurrenceMonthly:
		nextStart = lastStart.AddDate(0, 1, 0)
	default:
		return nil
	}

	if cutoff != nil && nextStart.After(*cutoff) {
		return nil
	}

	window := &RecurrenceWindow{Start: nextStart}
	if lastEnd != nil {
		end := nextStart.Add(lastEnd.Sub(lastStart))
		window.End = &end
	}
	return window
}

// RecurrenceOf is a convenience accessor tolerating records without recurrence.
func RecurrenceOf(ann *models.Announcement) (string, bool) {
	if ann == nil || ann.RecurrenceRule == nil || *ann.RecurrenceRule == "" {
		return "", false
	}
	return *ann.RecurrenceRule, true
}
