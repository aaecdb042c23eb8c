package service

import (
	"strings"

	"github.com/lumenlms/announce-api/internal/models"
)

// MatchesAudience decides whether a viewer falls inside an announcement's
// intended readership. Context scoping is a prerequisite: a course-scoped
// announcement is invisible to non-members regardless of audience rules.
// Rules combine with OR: satisfying any single rule is enough. An empty
// rule set matches every viewer with context access.
func MatchesAudience(ann *models.Announcement, viewer models.ViewerContext) bool {
	if ann == nil {
		return false
	}
	if ann.ContextType != nil && strings.EqualFold(*ann.ContextType, "course") {
		if ann.ContextID == nil || !viewer.HasCourse(*ann.ContextID) {
			return false
		}
	}
	if len(ann.Audience) == 0 {
		return true
	}
	for _, rule := range ann.Audience {
		if ruleMatches(rule, viewer) {
			return true
		}
	}
	return false
}

// ruleMatches evaluates a single audience rule. Unknown audience types never
// match and never error, keeping the resolver total.
func ruleMatches(rule models.AudienceRule, viewer models.ViewerContext) bool {
	switch models.AudienceType(strings.ToUpper(string(rule.AudienceType))) {
	case models.AudienceTypeEveryone:
		return true
	case models.AudienceTypeRole:
		return rule.AudienceValue != nil && strings.EqualFold(*rule.AudienceValue, string(viewer.Role))
	case models.AudienceTypeCourse:
		return rule.AudienceID != nil && viewer.HasCourse(*rule.AudienceID)
	case models.AudienceTypeUser:
		return rule.AudienceValue != nil && strings.EqualFold(*rule.AudienceValue, viewer.Email)
	default:
		return false
	}
}
