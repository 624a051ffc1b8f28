package replicate

import (
	"strings"
	"time"
)

// Templates whose name contains this marker (case-insensitive) pin the
// reference date for the whole run.
const targetDateMarker = "target date"

// ResolveReferenceDate picks the single date every batch in a run anchors
// against. Priority: an explicit caller-supplied date; then the date of a
// template named like "target date"; then the epic anchor date; then the
// latest date across all templates. Returns nil when nothing yields a date —
// callers substitute current wall-clock time at the point of use, never treat
// nil as an error.
func ResolveReferenceDate(explicit, anchor *time.Time, templates []Template) *time.Time {
	if explicit != nil {
		d := *explicit
		return &d
	}
	for _, t := range templates {
		if t.Date != nil && strings.Contains(strings.ToLower(t.Name), targetDateMarker) {
			d := t.Date.Start
			return &d
		}
	}
	if anchor != nil {
		d := *anchor
		return &d
	}
	var latest *time.Time
	for _, t := range templates {
		if t.Date == nil {
			continue
		}
		if latest == nil || t.Date.Start.After(*latest) {
			d := t.Date.Start
			latest = &d
		}
	}
	return latest
}
