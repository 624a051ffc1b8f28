package replicate

import (
	"time"

	"github.com/koiibenvenutto/koii-server/internal/notion"
)

// BatchOffset computes the uniform time shift for one batch: the reference
// date minus the latest template date in the batch. Zero when the batch has
// no dated templates or no reference date exists, so original dates pass
// through unchanged.
func BatchOffset(ref *time.Time, templates []Template) time.Duration {
	if ref == nil {
		return 0
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
	if latest == nil {
		return 0
	}
	return ref.Sub(*latest)
}

// TranslateDate shifts a date value by the batch offset, preserving range
// duration exactly. Data-quality problems come back as warnings, never
// errors:
//
//   - a source range with start >= end passes through untranslated;
//   - a translated range that would invert keeps only its start date.
func TranslateDate(v notion.DateValue, offset time.Duration) (notion.DateValue, []string) {
	if v.HasEnd && !v.Start.Before(v.End) {
		return v, []string{"source date range has start >= end; dates passed through untranslated"}
	}
	out := v.Shift(offset)
	if out.HasEnd && !out.Start.Before(out.End) {
		out.End = time.Time{}
		out.HasEnd = false
		return out, []string{"translated date range would invert; end date dropped"}
	}
	return out, nil
}
