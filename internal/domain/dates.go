package domain

import (
	"time"

	"github.com/couchcryptid/covid-data-etl/internal/frame"
)

const dateLayout = "2006-01-02"

// dateLayouts are the alternative spellings seen in the sources.
var dateLayouts = []string{"20060102", "2006/01/02", "01/02/2006"}

// normalizeDate rewrites a recognised date to YYYY-MM-DD. Anything else,
// including null, is returned unchanged.
func normalizeDate(v frame.Value) frame.Value {
	s, ok := v.Get()
	if !ok {
		return v
	}
	if _, err := time.Parse(dateLayout, s); err == nil {
		return v
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return frame.String(t.Format(dateLayout))
		}
	}
	return v
}

func normalizeDates(f *frame.Frame) (*frame.Frame, error) {
	return f.MapColumn(ColDate, normalizeDate)
}
