package compare

import (
	"strings"
	"time"
)

// dateLayouts is the accepted set of textual date layouts, tried in order.
// Day-first layouts come before month-first so ambiguous inputs resolve
// day-first; the first layout that parses wins.
var dateLayouts = []string{
	"2006-1-2",
	"2-1-2006",
	"1-2-2006",
	"2006/1/2",
	"2/1/2006",
	"1/2/2006",
	"2.1.2006",
	"2006.1.2",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"20060102",
}

// ParseDate tries each known layout and returns the first hit.
// The boolean is false when no layout matches; callers degrade to a
// generic comparison instead of failing.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// dayDiff returns the absolute difference between two dates in days.
func dayDiff(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
