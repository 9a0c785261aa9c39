package query

import (
	"fmt"
	"strings"
	"time"
)

// EndOfDay returns 23:59:59 of t's calendar day in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, loc)
}

// EndOfDayUnix is EndOfDay for epoch seconds.
func EndOfDayUnix(sec int64, loc *time.Location) int64 {
	return EndOfDay(time.Unix(sec, 0), loc).Unix()
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// ParseDate converts a request date string to epoch seconds. Date-only
// strings are read as midnight in loc. An empty string yields 0, meaning
// "no bound".
func ParseDate(s string, loc *time.Location) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("query: unrecognised date %q", s)
}
