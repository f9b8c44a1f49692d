package util

import (
	"fmt"
	"time"
)

// Day is the length of one UTC calendar day.
const Day = 24 * time.Hour

// StartOfUTCDay returns 00:00:00Z of the UTC calendar day containing t.
func StartOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateString formats t as its UTC calendar date, YYYY-MM-DD.
func DateString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ParseTime accepts a date (YYYY-MM-DD, meaning midnight UTC), a
// timezone-less timestamp (interpreted as UTC) or an RFC 3339 timestamp.
func ParseTime(s string) (time.Time, error) {
	layouts := []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339Nano}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q: want YYYY-MM-DD or RFC 3339", s)
}
