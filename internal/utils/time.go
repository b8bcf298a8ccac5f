package utils

import (
	"time"

	"github.com/julianstephens/habio/internal/constants"
)

// StartOfDay returns midnight of t's calendar day in t's location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day in loc
func SameDay(a, b time.Time, loc *time.Location) bool {
	return a.In(loc).Format(constants.DateFormat) == b.In(loc).Format(constants.DateFormat)
}

// FormatDay renders t's local date as YYYY-MM-DD
func FormatDay(t time.Time) string {
	return t.Format(constants.DateFormat)
}
