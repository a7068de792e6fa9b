package pkg

import (
	"time"
)

// StartOfWeek returns Monday 00:00 UTC of the week containing t.
// time.Time's zero value is a Monday, so truncating to whole weeks lands on one.
func StartOfWeek(t time.Time) time.Time {
	return StartOfDay(t).Truncate(time.Hour * 168)
}

func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
