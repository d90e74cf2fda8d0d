package service

import (
	"time"

	"github.com/noah-isme/cms-timetable/internal/models"
)

// MondayOf returns local midnight of the Monday starting the week of t in loc.
func MondayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	return time.Date(local.Year(), local.Month(), local.Day()-offset, 0, 0, 0, 0, loc)
}

// ResolveWeekType returns the physical week type of date, given that the week
// containing anchor was anchorType. Week types alternate every Monday.
func ResolveWeekType(anchorType models.WeekType, anchor, date time.Time, loc *time.Location) models.WeekType {
	if weeksBetween(anchor, date, loc)%2 == 0 {
		return anchorType
	}
	return anchorType.Other()
}

// weeksBetween counts calendar weeks from the week of a to the week of b.
func weeksBetween(a, b time.Time, loc *time.Location) int {
	days := civilDays(MondayOf(b, loc)) - civilDays(MondayOf(a, loc))
	return days / 7
}

// civilDays numbers calendar days so DST shifts never skew week arithmetic.
func civilDays(t time.Time) int {
	return int(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
