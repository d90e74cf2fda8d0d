package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ClockTime is a wall-clock time of day packed as hour<<16 | minute.
// Comparing two packed values orders them by hour, then minute.
type ClockTime uint32

// NewClockTime packs the given hour and minute.
func NewClockTime(hour, minute uint16) ClockTime {
	return ClockTime(uint32(hour)<<16 | uint32(minute))
}

// ParseClockTime parses an HH:MM string.
func ParseClockTime(raw string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q, expected HH:MM", raw)
	}
	hour, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || hour > 23 {
		return 0, fmt.Errorf("invalid hour in clock time %q", raw)
	}
	minute, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || minute > 59 {
		return 0, fmt.Errorf("invalid minute in clock time %q", raw)
	}
	return NewClockTime(uint16(hour), uint16(minute)), nil
}

// Hour returns the hour component.
func (t ClockTime) Hour() int {
	return int(uint32(t) >> 16)
}

// Minute returns the minute component.
func (t ClockTime) Minute() int {
	return int(uint32(t) & 0xFFFF)
}

// Before reports whether t is earlier in the day than other.
func (t ClockTime) Before(other ClockTime) bool {
	return t < other
}

// Minutes returns the number of minutes since midnight.
func (t ClockTime) Minutes() int {
	return t.Hour()*60 + t.Minute()
}

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// MarshalText encodes the time as HH:MM.
func (t ClockTime) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes an HH:MM value.
func (t *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
