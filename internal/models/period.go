package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPeriodOutOfRange is returned when a period index has no configured time range.
var ErrPeriodOutOfRange = errors.New("period index out of range")

// PeriodTime is the wall-clock range of a single timetable period.
type PeriodTime struct {
	Start ClockTime `json:"start" yaml:"start"`
	End   ClockTime `json:"end" yaml:"end"`
}

// PeriodTable maps a zero-based period position to its time range.
type PeriodTable []PeriodTime

// DefaultPeriodTable is the school day used when no table is configured.
var DefaultPeriodTable = PeriodTable{
	{Start: NewClockTime(8, 0), End: NewClockTime(8, 40)},
	{Start: NewClockTime(8, 50), End: NewClockTime(9, 30)},
	{Start: NewClockTime(9, 40), End: NewClockTime(10, 20)},
	{Start: NewClockTime(10, 40), End: NewClockTime(11, 20)},
	{Start: NewClockTime(11, 30), End: NewClockTime(12, 10)},
	{Start: NewClockTime(13, 30), End: NewClockTime(14, 10)},
	{Start: NewClockTime(14, 20), End: NewClockTime(15, 0)},
	{Start: NewClockTime(15, 10), End: NewClockTime(15, 50)},
	{Start: NewClockTime(16, 0), End: NewClockTime(16, 40)},
	{Start: NewClockTime(16, 50), End: NewClockTime(17, 30)},
}

// Lookup returns the range for the period at index.
func (t PeriodTable) Lookup(index int) (PeriodTime, error) {
	if index < 0 || index >= len(t) {
		return PeriodTime{}, fmt.Errorf("%w: %d (table has %d periods)", ErrPeriodOutOfRange, index, len(t))
	}
	return t[index], nil
}

// Validate checks that the table is non-empty and strictly ascending without overlaps.
func (t PeriodTable) Validate() error {
	if len(t) == 0 {
		return errors.New("period table is empty")
	}
	for i, period := range t {
		if !period.Start.Before(period.End) {
			return fmt.Errorf("period %d: start %s is not before end %s", i, period.Start, period.End)
		}
		if i > 0 && period.Start.Before(t[i-1].End) {
			return fmt.Errorf("period %d: starts at %s before period %d ends at %s", i, period.Start, i-1, t[i-1].End)
		}
	}
	return nil
}

// Clone returns an independent copy of the table.
func (t PeriodTable) Clone() PeriodTable {
	out := make(PeriodTable, len(t))
	copy(out, t)
	return out
}

func (t PeriodTable) String() string {
	parts := make([]string, 0, len(t))
	for _, period := range t {
		parts = append(parts, period.Start.String()+"-"+period.End.String())
	}
	return strings.Join(parts, ",")
}

// ParsePeriodTable parses a comma separated list of HH:MM-HH:MM ranges.
func ParsePeriodTable(raw string) (PeriodTable, error) {
	entries := strings.Split(raw, ",")
	table := make(PeriodTable, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		bounds := strings.SplitN(entry, "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("invalid period range %q, expected HH:MM-HH:MM", entry)
		}
		start, err := ParseClockTime(bounds[0])
		if err != nil {
			return nil, err
		}
		end, err := ParseClockTime(bounds[1])
		if err != nil {
			return nil, err
		}
		table = append(table, PeriodTime{Start: start, End: end})
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}
