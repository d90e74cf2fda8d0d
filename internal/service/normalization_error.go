package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// NormalizationKind classifies why a timetable could not be normalized.
type NormalizationKind string

const (
	KindStructural       NormalizationKind = "STRUCTURAL"
	KindPeriodTable      NormalizationKind = "PERIOD_TABLE"
	KindFieldMissing     NormalizationKind = "FIELD_MISSING"
	KindUnrecognizedType NormalizationKind = "UNRECOGNIZED_TYPE"
	KindWeekPairing      NormalizationKind = "WEEK_PAIRING"
)

// Sentinels matched with errors.Is. ErrPeriodTableMismatch is also structural.
var (
	ErrStructural          = errors.New("unsupported timetable structure")
	ErrPeriodTableMismatch = fmt.Errorf("%w: weekday has more periods than the period table", ErrStructural)
	ErrFieldMissing        = errors.New("event is missing a mandatory field")
	ErrUnrecognizedType    = errors.New("event type is not recognized")
	ErrWeekPairing         = errors.New("events are not paired as week A and week B")
)

// Position values used when an error does not refer to a specific day, period or event.
const (
	noDay      time.Weekday = -1
	noPosition              = -1
)

// NormalizationError pinpoints the first violation found in a CMS timetable.
type NormalizationError struct {
	Kind   NormalizationKind
	Day    time.Weekday
	Period int
	Event  int
	Field  string
	Detail string
}

func (e *NormalizationError) Error() string {
	location := make([]string, 0, 4)
	if e.Day >= 0 {
		location = append(location, e.Day.String())
	}
	if e.Period >= 0 {
		location = append(location, fmt.Sprintf("period %d", e.Period))
	}
	if e.Event >= 0 {
		location = append(location, fmt.Sprintf("event %d", e.Event))
	}
	if e.Field != "" {
		location = append(location, "field "+e.Field)
	}

	var b strings.Builder
	b.WriteString(e.sentinel().Error())
	if len(location) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(location, ", "))
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// Unwrap exposes the kind sentinel.
func (e *NormalizationError) Unwrap() error {
	return e.sentinel()
}

func (e *NormalizationError) sentinel() error {
	switch e.Kind {
	case KindPeriodTable:
		return ErrPeriodTableMismatch
	case KindFieldMissing:
		return ErrFieldMissing
	case KindUnrecognizedType:
		return ErrUnrecognizedType
	case KindWeekPairing:
		return ErrWeekPairing
	default:
		return ErrStructural
	}
}

// IsDataError reports whether err describes bad CMS data rather than a
// period table that does not fit the payload.
func IsDataError(err error) bool {
	var normErr *NormalizationError
	if !errors.As(err, &normErr) {
		return false
	}
	return normErr.Kind != KindPeriodTable
}

func structuralError(day time.Weekday, period int, format string, args ...any) *NormalizationError {
	return &NormalizationError{Kind: KindStructural, Day: day, Period: period, Event: noPosition, Detail: fmt.Sprintf(format, args...)}
}
