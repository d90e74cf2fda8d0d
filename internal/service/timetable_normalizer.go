package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/cms-timetable/internal/models"
)

// maxCMSWeekdays bounds the weekdays a CMS payload may carry (Monday to Sunday).
const maxCMSWeekdays = 7

// TimetableNormalizer turns CMS timetables into week-aware schedules aligned to
// a fixed period table. It holds no mutable state and is safe for concurrent use.
type TimetableNormalizer struct {
	periods models.PeriodTable
}

// NewTimetableNormalizer validates and copies the period table.
func NewTimetableNormalizer(periods models.PeriodTable) (*TimetableNormalizer, error) {
	if err := periods.Validate(); err != nil {
		return nil, fmt.Errorf("period table: %w", err)
	}
	return &TimetableNormalizer{periods: periods.Clone()}, nil
}

// Periods returns a copy of the configured period table.
func (n *TimetableNormalizer) Periods() models.PeriodTable {
	return n.periods.Clone()
}

// Normalize validates raw and classifies every period of Monday to Friday.
// The first violation aborts the conversion; no partial week is returned.
func (n *TimetableNormalizer) Normalize(raw models.CMSTimetable) (models.Week, error) {
	weekType, err := toDomainWeekType(raw.WeekType)
	if err != nil {
		return models.Week{}, err
	}

	if len(raw.Weekdays) < models.DaysPerWeek {
		missing := models.SchoolDays[len(raw.Weekdays)]
		return models.Week{}, structuralError(missing, noPosition, "timetable has %d weekdays, %d are required", len(raw.Weekdays), models.DaysPerWeek)
	}
	if len(raw.Weekdays) > maxCMSWeekdays {
		return models.Week{}, structuralError(noDay, noPosition, "timetable has %d weekdays, at most %d are supported", len(raw.Weekdays), maxCMSWeekdays)
	}

	week := models.Week{WeekType: weekType}
	for i, day := range models.SchoolDays {
		normalized, err := n.normalizeDay(day, raw.Weekdays[i])
		if err != nil {
			return models.Week{}, err
		}
		week.Days[i] = normalized
	}

	for i := models.DaysPerWeek; i < len(raw.Weekdays); i++ {
		day := time.Weekday((i + 1) % maxCMSWeekdays)
		for p, period := range raw.Weekdays[i].Periods {
			if len(period.Events) > 0 {
				return models.Week{}, structuralError(day, p, "events scheduled outside Monday to Friday")
			}
		}
	}

	return week, nil
}

func (n *TimetableNormalizer) normalizeDay(day time.Weekday, raw models.CMSWeekday) (models.Weekday, error) {
	slots := make([]models.TimeSlot, 0, len(n.periods))
	for i, period := range raw.Periods {
		times, err := n.periods.Lookup(i)
		if err != nil {
			return models.Weekday{}, &NormalizationError{
				Kind:   KindPeriodTable,
				Day:    day,
				Period: i,
				Event:  noPosition,
				Detail: fmt.Sprintf("weekday has %d periods: %v", len(raw.Periods), err),
			}
		}
		slot, err := normalizePeriod(day, i, period.Events, times)
		if err != nil {
			return models.Weekday{}, err
		}
		slots = append(slots, slot)
	}
	for i := len(raw.Periods); i < len(n.periods); i++ {
		slots = append(slots, models.NewEmptySlot(n.periods[i]))
	}
	return models.Weekday{Day: day, Slots: slots}, nil
}

func normalizePeriod(day time.Weekday, period int, events []models.CMSEvent, times models.PeriodTime) (models.TimeSlot, error) {
	switch len(events) {
	case 0:
		return models.NewEmptySlot(times), nil
	case 1:
		event, err := toDomainEvent(day, period, 0, events[0])
		if err != nil {
			return models.TimeSlot{}, err
		}
		return models.NewSameSlot(event, times), nil
	case 2:
		aIndex, bIndex, err := pairWeeks(day, period, events)
		if err != nil {
			return models.TimeSlot{}, err
		}
		weekA, err := toDomainEvent(day, period, aIndex, events[aIndex])
		if err != nil {
			return models.TimeSlot{}, err
		}
		weekB, err := toDomainEvent(day, period, bIndex, events[bIndex])
		if err != nil {
			return models.TimeSlot{}, err
		}
		return models.NewDifferentSlot(weekA, weekB, times), nil
	default:
		return models.TimeSlot{}, structuralError(day, period, "%d events in one period, at most 2 are supported", len(events))
	}
}

// pairWeeks returns the indexes of the week A and week B events.
func pairWeeks(day time.Weekday, period int, events []models.CMSEvent) (int, int, error) {
	first, second := weekTag(events[0].WeekType), weekTag(events[1].WeekType)
	switch {
	case first == models.WeekTypeA && second == models.WeekTypeB:
		return 0, 1, nil
	case first == models.WeekTypeB && second == models.WeekTypeA:
		return 1, 0, nil
	}
	return 0, 0, &NormalizationError{
		Kind:   KindWeekPairing,
		Day:    day,
		Period: period,
		Event:  noPosition,
		Field:  "week_type",
		Detail: fmt.Sprintf("got %s and %s", describeTag(events[0].WeekType), describeTag(events[1].WeekType)),
	}
}

func weekTag(raw *string) models.WeekType {
	if raw == nil {
		return ""
	}
	return models.WeekType(*raw)
}

func describeTag(raw *string) string {
	if raw == nil {
		return "<missing>"
	}
	return fmt.Sprintf("%q", *raw)
}

func toDomainEvent(day time.Weekday, period, index int, raw models.CMSEvent) (models.Event, error) {
	missing := func(field string) error {
		return &NormalizationError{Kind: KindFieldMissing, Day: day, Period: period, Event: index, Field: field}
	}
	switch {
	case raw.ID == nil:
		return models.Event{}, missing("id")
	case raw.Type == nil:
		return models.Event{}, missing("type")
	case raw.Name == nil:
		return models.Event{}, missing("name")
	case raw.Room == nil:
		return models.Event{}, missing("room")
	}

	eventType, err := toDomainEventType(*raw.Type)
	if err != nil {
		return models.Event{}, &NormalizationError{
			Kind:   KindUnrecognizedType,
			Day:    day,
			Period: period,
			Event:  index,
			Field:  "type",
			Detail: err.Error(),
		}
	}

	return models.Event{ID: *raw.ID, Type: eventType, Name: *raw.Name, Room: *raw.Room}, nil
}

func toDomainEventType(raw models.CMSEventType) (models.EventType, error) {
	switch raw {
	case models.CMSEventTypeLesson:
		return models.EventTypeLesson, nil
	case models.CMSEventTypeECA:
		return models.EventTypeECA, nil
	default:
		return "", fmt.Errorf("discriminant %d", uint8(raw))
	}
}

func toDomainWeekType(raw models.CMSWeekType) (models.WeekType, error) {
	switch raw {
	case models.CMSWeekTypeA:
		return models.WeekTypeA, nil
	case models.CMSWeekTypeB:
		return models.WeekTypeB, nil
	default:
		return "", structuralError(noDay, noPosition, "week descriptor %q is neither A nor B", string(raw))
	}
}

// normalizationKind reports the kind of a normalization failure for metrics labels.
func normalizationKind(err error) string {
	var normErr *NormalizationError
	if errors.As(err, &normErr) {
		return string(normErr.Kind)
	}
	return "UNKNOWN"
}
