package models

import "time"

// DaysPerWeek is the number of school days in a normalized week.
const DaysPerWeek = 5

// SchoolDays lists the weekdays in the order they appear in a Week.
var SchoolDays = [DaysPerWeek]time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
}

// WeekType identifies one of the two alternating physical weeks.
type WeekType string

const (
	WeekTypeA WeekType = "A"
	WeekTypeB WeekType = "B"
)

// Other returns the alternate week type.
func (w WeekType) Other() WeekType {
	if w == WeekTypeA {
		return WeekTypeB
	}
	return WeekTypeA
}

// EventType classifies a normalized event.
type EventType string

const (
	EventTypeLesson EventType = "LESSON"
	EventTypeECA    EventType = "ECA"
)

// Event is a validated timetable entry.
type Event struct {
	ID   uint      `json:"id"`
	Type EventType `json:"type"`
	Name string    `json:"name"`
	Room string    `json:"room"`
}

// SlotKind tags the variant held by a TimeSlot.
type SlotKind string

const (
	SlotKindEmpty     SlotKind = "EMPTY"
	SlotKindSame      SlotKind = "SAME"
	SlotKindDifferent SlotKind = "DIFFERENT"
)

// TimeSlot is the classified content of a period. Event is set only for SAME,
// WeekA and WeekB only for DIFFERENT. Build slots with the New*Slot constructors.
type TimeSlot struct {
	Kind  SlotKind  `json:"kind"`
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
	Event *Event    `json:"event,omitempty"`
	WeekA *Event    `json:"week_a,omitempty"`
	WeekB *Event    `json:"week_b,omitempty"`
}

// NewEmptySlot builds a slot with no event.
func NewEmptySlot(period PeriodTime) TimeSlot {
	return TimeSlot{Kind: SlotKindEmpty, Start: period.Start, End: period.End}
}

// NewSameSlot builds a slot holding one event for both weeks.
func NewSameSlot(event Event, period PeriodTime) TimeSlot {
	return TimeSlot{Kind: SlotKindSame, Start: period.Start, End: period.End, Event: &event}
}

// NewDifferentSlot builds a slot whose event depends on the week type.
func NewDifferentSlot(weekA, weekB Event, period PeriodTime) TimeSlot {
	return TimeSlot{Kind: SlotKindDifferent, Start: period.Start, End: period.End, WeekA: &weekA, WeekB: &weekB}
}

// Period returns the slot's time range.
func (s TimeSlot) Period() PeriodTime {
	return PeriodTime{Start: s.Start, End: s.End}
}

// EventFor returns the event that takes place in the given week, if any.
func (s TimeSlot) EventFor(week WeekType) (Event, bool) {
	switch s.Kind {
	case SlotKindSame:
		return *s.Event, true
	case SlotKindDifferent:
		if week == WeekTypeA {
			return *s.WeekA, true
		}
		return *s.WeekB, true
	default:
		return Event{}, false
	}
}

// Weekday is the ordered list of slots for one school day.
type Weekday struct {
	Day   time.Weekday `json:"day"`
	Slots []TimeSlot   `json:"slots"`
}

// Week is a normalized Monday to Friday timetable. WeekType is the physical
// week the CMS reported as current when the timetable was fetched.
type Week struct {
	WeekType WeekType             `json:"week_type"`
	Days     [DaysPerWeek]Weekday `json:"days"`
}

// Day returns the weekday entry for day, reporting false on weekends.
func (w Week) Day(day time.Weekday) (Weekday, bool) {
	for i, schoolDay := range SchoolDays {
		if schoolDay == day {
			return w.Days[i], true
		}
	}
	return Weekday{}, false
}
