package models

import (
	"encoding/json"
	"fmt"
)

// CMSWeekType is the week descriptor reported at the top level of a CMS timetable.
type CMSWeekType string

const (
	CMSWeekTypeA CMSWeekType = "A"
	CMSWeekTypeB CMSWeekType = "B"
)

// UnmarshalJSON rejects anything other than "A" or "B".
func (w *CMSWeekType) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("week_type: %w", err)
	}
	switch CMSWeekType(raw) {
	case CMSWeekTypeA, CMSWeekTypeB:
		*w = CMSWeekType(raw)
		return nil
	default:
		return fmt.Errorf("week_type: invalid value %q", raw)
	}
}

// CMSEventType is the integer discriminant the CMS uses for event kinds.
type CMSEventType uint8

const (
	CMSEventTypeLesson CMSEventType = 1
	CMSEventTypeECA    CMSEventType = 2
)

// Valid reports whether the discriminant is known.
func (t CMSEventType) Valid() bool {
	return t == CMSEventTypeLesson || t == CMSEventTypeECA
}

// UnmarshalJSON decodes the discriminant and rejects unknown values.
func (t *CMSEventType) UnmarshalJSON(data []byte) error {
	var raw uint8
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("event type: %w", err)
	}
	value := CMSEventType(raw)
	if !value.Valid() {
		return fmt.Errorf("event type: invalid discriminant %d", raw)
	}
	*t = value
	return nil
}

// CMSTimetable is the timetable document returned by /api/legacy/students/my/timetable.
type CMSTimetable struct {
	WeekType        CMSWeekType  `json:"week_type"`
	WeekAPeriods    uint         `json:"week_a_periods"`
	WeekBPeriods    uint         `json:"week_b_periods"`
	DutyPeriods     uint         `json:"duty_periods"`
	ContractPeriods uint         `json:"contract_periods"`
	Weekdays        []CMSWeekday `json:"weekdays"`
}

// CMSWeekday holds the periods of one day, position i being period i.
type CMSWeekday struct {
	Periods []CMSPeriod `json:"periods"`
}

// CMSPeriod holds the raw events scheduled in a single period.
type CMSPeriod struct {
	Events []CMSEvent `json:"events"`
}

// CMSEvent is a raw event. The CMS omits any of these fields unpredictably.
// WeekType stays free text because the CMS is inconsistent about it.
type CMSEvent struct {
	Type     *CMSEventType `json:"type"`
	ID       *uint         `json:"id"`
	Name     *string       `json:"name"`
	Room     *string       `json:"room"`
	Teacher  *string       `json:"teacher"`
	WeekType *string       `json:"week_type"`
}
