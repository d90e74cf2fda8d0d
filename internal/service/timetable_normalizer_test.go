package service

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cms-timetable/internal/models"
)

func ptr[T any](v T) *T {
	return &v
}

func lessonEvent(id uint, name, room string, weekType *string) models.CMSEvent {
	return models.CMSEvent{
		Type:     ptr(models.CMSEventTypeLesson),
		ID:       ptr(id),
		Name:     ptr(name),
		Room:     ptr(room),
		Teacher:  ptr("Ms. Chen"),
		WeekType: weekType,
	}
}

func ecaEvent(id uint, name, room string, weekType *string) models.CMSEvent {
	event := lessonEvent(id, name, room, weekType)
	event.Type = ptr(models.CMSEventTypeECA)
	return event
}

func emptyWeekdays(periods int) []models.CMSWeekday {
	days := make([]models.CMSWeekday, models.DaysPerWeek)
	for i := range days {
		days[i].Periods = make([]models.CMSPeriod, periods)
	}
	return days
}

func sixPeriodTable() models.PeriodTable {
	return models.DefaultPeriodTable[:6].Clone()
}

func newTestNormalizer(t *testing.T) *TimetableNormalizer {
	t.Helper()
	normalizer, err := NewTimetableNormalizer(sixPeriodTable())
	require.NoError(t, err)
	return normalizer
}

func sampleTimetable() models.CMSTimetable {
	days := emptyWeekdays(6)
	days[0].Periods[1].Events = []models.CMSEvent{lessonEvent(1, "Math", "101", nil)}
	days[0].Periods[2].Events = []models.CMSEvent{
		lessonEvent(2, "Physics", "Lab 1", ptr("A")),
		ecaEvent(3, "Robotics", "Lab 2", ptr("B")),
	}
	return models.CMSTimetable{WeekType: models.CMSWeekTypeA, WeekAPeriods: 2, WeekBPeriods: 2, Weekdays: days}
}

func requireKind(t *testing.T, err error, kind NormalizationKind) *NormalizationError {
	t.Helper()
	var normErr *NormalizationError
	require.Error(t, err)
	require.True(t, errors.As(err, &normErr), "expected NormalizationError, got %T", err)
	require.Equal(t, kind, normErr.Kind)
	return normErr
}

func TestTimetableNormalizerClassifiesSlots(t *testing.T) {
	normalizer := newTestNormalizer(t)

	week, err := normalizer.Normalize(sampleTimetable())
	require.NoError(t, err)

	assert.Equal(t, models.WeekTypeA, week.WeekType)
	monday := week.Days[0]
	assert.Equal(t, time.Monday, monday.Day)
	require.Len(t, monday.Slots, 6)

	assert.Equal(t, models.NewEmptySlot(sixPeriodTable()[0]), monday.Slots[0])
	assert.Equal(t, models.NewSameSlot(models.Event{ID: 1, Type: models.EventTypeLesson, Name: "Math", Room: "101"}, sixPeriodTable()[1]), monday.Slots[1])

	different := monday.Slots[2]
	require.Equal(t, models.SlotKindDifferent, different.Kind)
	assert.Equal(t, models.Event{ID: 2, Type: models.EventTypeLesson, Name: "Physics", Room: "Lab 1"}, *different.WeekA)
	assert.Equal(t, models.Event{ID: 3, Type: models.EventTypeECA, Name: "Robotics", Room: "Lab 2"}, *different.WeekB)
	assert.Nil(t, different.Event)

	for i := 3; i < 6; i++ {
		assert.Equal(t, models.SlotKindEmpty, monday.Slots[i].Kind)
	}
}

func TestTimetableNormalizerSlotTimesFollowPosition(t *testing.T) {
	normalizer := newTestNormalizer(t)

	week, err := normalizer.Normalize(sampleTimetable())
	require.NoError(t, err)

	for d, day := range week.Days {
		assert.Equal(t, models.SchoolDays[d], day.Day)
		for i, slot := range day.Slots {
			assert.Equal(t, sixPeriodTable()[i], slot.Period(), "day %s slot %d", day.Day, i)
		}
	}
}

func TestTimetableNormalizerPairsWeeksInEitherOrder(t *testing.T) {
	normalizer := newTestNormalizer(t)
	raw := sampleTimetable()
	raw.Weekdays[0].Periods[2].Events = []models.CMSEvent{
		ecaEvent(3, "Robotics", "Lab 2", ptr("B")),
		lessonEvent(2, "Physics", "Lab 1", ptr("A")),
	}

	week, err := normalizer.Normalize(raw)
	require.NoError(t, err)

	slot := week.Days[0].Slots[2]
	require.Equal(t, models.SlotKindDifferent, slot.Kind)
	assert.Equal(t, uint(2), slot.WeekA.ID)
	assert.Equal(t, uint(3), slot.WeekB.ID)
}

func TestTimetableNormalizerRejectsBadPairs(t *testing.T) {
	cases := map[string][2]*string{
		"both A":       {ptr("A"), ptr("A")},
		"both B":       {ptr("B"), ptr("B")},
		"missing tag":  {ptr("A"), nil},
		"both missing": {nil, nil},
		"unknown tag":  {ptr("A"), ptr("C")},
		"lower case":   {ptr("a"), ptr("b")},
		"padded":       {ptr(" A"), ptr("B\t")},
		"mixed case":   {ptr("b"), ptr("A")},
	}
	for name, tags := range cases {
		t.Run(name, func(t *testing.T) {
			normalizer := newTestNormalizer(t)
			raw := sampleTimetable()
			raw.Weekdays[3].Periods[4].Events = []models.CMSEvent{
				lessonEvent(7, "English", "301", tags[0]),
				lessonEvent(8, "History", "302", tags[1]),
			}

			week, err := normalizer.Normalize(raw)
			normErr := requireKind(t, err, KindWeekPairing)
			assert.True(t, errors.Is(err, ErrWeekPairing))
			assert.Equal(t, time.Thursday, normErr.Day)
			assert.Equal(t, 4, normErr.Period)
			assert.Equal(t, models.Week{}, week)
		})
	}
}

func TestTimetableNormalizerRejectsThreeEvents(t *testing.T) {
	normalizer := newTestNormalizer(t)
	raw := sampleTimetable()
	raw.Weekdays[2].Periods[3].Events = []models.CMSEvent{
		lessonEvent(1, "Math", "101", ptr("A")),
		lessonEvent(2, "Math", "101", ptr("B")),
		lessonEvent(3, "Math", "101", ptr("A")),
	}

	_, err := normalizer.Normalize(raw)
	normErr := requireKind(t, err, KindStructural)
	assert.True(t, errors.Is(err, ErrStructural))
	assert.Equal(t, time.Wednesday, normErr.Day)
	assert.Equal(t, 3, normErr.Period)
}

func TestTimetableNormalizerRequiresFields(t *testing.T) {
	cases := []struct {
		field  string
		mutate func(*models.CMSEvent)
	}{
		{field: "id", mutate: func(e *models.CMSEvent) { e.ID = nil }},
		{field: "type", mutate: func(e *models.CMSEvent) { e.Type = nil }},
		{field: "name", mutate: func(e *models.CMSEvent) { e.Name = nil }},
		{field: "room", mutate: func(e *models.CMSEvent) { e.Room = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			normalizer := newTestNormalizer(t)
			raw := sampleTimetable()
			tc.mutate(&raw.Weekdays[0].Periods[2].Events[1])

			_, err := normalizer.Normalize(raw)
			normErr := requireKind(t, err, KindFieldMissing)
			assert.True(t, errors.Is(err, ErrFieldMissing))
			assert.Equal(t, tc.field, normErr.Field)
			assert.Equal(t, time.Monday, normErr.Day)
			assert.Equal(t, 2, normErr.Period)
			assert.Equal(t, 1, normErr.Event)
		})
	}
}

func TestTimetableNormalizerIgnoresMissingTeacher(t *testing.T) {
	normalizer := newTestNormalizer(t)
	raw := sampleTimetable()
	raw.Weekdays[0].Periods[1].Events[0].Teacher = nil

	week, err := normalizer.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "Math", week.Days[0].Slots[1].Event.Name)
}

func TestTimetableNormalizerRejectsUnknownEventType(t *testing.T) {
	normalizer := newTestNormalizer(t)
	raw := sampleTimetable()
	raw.Weekdays[4].Periods[5].Events = []models.CMSEvent{lessonEvent(9, "Art", "401", nil)}
	raw.Weekdays[4].Periods[5].Events[0].Type = ptr(models.CMSEventType(9))

	_, err := normalizer.Normalize(raw)
	normErr := requireKind(t, err, KindUnrecognizedType)
	assert.True(t, errors.Is(err, ErrUnrecognizedType))
	assert.Equal(t, time.Friday, normErr.Day)
	assert.Equal(t, 5, normErr.Period)
	assert.Equal(t, "type", normErr.Field)
}

func TestTimetableNormalizerMapsFridayPositionally(t *testing.T) {
	normalizer := newTestNormalizer(t)
	raw := sampleTimetable()
	raw.Weekdays[3].Periods[0].Events = []models.CMSEvent{lessonEvent(20, "Thursday class", "T1", nil)}
	raw.Weekdays[4].Periods[0].Events = []models.CMSEvent{lessonEvent(21, "Friday class", "F1", nil)}

	week, err := normalizer.Normalize(raw)
	require.NoError(t, err)

	friday, ok := week.Day(time.Friday)
	require.True(t, ok)
	assert.Equal(t, "Friday class", friday.Slots[0].Event.Name)
	thursday, ok := week.Day(time.Thursday)
	require.True(t, ok)
	assert.Equal(t, "Thursday class", thursday.Slots[0].Event.Name)
}

func TestTimetableNormalizerPadsShortWeekdays(t *testing.T) {
	normalizer := newTestNormalizer(t)
	raw := sampleTimetable()
	raw.Weekdays[1].Periods = raw.Weekdays[1].Periods[:2]

	week, err := normalizer.Normalize(raw)
	require.NoError(t, err)
	require.Len(t, week.Days[1].Slots, 6)
	assert.Equal(t, models.NewEmptySlot(sixPeriodTable()[5]), week.Days[1].Slots[5])
}

func TestTimetableNormalizerRejectsWeekdayLongerThanTable(t *testing.T) {
	normalizer := newTestNormalizer(t)
	raw := sampleTimetable()
	raw.Weekdays[2].Periods = append(raw.Weekdays[2].Periods, models.CMSPeriod{})

	_, err := normalizer.Normalize(raw)
	normErr := requireKind(t, err, KindPeriodTable)
	assert.True(t, errors.Is(err, ErrPeriodTableMismatch))
	assert.True(t, errors.Is(err, ErrStructural))
	assert.False(t, IsDataError(err))
	assert.Equal(t, time.Wednesday, normErr.Day)
	assert.Equal(t, 6, normErr.Period)
}

func TestTimetableNormalizerRequiresFiveWeekdays(t *testing.T) {
	normalizer := newTestNormalizer(t)
	raw := sampleTimetable()
	raw.Weekdays = raw.Weekdays[:4]

	_, err := normalizer.Normalize(raw)
	normErr := requireKind(t, err, KindStructural)
	assert.Equal(t, time.Friday, normErr.Day)
	assert.True(t, IsDataError(err))
}

func TestTimetableNormalizerWeekendDays(t *testing.T) {
	normalizer := newTestNormalizer(t)

	raw := sampleTimetable()
	raw.Weekdays = append(raw.Weekdays, models.CMSWeekday{Periods: make([]models.CMSPeriod, 6)}, models.CMSWeekday{})
	_, err := normalizer.Normalize(raw)
	require.NoError(t, err)

	raw.Weekdays[6].Periods = []models.CMSPeriod{{Events: []models.CMSEvent{lessonEvent(30, "Sunday", "S", nil)}}}
	_, err = normalizer.Normalize(raw)
	normErr := requireKind(t, err, KindStructural)
	assert.Equal(t, time.Sunday, normErr.Day)
}

func TestTimetableNormalizerRejectsUnknownWeekDescriptor(t *testing.T) {
	normalizer := newTestNormalizer(t)
	raw := sampleTimetable()
	raw.WeekType = models.CMSWeekType("C")

	_, err := normalizer.Normalize(raw)
	requireKind(t, err, KindStructural)
}

func TestTimetableNormalizerReportsFirstViolation(t *testing.T) {
	normalizer := newTestNormalizer(t)
	raw := sampleTimetable()
	raw.Weekdays[1].Periods[0].Events = []models.CMSEvent{lessonEvent(1, "x", "y", ptr("A")), lessonEvent(2, "x", "y", ptr("A"))}
	raw.Weekdays[0].Periods[5].Events = []models.CMSEvent{{}, {}, {}}

	_, err := normalizer.Normalize(raw)
	normErr := requireKind(t, err, KindStructural)
	assert.Equal(t, time.Monday, normErr.Day)
	assert.Equal(t, 5, normErr.Period)
}

func TestTimetableNormalizerIsIdempotent(t *testing.T) {
	normalizer := newTestNormalizer(t)
	raw := sampleTimetable()

	first, err := normalizer.Normalize(raw)
	require.NoError(t, err)
	second, err := normalizer.Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTimetableNormalizerConcurrentUse(t *testing.T) {
	normalizer := newTestNormalizer(t)
	expected, err := normalizer.Normalize(sampleTimetable())
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]models.Week, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			week, err := normalizer.Normalize(sampleTimetable())
			if err == nil {
				results[i] = week
			}
		}(i)
	}
	wg.Wait()
	for _, week := range results {
		assert.Equal(t, expected, week)
	}
}

func TestTimetableNormalizerDecodesCMSPayload(t *testing.T) {
	payload := `{
		"week_type": "B",
		"week_a_periods": 1, "week_b_periods": 1, "duty_periods": 0, "contract_periods": 0,
		"weekdays": [
			{"periods": [{"events": [
				{"type": 1, "id": 10, "name": "Economics", "room": "E1", "teacher": "Mr. Li", "week_type": "A"},
				{"type": 2, "id": 11, "name": "Choir", "room": "Hall", "teacher": null, "week_type": "B"}
			]}]},
			{"periods": []}, {"periods": []}, {"periods": []}, {"periods": []}
		]
	}`
	var raw models.CMSTimetable
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))

	week, err := newTestNormalizer(t).Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, models.WeekTypeB, week.WeekType)
	assert.Equal(t, "Economics", week.Days[0].Slots[0].WeekA.Name)
	assert.Equal(t, models.EventTypeECA, week.Days[0].Slots[0].WeekB.Type)
	assert.Len(t, week.Days[4].Slots, 6)
}

func TestCMSEventTypeDecoderRejectsUnknownDiscriminant(t *testing.T) {
	var event models.CMSEvent
	err := json.Unmarshal([]byte(`{"type": 3}`), &event)
	require.Error(t, err)
}

func TestNewTimetableNormalizerRejectsInvalidTable(t *testing.T) {
	_, err := NewTimetableNormalizer(models.PeriodTable{})
	require.Error(t, err)

	_, err = NewTimetableNormalizer(models.PeriodTable{
		{Start: models.NewClockTime(9, 0), End: models.NewClockTime(9, 40)},
		{Start: models.NewClockTime(9, 30), End: models.NewClockTime(10, 0)},
	})
	require.Error(t, err)
}

func TestNormalizationErrorMessage(t *testing.T) {
	err := &NormalizationError{Kind: KindFieldMissing, Day: time.Tuesday, Period: 3, Event: 0, Field: "room"}
	assert.Equal(t, "event is missing a mandatory field (Tuesday, period 3, event 0, field room)", err.Error())
}
