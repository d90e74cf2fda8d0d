package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSlotEventFor(t *testing.T) {
	period := DefaultPeriodTable[0]
	math := Event{ID: 1, Type: EventTypeLesson, Name: "Math", Room: "101"}
	art := Event{ID: 2, Type: EventTypeECA, Name: "Art", Room: "Studio"}

	_, ok := NewEmptySlot(period).EventFor(WeekTypeA)
	assert.False(t, ok)

	event, ok := NewSameSlot(math, period).EventFor(WeekTypeB)
	require.True(t, ok)
	assert.Equal(t, math, event)

	different := NewDifferentSlot(math, art, period)
	event, ok = different.EventFor(WeekTypeA)
	require.True(t, ok)
	assert.Equal(t, math, event)
	event, ok = different.EventFor(WeekTypeB)
	require.True(t, ok)
	assert.Equal(t, art, event)
}

func TestTimeSlotSurvivesJSON(t *testing.T) {
	slot := NewDifferentSlot(Event{ID: 1, Type: EventTypeLesson, Name: "Math", Room: "101"}, Event{ID: 2, Type: EventTypeECA, Name: "Art", Room: "S"}, DefaultPeriodTable[3])
	data, err := json.Marshal(slot)
	require.NoError(t, err)

	var decoded TimeSlot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, slot, decoded)
	assert.Equal(t, DefaultPeriodTable[3], decoded.Period())
}

func TestWeekDayLookup(t *testing.T) {
	var week Week
	for i, day := range SchoolDays {
		week.Days[i] = Weekday{Day: day}
	}
	friday, ok := week.Day(time.Friday)
	require.True(t, ok)
	assert.Equal(t, time.Friday, friday.Day)

	_, ok = week.Day(time.Saturday)
	assert.False(t, ok)
}

func TestWeekTypeOther(t *testing.T) {
	assert.Equal(t, WeekTypeB, WeekTypeA.Other())
	assert.Equal(t, WeekTypeA, WeekTypeB.Other())
}

func TestCMSEnumsRejectUnknownValues(t *testing.T) {
	var info CMSBasicInfo
	require.NoError(t, json.Unmarshal([]byte(`{"gender":"Female","grade":"A1","house":"Fire"}`), &info))
	assert.Equal(t, HouseFire, info.House)

	assert.Error(t, json.Unmarshal([]byte(`{"gender":"Other"}`), &info))
	assert.Error(t, json.Unmarshal([]byte(`{"grade":"G3"}`), &info))
	assert.Error(t, json.Unmarshal([]byte(`{"house":"Earth"}`), &info))

	var timetable CMSTimetable
	assert.Error(t, json.Unmarshal([]byte(`{"week_type":"C"}`), &timetable))
}
