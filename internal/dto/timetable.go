package dto

import (
	"time"

	"github.com/noah-isme/cms-timetable/internal/models"
)

// TimetableSource tells where a served timetable came from.
type TimetableSource string

const (
	SourceCMS      TimetableSource = "cms"
	SourceCache    TimetableSource = "cache"
	SourceSnapshot TimetableSource = "snapshot"
)

// TimetableStats carries the CMS period counters verbatim.
type TimetableStats struct {
	WeekAPeriods    uint `json:"week_a_periods"`
	WeekBPeriods    uint `json:"week_b_periods"`
	DutyPeriods     uint `json:"duty_periods"`
	ContractPeriods uint `json:"contract_periods"`
}

// TimetableView is the normalized timetable returned by GET /timetable.
type TimetableView struct {
	Year       int                `json:"year"`
	Week       models.Week        `json:"week"`
	Periods    models.PeriodTable `json:"periods"`
	Stats      TimetableStats     `json:"stats"`
	FetchedAt  time.Time          `json:"fetched_at"`
	Source     TimetableSource    `json:"source"`
	SnapshotID string             `json:"snapshot_id,omitempty"`
}

// TimetableQuery is bound from the query string of timetable routes.
type TimetableQuery struct {
	Year int `form:"year" validate:"omitempty,min=2000,max=2100"`
}

// TodayQuery selects a date; an empty date means today in the school time zone.
type TodayQuery struct {
	Year int    `form:"year" validate:"omitempty,min=2000,max=2100"`
	Date string `form:"date" validate:"omitempty,datetime=2006-01-02"`
}

// TodaySlot is a slot collapsed to the event of the resolved week.
type TodaySlot struct {
	Period int              `json:"period"`
	Start  models.ClockTime `json:"start"`
	End    models.ClockTime `json:"end"`
	Event  *models.Event    `json:"event,omitempty"`
}

// TodayView is the schedule of a single date.
type TodayView struct {
	Date      string          `json:"date"`
	Day       string          `json:"day"`
	WeekType  models.WeekType `json:"week_type"`
	SchoolDay bool            `json:"school_day"`
	Slots     []TodaySlot     `json:"slots"`
}

// OccurrenceQuery bounds an occurrence expansion, both dates inclusive.
type OccurrenceQuery struct {
	Year int    `form:"year" validate:"omitempty,min=2000,max=2100"`
	From string `form:"from" validate:"required,datetime=2006-01-02"`
	To   string `form:"to" validate:"required,datetime=2006-01-02"`
}

// Occurrence is one dated instance of a timetable event.
type Occurrence struct {
	Date     string          `json:"date"`
	Period   int             `json:"period"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	WeekType models.WeekType `json:"week_type"`
	Event    models.Event    `json:"event"`
}

// CalendarQuery controls the iCalendar feed length in weeks.
type CalendarQuery struct {
	Year  int `form:"year" validate:"omitempty,min=2000,max=2100"`
	Weeks int `form:"weeks" validate:"omitempty,min=1,max=52"`
}

// SnapshotQuery lists stored CMS snapshots.
type SnapshotQuery struct {
	Year  int `form:"year" validate:"omitempty,min=2000,max=2100"`
	Limit int `form:"limit" validate:"omitempty,min=1,max=100"`
}

// RefreshQuery selects a forced refresh; Async queues it instead of waiting.
type RefreshQuery struct {
	Year  int  `form:"year" validate:"omitempty,min=2000,max=2100"`
	Async bool `form:"async"`
}

// RefreshJobResponse reports a queued background refresh. Queued is false
// when a refresh of the same year was already in flight.
type RefreshJobResponse struct {
	JobID  string `json:"job_id,omitempty"`
	Year   int    `json:"year"`
	Queued bool   `json:"queued"`
}
