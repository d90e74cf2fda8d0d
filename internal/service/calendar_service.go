package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"

	"github.com/noah-isme/cms-timetable/internal/dto"
	"github.com/noah-isme/cms-timetable/internal/models"
	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
)

const (
	// MaxOccurrenceDays bounds an occurrence expansion, both ends included.
	MaxOccurrenceDays = 62
	// DefaultCalendarWeeks is the feed length used when none is requested.
	DefaultCalendarWeeks = 12

	icalLocalFormat = "20060102T150405"
	icalUTCFormat   = "20060102T150405Z"
	icalProductID   = "-//cms-timetable//timetable feed//EN"
)

// CalendarService projects a normalized week onto the calendar.
type CalendarService struct {
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewCalendarService builds a calendar service for the school time zone.
func NewCalendarService(loc *time.Location, logger *zap.Logger) *CalendarService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{loc: loc, logger: logger, now: time.Now}
}

// recurrence is one recurring series: a slot, or one week side of a
// DIFFERENT slot.
type recurrence struct {
	day      int
	period   int
	slot     models.TimeSlot
	event    models.Event
	weekType models.WeekType
	interval int
	first    time.Time
}

// Occurrences expands view into dated events between from and to, both dates
// inclusive in the school time zone.
func (s *CalendarService) Occurrences(view *dto.TimetableView, from, to time.Time) ([]dto.Occurrence, error) {
	start := s.midnight(from)
	end := s.midnight(to)
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	if days := civilDays(end) - civilDays(start) + 1; days > MaxOccurrenceDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("range spans %d days, at most %d are allowed", days, MaxOccurrenceDays))
	}
	until := end.AddDate(0, 0, 1).Add(-time.Second)

	occurrences := make([]dto.Occurrence, 0)
	for _, rec := range s.recurrences(view, start) {
		rule, err := rrule.NewRRule(rrule.ROption{
			Freq:     rrule.WEEKLY,
			Interval: rec.interval,
			Dtstart:  rec.first,
			Until:    until,
		})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build recurrence rule")
		}
		for _, at := range rule.Between(start, until, true) {
			local := at.In(s.loc)
			weekType := rec.weekType
			if rec.slot.Kind == models.SlotKindSame {
				weekType = ResolveWeekType(view.Week.WeekType, view.FetchedAt, local, s.loc)
			}
			occurrences = append(occurrences, dto.Occurrence{
				Date:     local.Format(dateLayout),
				Period:   rec.period,
				Start:    local,
				End:      s.at(local, rec.slot.End),
				WeekType: weekType,
				Event:    rec.event,
			})
		}
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		if !occurrences[i].Start.Equal(occurrences[j].Start) {
			return occurrences[i].Start.Before(occurrences[j].Start)
		}
		return occurrences[i].Period < occurrences[j].Period
	})
	return occurrences, nil
}

// ICS renders view as an iCalendar document starting the current week and
// recurring for weeks weeks. Each slot, or each side of a DIFFERENT slot,
// becomes one VEVENT carrying an RRULE.
func (s *CalendarService) ICS(view *dto.TimetableView, weeks int) ([]byte, error) {
	if weeks <= 0 {
		weeks = DefaultCalendarWeeks
	}
	start := MondayOf(s.now(), s.loc)
	until := start.AddDate(0, 0, 7*weeks).Add(-time.Second)
	stamp := view.FetchedAt.UTC()
	tzid := &ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{s.loc.String()}}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icalProductID)
	cal.SetName(fmt.Sprintf("Timetable %d", view.Year))

	recurrences := s.recurrences(view, start)
	for _, rec := range recurrences {
		event := cal.AddEvent(recurrenceUID(view.Year, rec))
		event.SetDtStampTime(stamp)
		event.SetProperty(ical.ComponentPropertyDtStart, rec.first.Format(icalLocalFormat), tzid)
		event.SetProperty(ical.ComponentPropertyDtEnd, s.at(rec.first, rec.slot.End).Format(icalLocalFormat), tzid)
		event.SetSummary(rec.event.Name)
		event.SetLocation(rec.event.Room)
		event.SetDescription(describeRecurrence(rec))
		event.AddProperty(ical.ComponentPropertyRrule, fmt.Sprintf("FREQ=WEEKLY;INTERVAL=%d;UNTIL=%s", rec.interval, until.UTC().Format(icalUTCFormat)))
	}

	s.logger.Debug("rendered timetable calendar", zap.Int("year", view.Year), zap.Int("weeks", weeks), zap.Int("events", len(recurrences)))
	return []byte(cal.Serialize()), nil
}

// recurrences lists every recurring series of view whose first instance falls
// in the week starting at the Monday of from.
func (s *CalendarService) recurrences(view *dto.TimetableView, from time.Time) []recurrence {
	monday := MondayOf(from, s.loc)
	mondayType := ResolveWeekType(view.Week.WeekType, view.FetchedAt, monday, s.loc)

	out := make([]recurrence, 0)
	for d, day := range view.Week.Days {
		date := monday.AddDate(0, 0, d)
		for p, slot := range day.Slots {
			first := s.at(date, slot.Start)
			switch slot.Kind {
			case models.SlotKindSame:
				out = append(out, recurrence{day: d, period: p, slot: slot, event: *slot.Event, interval: 1, first: first})
			case models.SlotKindDifferent:
				for _, side := range []models.WeekType{models.WeekTypeA, models.WeekTypeB} {
					event, _ := slot.EventFor(side)
					sideFirst := first
					if side != mondayType {
						sideFirst = s.at(date.AddDate(0, 0, 7), slot.Start)
					}
					out = append(out, recurrence{day: d, period: p, slot: slot, event: event, weekType: side, interval: 2, first: sideFirst})
				}
			}
		}
	}
	return out
}

func (s *CalendarService) midnight(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}

// at places a clock time on the calendar date of day.
func (s *CalendarService) at(day time.Time, clock models.ClockTime) time.Time {
	local := day.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), clock.Hour(), clock.Minute(), 0, 0, s.loc)
}

func recurrenceUID(year int, rec recurrence) string {
	side := "all"
	if rec.weekType != "" {
		side = strings.ToLower(string(rec.weekType))
	}
	return fmt.Sprintf("%d-%s-p%d-%s-%d@cms-timetable", year, strings.ToLower(models.SchoolDays[rec.day].String()[:3]), rec.period, side, rec.event.ID)
}

func describeRecurrence(rec recurrence) string {
	kind := "Lesson"
	if rec.event.Type == models.EventTypeECA {
		kind = "ECA"
	}
	if rec.weekType == "" {
		return fmt.Sprintf("%s, period %d, every week", kind, rec.period+1)
	}
	return fmt.Sprintf("%s, period %d, week %s", kind, rec.period+1, rec.weekType)
}
