package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/cms-timetable/internal/dto"
	"github.com/noah-isme/cms-timetable/internal/models"
	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
	"github.com/noah-isme/cms-timetable/pkg/jobs"
	"github.com/noah-isme/cms-timetable/pkg/response"
)

// SourceHeader tells clients whether a timetable came from the CMS, the cache
// or a stored snapshot.
const SourceHeader = "X-Timetable-Source"

const queryDateLayout = "2006-01-02"

type timetableService interface {
	Get(ctx context.Context, year int) (*dto.TimetableView, error)
	Refresh(ctx context.Context, year int) (*dto.TimetableView, error)
	Today(ctx context.Context, year int, date time.Time) (*dto.TodayView, error)
	Snapshots(ctx context.Context, year, limit int) ([]models.TimetableSnapshot, error)
	Location() *time.Location
	Year(year int) int
}

type calendarService interface {
	Occurrences(view *dto.TimetableView, from, to time.Time) ([]dto.Occurrence, error)
	ICS(view *dto.TimetableView, weeks int) ([]byte, error)
}

type exportGenerator interface {
	Generate(ctx context.Context, view *dto.TimetableView, format dto.ExportFormat) (*dto.ExportResponse, error)
}

type refreshTrigger interface {
	TriggerNow(year int) (jobs.Job, error)
}

// TimetableHandler exposes the timetable read, refresh and export endpoints.
type TimetableHandler struct {
	timetables timetableService
	calendar   calendarService
	exports    exportGenerator
	refresher  refreshTrigger
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewTimetableHandler constructs the handler. exports and refresher may be nil
// when those features are disabled.
func NewTimetableHandler(timetables timetableService, calendar calendarService, exports exportGenerator, refresher refreshTrigger, validate *validator.Validate, logger *zap.Logger) *TimetableHandler {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableHandler{
		timetables: timetables,
		calendar:   calendar,
		exports:    exports,
		refresher:  refresher,
		validate:   validate,
		logger:     logger,
	}
}

// Get godoc
// @Summary Normalized timetable
// @Description Returns the week-aware timetable of a school year
// @Tags Timetable
// @Produce json
// @Param year query int false "School year"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Security BearerAuth
// @Router /timetable [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	var query dto.TimetableQuery
	if !bindQuery(c, h.validate, &query) {
		return
	}
	view, err := h.timetables.Get(c.Request.Context(), query.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header(SourceHeader, string(view.Source))
	response.JSON(c, http.StatusOK, view)
}

// Refresh godoc
// @Summary Force a timetable refresh
// @Description Fetches the timetable from the CMS, bypassing the cache. With async=true the refresh is queued.
// @Tags Timetable
// @Produce json
// @Param year query int false "School year"
// @Param async query bool false "Queue the refresh"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Security BearerAuth
// @Router /timetable/refresh [post]
func (h *TimetableHandler) Refresh(c *gin.Context) {
	var query dto.RefreshQuery
	if !bindQuery(c, h.validate, &query) {
		return
	}

	if query.Async {
		if h.refresher == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrFeatureDisabled, "background refresh is disabled"))
			return
		}
		job, err := h.refresher.TriggerNow(query.Year)
		year := h.timetables.Year(query.Year)
		switch {
		case errors.Is(err, jobs.ErrDuplicate):
			response.Accepted(c, dto.RefreshJobResponse{Year: year, Queued: false})
		case err != nil:
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusServiceUnavailable, "refresh queue unavailable"))
		default:
			h.logger.Info("timetable refresh queued", zap.String("operator", operator(c)), zap.String("job_id", job.ID), zap.Int("year", year))
			response.Accepted(c, dto.RefreshJobResponse{JobID: job.ID, Year: year, Queued: true})
		}
		return
	}

	view, err := h.timetables.Refresh(c.Request.Context(), query.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("timetable refreshed on demand", zap.String("operator", operator(c)), zap.Int("year", view.Year))
	c.Header(SourceHeader, string(view.Source))
	response.JSON(c, http.StatusOK, view)
}

// Today godoc
// @Summary Schedule of one day
// @Description Collapses the timetable to the events of the physical week of a date
// @Tags Timetable
// @Produce json
// @Param year query int false "School year"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /timetable/today [get]
func (h *TimetableHandler) Today(c *gin.Context) {
	var query dto.TodayQuery
	if !bindQuery(c, h.validate, &query) {
		return
	}
	var date time.Time
	if query.Date != "" {
		parsed, err := time.ParseInLocation(queryDateLayout, query.Date, h.timetables.Location())
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}
	today, err := h.timetables.Today(c.Request.Context(), query.Year, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, today)
}

// Occurrences godoc
// @Summary Dated timetable events
// @Tags Timetable
// @Produce json
// @Param year query int false "School year"
// @Param from query string true "First date (YYYY-MM-DD)"
// @Param to query string true "Last date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /timetable/occurrences [get]
func (h *TimetableHandler) Occurrences(c *gin.Context) {
	var query dto.OccurrenceQuery
	if !bindQuery(c, h.validate, &query) {
		return
	}
	loc := h.timetables.Location()
	from, errFrom := time.ParseInLocation(queryDateLayout, query.From, loc)
	to, errTo := time.ParseInLocation(queryDateLayout, query.To, loc)
	if errFrom != nil || errTo != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from and to must be YYYY-MM-DD"))
		return
	}

	view, err := h.timetables.Get(c.Request.Context(), query.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	occurrences, err := h.calendar.Occurrences(view, from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header(SourceHeader, string(view.Source))
	response.JSON(c, http.StatusOK, occurrences, map[string]interface{}{
		"from":  query.From,
		"to":    query.To,
		"count": len(occurrences),
	})
}

// Calendar godoc
// @Summary iCalendar feed
// @Tags Timetable
// @Produce text/calendar
// @Param year query int false "School year"
// @Param weeks query int false "Feed length in weeks (1-52)"
// @Success 200 {string} string
// @Security BearerAuth
// @Router /timetable/calendar.ics [get]
func (h *TimetableHandler) Calendar(c *gin.Context) {
	var query dto.CalendarQuery
	if !bindQuery(c, h.validate, &query) {
		return
	}
	view, err := h.timetables.Get(c.Request.Context(), query.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := h.calendar.ICS(view, query.Weeks)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header(SourceHeader, string(view.Source))
	response.Disposition(c, true, fmt.Sprintf("timetable-%d.ics", view.Year))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", body)
}

// Export godoc
// @Summary Generate a timetable export
// @Description Renders the timetable as CSV, PDF or iCalendar and returns a signed download link
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export request"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /timetable/exports [post]
func (h *TimetableHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFeatureDisabled, "exports are disabled"))
		return
	}
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, err.Error()))
		return
	}

	view, err := h.timetables.Get(c.Request.Context(), req.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exports.Generate(c.Request.Context(), view, req.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Snapshots godoc
// @Summary Stored CMS snapshots
// @Tags Timetable
// @Produce json
// @Param year query int false "School year"
// @Param limit query int false "Maximum entries (1-100)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /timetable/snapshots [get]
func (h *TimetableHandler) Snapshots(c *gin.Context) {
	var query dto.SnapshotQuery
	if !bindQuery(c, h.validate, &query) {
		return
	}
	snapshots, err := h.timetables.Snapshots(c.Request.Context(), query.Year, query.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshots, map[string]interface{}{"count": len(snapshots)})
}
