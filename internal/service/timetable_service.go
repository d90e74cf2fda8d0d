package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/cms-timetable/internal/dto"
	"github.com/noah-isme/cms-timetable/internal/models"
	"github.com/noah-isme/cms-timetable/pkg/cmsclient"
	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
)

const dateLayout = "2006-01-02"

// snapshotRetention is the number of distinct CMS payloads kept per year.
const snapshotRetention = 30

type timetableSource interface {
	Timetable(ctx context.Context, year int) (*models.CMSTimetable, []byte, error)
}

// SnapshotStore keeps raw CMS timetables for replay.
type SnapshotStore interface {
	Save(ctx context.Context, snapshot *models.TimetableSnapshot) error
	Latest(ctx context.Context, year int) (*models.TimetableSnapshot, error)
	List(ctx context.Context, year, limit int) ([]models.TimetableSnapshot, error)
	Prune(ctx context.Context, year, keep int) (int64, error)
}

// TimetableServiceConfig carries the defaults of the timetable service.
type TimetableServiceConfig struct {
	DefaultYear int
	Location    *time.Location
}

// TimetableService serves normalized timetables. Reads go through the cache,
// then the CMS, then the latest stored snapshot when the CMS fails.
// Timetables that fail normalization are never cached or stored.
type TimetableService struct {
	cms        timetableSource
	snapshots  SnapshotStore
	normalizer *TimetableNormalizer
	cache      *CacheService
	metrics    *MetricsService
	logger     *zap.Logger
	config     TimetableServiceConfig
	now        func() time.Time
}

// NewTimetableService wires the timetable read path. snapshots, cache and
// metrics may be nil.
func NewTimetableService(cms timetableSource, snapshots SnapshotStore, normalizer *TimetableNormalizer, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg TimetableServiceConfig) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultYear <= 0 {
		cfg.DefaultYear = time.Now().In(cfg.Location).Year()
	}
	return &TimetableService{
		cms:        cms,
		snapshots:  snapshots,
		normalizer: normalizer,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		config:     cfg,
		now:        time.Now,
	}
}

// Location returns the school time zone.
func (s *TimetableService) Location() *time.Location {
	return s.config.Location
}

// Year maps a zero year to the configured default.
func (s *TimetableService) Year(year int) int {
	if year <= 0 {
		return s.config.DefaultYear
	}
	return year
}

// Get returns the timetable of year.
func (s *TimetableService) Get(ctx context.Context, year int) (*dto.TimetableView, error) {
	year = s.Year(year)

	var cached dto.TimetableView
	if s.cache.Get(ctx, CacheNamespaceTimetable, &cached, strconv.Itoa(year)) {
		cached.Source = dto.SourceCache
		return &cached, nil
	}

	view, err := s.fetch(ctx, year)
	if err == nil {
		return view, nil
	}
	if !isCMSFailure(err) {
		return nil, err
	}

	fallback, fbErr := s.fromSnapshot(ctx, year)
	if fbErr != nil {
		if !errors.Is(fbErr, appErrors.ErrSnapshotNotFound) {
			s.logger.Warn("snapshot fallback failed", zap.Int("year", year), zap.Error(fbErr))
		}
		return nil, err
	}
	s.logger.Warn("serving stored timetable snapshot", zap.Int("year", year), zap.String("snapshot_id", fallback.SnapshotID), zap.Error(err))
	return fallback, nil
}

// Refresh fetches year from the CMS, bypassing the cache and the snapshot fallback.
func (s *TimetableService) Refresh(ctx context.Context, year int) (*dto.TimetableView, error) {
	return s.fetch(ctx, s.Year(year))
}

// Snapshots lists stored CMS payloads of year, newest first.
func (s *TimetableService) Snapshots(ctx context.Context, year, limit int) ([]models.TimetableSnapshot, error) {
	if s.snapshots == nil {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "snapshot storage is not configured")
	}
	return s.snapshots.List(ctx, s.Year(year), limit)
}

// Today returns the slots of date collapsed to the events of its physical week.
// A zero date means now.
func (s *TimetableService) Today(ctx context.Context, year int, date time.Time) (*dto.TodayView, error) {
	view, err := s.Get(ctx, year)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = s.now()
	}
	return BuildTodayView(view, date, s.config.Location), nil
}

// BuildTodayView projects view onto a single date.
func BuildTodayView(view *dto.TimetableView, date time.Time, loc *time.Location) *dto.TodayView {
	local := date.In(loc)
	weekType := ResolveWeekType(view.Week.WeekType, view.FetchedAt, local, loc)
	today := &dto.TodayView{
		Date:     local.Format(dateLayout),
		Day:      local.Weekday().String(),
		WeekType: weekType,
		Slots:    []dto.TodaySlot{},
	}

	day, ok := view.Week.Day(local.Weekday())
	if !ok {
		return today
	}
	today.SchoolDay = true
	for i, slot := range day.Slots {
		entry := dto.TodaySlot{Period: i, Start: slot.Start, End: slot.End}
		if event, ok := slot.EventFor(weekType); ok {
			entry.Event = &event
		}
		today.Slots = append(today.Slots, entry)
	}
	return today
}

func (s *TimetableService) fetch(ctx context.Context, year int) (*dto.TimetableView, error) {
	raw, body, err := s.cms.Timetable(ctx, year)
	if err != nil {
		return nil, err
	}

	fetchedAt := s.now().UTC()
	view, err := s.normalize(year, raw, fetchedAt, dto.SourceCMS)
	if err != nil {
		s.logger.Error("cms timetable rejected", zap.Int("year", year), zap.String("kind", normalizationKind(err)), zap.Error(err))
		return nil, err
	}
	s.metrics.RecordRefresh(fetchedAt)

	if s.snapshots != nil {
		snapshot := &models.TimetableSnapshot{Year: year, WeekType: string(raw.WeekType), Payload: body, FetchedAt: fetchedAt}
		if err := s.snapshots.Save(ctx, snapshot); err != nil {
			s.logger.Warn("failed to store timetable snapshot", zap.Int("year", year), zap.Error(err))
		} else {
			view.SnapshotID = snapshot.ID
			if _, err := s.snapshots.Prune(ctx, year, snapshotRetention); err != nil {
				s.logger.Warn("failed to prune timetable snapshots", zap.Int("year", year), zap.Error(err))
			}
		}
	}

	s.cache.Set(ctx, CacheNamespaceTimetable, view, strconv.Itoa(year))
	return view, nil
}

func (s *TimetableService) fromSnapshot(ctx context.Context, year int) (*dto.TimetableView, error) {
	if s.snapshots == nil {
		return nil, appErrors.ErrSnapshotNotFound
	}
	snapshot, err := s.snapshots.Latest(ctx, year)
	if err != nil {
		return nil, err
	}
	raw, err := cmsclient.DecodeTimetable(snapshot.Payload)
	if err != nil {
		return nil, err
	}
	view, err := s.normalize(year, raw, snapshot.FetchedAt, dto.SourceSnapshot)
	if err != nil {
		return nil, err
	}
	view.SnapshotID = snapshot.ID
	s.metrics.RecordSnapshotServe()
	return view, nil
}

func (s *TimetableService) normalize(year int, raw *models.CMSTimetable, fetchedAt time.Time, source dto.TimetableSource) (*dto.TimetableView, error) {
	week, err := s.normalizer.Normalize(*raw)
	s.metrics.RecordNormalization(err)
	if err != nil {
		return nil, NormalizationFailure(err)
	}
	return &dto.TimetableView{
		Year:    year,
		Week:    week,
		Periods: s.normalizer.Periods(),
		Stats: dto.TimetableStats{
			WeekAPeriods:    raw.WeekAPeriods,
			WeekBPeriods:    raw.WeekBPeriods,
			DutyPeriods:     raw.DutyPeriods,
			ContractPeriods: raw.ContractPeriods,
		},
		FetchedAt: fetchedAt,
		Source:    source,
	}, nil
}

// NormalizationFailure maps a normalization error to its API error: bad CMS
// data is TIMETABLE_INVALID, a period table that is too short is TIMETABLE_CONFIG.
func NormalizationFailure(err error) error {
	if err == nil {
		return nil
	}
	if IsDataError(err) {
		return appErrors.WrapAs(err, appErrors.ErrTimetableInvalid, "")
	}
	return appErrors.WrapAs(err, appErrors.ErrTimetableConfig, "")
}

func isCMSFailure(err error) bool {
	return errors.Is(err, appErrors.ErrCMSUnavailable) ||
		errors.Is(err, appErrors.ErrCMSUnauthorized) ||
		errors.Is(err, appErrors.ErrCMSPayload)
}
