package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/cms-timetable/internal/dto"
	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
	"github.com/noah-isme/cms-timetable/pkg/jobs"
)

// Background job types.
const (
	JobTypeTimetableRefresh = "timetable.refresh"
	JobTypeExportCleanup    = "exports.cleanup"
)

type timetableRefresher interface {
	Refresh(ctx context.Context, year int) (*dto.TimetableView, error)
	Year(year int) int
}

type exportCleaner interface {
	Cleanup() ([]string, error)
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
}

// RefreshWorker executes refresh and cleanup jobs taken from the queue.
type RefreshWorker struct {
	timetables timetableRefresher
	exports    exportCleaner
	cache      *CacheService
	logger     *zap.Logger
}

// NewRefreshWorker constructs a worker. exports and cache may be nil.
func NewRefreshWorker(timetables timetableRefresher, exports exportCleaner, cache *CacheService, logger *zap.Logger) *RefreshWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefreshWorker{timetables: timetables, exports: exports, cache: cache, logger: logger}
}

// Handle processes a queue job. Failures that another attempt cannot fix are
// marked permanent.
func (w *RefreshWorker) Handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobTypeTimetableRefresh:
		year, _ := job.Payload.(int)
		view, err := w.timetables.Refresh(ctx, year)
		if err != nil {
			if !retryableRefreshError(err) {
				return jobs.Permanent(err)
			}
			return err
		}
		if err := w.cache.Invalidate(ctx, CacheNamespaceProfile); err != nil {
			w.logger.Warn("failed to invalidate profile cache", zap.Error(err))
		}
		w.logger.Info("timetable refreshed",
			zap.String("job_id", job.ID),
			zap.Int("year", view.Year),
			zap.String("week_type", string(view.Week.WeekType)),
			zap.Int("attempt", job.Attempt),
		)
		return nil
	case JobTypeExportCleanup:
		if w.exports == nil {
			return nil
		}
		_, err := w.exports.Cleanup()
		return err
	default:
		return jobs.Permanent(fmt.Errorf("unknown job type %q", job.Type))
	}
}

// retryableRefreshError reports whether a refresh may succeed on retry.
// Rejected timetables and refused credentials do not change within a backoff.
func retryableRefreshError(err error) bool {
	switch {
	case errors.Is(err, appErrors.ErrTimetableInvalid),
		errors.Is(err, appErrors.ErrTimetableConfig),
		errors.Is(err, appErrors.ErrCMSUnauthorized),
		errors.Is(err, appErrors.ErrCMSPayload):
		return false
	}
	return true
}

// RefreshSchedulerConfig configures the cron schedules.
type RefreshSchedulerConfig struct {
	// Cron is a standard five field expression evaluated in Location.
	Cron            string
	CleanupInterval time.Duration
	Location        *time.Location
}

// RefreshService schedules timetable refreshes onto the job queue.
type RefreshService struct {
	queue      jobQueue
	timetables timetableRefresher
	cron       *cron.Cron
	logger     *zap.Logger
}

// NewRefreshService validates the schedules and registers them. An empty
// Cron disables scheduled refreshes, a zero CleanupInterval disables cleanup.
func NewRefreshService(queue jobQueue, timetables timetableRefresher, cfg RefreshSchedulerConfig, logger *zap.Logger) (*RefreshService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &RefreshService{
		queue:      queue,
		timetables: timetables,
		cron:       cron.New(cron.WithLocation(cfg.Location), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:     logger,
	}

	if cfg.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Cron); err != nil {
			return nil, fmt.Errorf("invalid refresh schedule %q: %w", cfg.Cron, err)
		}
		if _, err := s.cron.AddFunc(cfg.Cron, func() { s.enqueueScheduled() }); err != nil {
			return nil, fmt.Errorf("register refresh schedule: %w", err)
		}
	}
	if cfg.CleanupInterval > 0 {
		spec := "@every " + cfg.CleanupInterval.String()
		if _, err := s.cron.AddFunc(spec, func() { s.enqueueCleanup() }); err != nil {
			return nil, fmt.Errorf("register export cleanup: %w", err)
		}
	}
	return s, nil
}

// Start runs the schedules in the background.
func (s *RefreshService) Start() {
	s.cron.Start()
	s.logger.Info("refresh scheduler started", zap.Int("schedules", len(s.cron.Entries())))
}

// Stop halts the schedules and waits for running callbacks.
func (s *RefreshService) Stop() {
	<-s.cron.Stop().Done()
}

// TriggerNow queues a refresh of year. A refresh of the same year that is
// already queued or running is reported with jobs.ErrDuplicate.
func (s *RefreshService) TriggerNow(year int) (jobs.Job, error) {
	year = s.timetables.Year(year)
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    JobTypeTimetableRefresh,
		Key:     JobTypeTimetableRefresh + ":" + strconv.Itoa(year),
		Payload: year,
	}
	if err := s.queue.Enqueue(job); err != nil {
		return job, err
	}
	return job, nil
}

func (s *RefreshService) enqueueScheduled() {
	job, err := s.TriggerNow(0)
	switch {
	case errors.Is(err, jobs.ErrDuplicate):
		s.logger.Debug("scheduled refresh skipped, one is in flight", zap.String("key", job.Key))
	case err != nil:
		s.logger.Warn("failed to queue scheduled refresh", zap.Error(err))
	default:
		s.logger.Info("scheduled refresh queued", zap.String("job_id", job.ID), zap.Any("year", job.Payload))
	}
}

func (s *RefreshService) enqueueCleanup() {
	job := jobs.Job{ID: uuid.NewString(), Type: JobTypeExportCleanup, Key: JobTypeExportCleanup}
	if err := s.queue.Enqueue(job); err != nil && !errors.Is(err, jobs.ErrDuplicate) {
		s.logger.Warn("failed to queue export cleanup", zap.Error(err))
	}
}
