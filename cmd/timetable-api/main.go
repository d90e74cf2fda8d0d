package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/cms-timetable/api/swagger"
	"github.com/noah-isme/cms-timetable/internal/handler"
	"github.com/noah-isme/cms-timetable/internal/repository"
	"github.com/noah-isme/cms-timetable/internal/service"
	"github.com/noah-isme/cms-timetable/pkg/cache"
	"github.com/noah-isme/cms-timetable/pkg/cmsclient"
	"github.com/noah-isme/cms-timetable/pkg/config"
	"github.com/noah-isme/cms-timetable/pkg/database"
	"github.com/noah-isme/cms-timetable/pkg/jobs"
	"github.com/noah-isme/cms-timetable/pkg/logger"
	"github.com/noah-isme/cms-timetable/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

// @title CMS Timetable API
// @version 1.0.0
// @description Week-aware timetables normalized from the school CMS
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()
	validate := validator.New()
	deps := map[string]handler.Pinger{}

	normalizer, err := service.NewTimetableNormalizer(cfg.Timetable.Periods)
	if err != nil {
		return err
	}
	cms, err := cmsclient.New(cmsclient.Config{
		BaseURL:  cfg.CMS.BaseURL,
		Username: cfg.CMS.Username,
		Password: cfg.CMS.Password,
		Timeout:  cfg.CMS.Timeout,
		Retries:  cfg.CMS.Retries,
	}, cmsclient.WithLogger(logr.Named("cms")), cmsclient.WithObserver(metrics))
	if err != nil {
		return err
	}

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		if client := connectRedis(ctx, cfg, logr); client != nil {
			defer client.Close() //nolint:errcheck
			cacheRepo := repository.NewCacheRepository(client, logr)
			deps["redis"] = cacheRepo
			cacheSvc = service.NewCacheService(cacheRepo, metrics, map[string]time.Duration{
				service.CacheNamespaceTimetable: cfg.Cache.TimetableTTL,
				service.CacheNamespaceProfile:   cfg.Cache.ProfileTTL,
			}, logr, true)
		}
	}

	var snapshots service.SnapshotStore
	if db := connectPostgres(ctx, cfg, logr); db != nil {
		defer db.Close() //nolint:errcheck
		repo := repository.NewSnapshotRepository(db, metrics)
		snapshots = repo
		deps["postgres"] = repo
	}

	loc := cfg.Timetable.Location
	timetables := service.NewTimetableService(cms, snapshots, normalizer, cacheSvc, metrics, logr, service.TimetableServiceConfig{
		DefaultYear: cfg.CMS.Year,
		Location:    loc,
	})
	calendar := service.NewCalendarService(loc, logr)
	profiles := service.NewProfileService(cms, cacheSvc, loc, logr)
	auth := service.NewAuthService(validate, logr, service.AuthConfig{
		Username:          cfg.Auth.Username,
		PasswordHash:      cfg.Auth.PasswordHash,
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
	})

	var exports *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			return fmt.Errorf("export storage: %w", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exports = service.NewExportService(store, signer, calendar, service.ExportConfig{APIPrefix: cfg.APIPrefix}, logr, nil, nil)
	}

	worker := service.NewRefreshWorker(timetables, exports, cacheSvc, logr)
	queue := jobs.NewQueue("refresh", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Refresh.Workers,
		MaxRetries: cfg.Refresh.Retries,
		RetryDelay: 5 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	schedule := service.RefreshSchedulerConfig{Location: loc}
	if cfg.Refresh.Enabled {
		schedule.Cron = cfg.Refresh.Cron
	}
	if exports != nil {
		schedule.CleanupInterval = cfg.Exports.CleanupInterval
	}
	refresher, err := service.NewRefreshService(queue, timetables, schedule, logr)
	if err != nil {
		return err
	}
	refresher.Start()
	defer refresher.Stop()

	handlers := handler.Handlers{
		Auth:      handler.NewAuthHandler(auth),
		Timetable: handler.NewTimetableHandler(timetables, calendar, exports, refresher, validate, logr),
		Profile:   handler.NewProfileHandler(profiles),
		Metrics:   handler.NewMetricsHandler(metrics, deps),
	}
	if exports != nil {
		handlers.Export = handler.NewExportHandler(exports)
	}
	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Docs:           cfg.Env != config.EnvProduction,
	}, handlers, auth, metrics, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// connectRedis returns nil when Redis is unreachable; the service then runs uncached.
func connectRedis(ctx context.Context, cfg *config.Config, logr *zap.Logger) *redis.Client {
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.String("host", cfg.Redis.Host), zap.Error(err))
		return nil
	}
	return client
}

// connectPostgres returns nil when PostgreSQL is unreachable; snapshots are then disabled.
func connectPostgres(ctx context.Context, cfg *config.Config, logr *zap.Logger) *sqlx.DB {
	if cfg.Database.Host == "" {
		return nil
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Warn("postgres unavailable, snapshots disabled", zap.String("host", cfg.Database.Host), zap.Error(err))
		return nil
	}
	return db
}
