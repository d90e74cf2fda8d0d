package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
)

// Cache namespaces. Bump the version when the cached shape changes.
const (
	CacheNamespaceTimetable = "timetable"
	CacheNamespaceProfile   = "profile"

	cacheKeyPrefix = "cms-timetable:v1"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService wraps a CacheRepository with namespaced keys, per-namespace
// TTLs and metrics. Cache failures are logged and treated as misses.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	ttls       map[string]time.Duration
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service. ttls maps namespace to TTL.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttls map[string]time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttls: ttls, defaultTTL: 10 * time.Minute, logger: logger, enabled: enabled}
}

// Key builds the cache key for namespace and parts.
func Key(namespace string, parts ...string) string {
	return strings.Join(append([]string{cacheKeyPrefix, namespace}, parts...), ":")
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get loads namespace/parts into dest and reports whether it was found.
func (s *CacheService) Get(ctx context.Context, namespace string, dest interface{}, parts ...string) bool {
	if !s.Enabled() {
		return false
	}
	key := Key(namespace, parts...)
	err := s.repo.Get(ctx, key, dest)
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	s.metrics.RecordCacheLookup(namespace, err == nil)
	return err == nil
}

// Set stores value under namespace/parts with the namespace TTL.
func (s *CacheService) Set(ctx context.Context, namespace string, value interface{}, parts ...string) {
	if !s.Enabled() {
		return
	}
	key := Key(namespace, parts...)
	ttl, ok := s.ttls[namespace]
	if !ok || ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes every entry of namespace.
func (s *CacheService) Invalidate(ctx context.Context, namespace string) error {
	if !s.Enabled() {
		return nil
	}
	pattern := Key(namespace, "*")
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return fmt.Errorf("invalidate %s: %w", namespace, err)
	}
	return nil
}
