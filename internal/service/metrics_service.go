package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/cms-timetable/internal/models"
)

// Normalization outcome reported when a timetable converts cleanly.
const normalizationOK = "OK"

// MetricsService wraps Prometheus instrumentation and keeps counters for the
// JSON snapshot endpoint.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheWrite      prometheus.Observer
	cmsDuration     *prometheus.HistogramVec
	normalizations  *prometheus.CounterVec
	snapshotServes  prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
	lastRefresh     prometheus.Gauge

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	cmsRequestCount      uint64
	cmsFailureCount      uint64
	snapshotServeCount   uint64
	lastRefreshUnix      int64

	mu             sync.Mutex
	normalizeCount map[string]uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by namespace and result",
	}, []string{"namespace", "result"})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cmsDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cms_request_duration_seconds",
		Help:    "Duration of school CMS requests",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"endpoint", "outcome"})

	normalizations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_normalizations_total",
		Help: "Timetable normalization outcomes by failure kind",
	}, []string{"result"})

	snapshotServes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_snapshot_serves_total",
		Help: "Timetables served from a stored snapshot because the CMS failed",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	lastRefresh := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_last_refresh_timestamp_seconds",
		Help: "Unix time of the last successful timetable fetch from the CMS",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLookups, cacheWrite, cmsDuration, normalizations, snapshotServes, dbQueryDuration, lastRefresh, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLookups:    cacheLookups,
		cacheWrite:      cacheWrite,
		cmsDuration:     cmsDuration,
		normalizations:  normalizations,
		snapshotServes:  snapshotServes,
		dbQueryDuration: dbQueryDuration,
		lastRefresh:     lastRefresh,
		normalizeCount:  make(map[string]uint64),
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheLookup counts a cache hit or miss for namespace.
func (m *MetricsService) RecordCacheLookup(namespace string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	m.cacheLookups.WithLabelValues(namespace, result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveCMSRequest records one CMS round trip. It satisfies cmsclient.Observer.
func (m *MetricsService) ObserveCMSRequest(endpoint, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cmsDuration.WithLabelValues(endpoint, outcome).Observe(duration.Seconds())
	atomic.AddUint64(&m.cmsRequestCount, 1)
	if outcome != "ok" {
		atomic.AddUint64(&m.cmsFailureCount, 1)
	}
}

// RecordNormalization counts a normalization result; nil err counts as OK.
func (m *MetricsService) RecordNormalization(err error) {
	if m == nil {
		return
	}
	result := normalizationOK
	if err != nil {
		result = normalizationKind(err)
	}
	m.normalizations.WithLabelValues(result).Inc()
	m.mu.Lock()
	m.normalizeCount[result]++
	m.mu.Unlock()
}

// RecordSnapshotServe counts a fallback to a stored snapshot.
func (m *MetricsService) RecordSnapshotServe() {
	if m == nil {
		return
	}
	m.snapshotServes.Inc()
	atomic.AddUint64(&m.snapshotServeCount, 1)
}

// RecordRefresh stores the time of the last successful CMS fetch.
func (m *MetricsService) RecordRefresh(at time.Time) {
	if m == nil {
		return
	}
	m.lastRefresh.Set(float64(at.Unix()))
	atomic.StoreInt64(&m.lastRefreshUnix, at.Unix())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// Snapshot returns aggregated counters for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	m.mu.Lock()
	normalizations := make(map[string]uint64, len(m.normalizeCount))
	for k, v := range m.normalizeCount {
		normalizations[k] = v
	}
	m.mu.Unlock()

	snapshot := models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CMSRequests:              atomic.LoadUint64(&m.cmsRequestCount),
		CMSFailures:              atomic.LoadUint64(&m.cmsFailureCount),
		Normalizations:           normalizations,
		SnapshotServes:           atomic.LoadUint64(&m.snapshotServeCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
	if unix := atomic.LoadInt64(&m.lastRefreshUnix); unix > 0 {
		last := time.Unix(unix, 0).UTC()
		snapshot.LastRefreshAt = &last
	}
	return snapshot
}
