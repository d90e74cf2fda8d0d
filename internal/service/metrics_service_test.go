package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	metrics := NewMetricsService()

	metrics.ObserveHTTPRequest("GET", "/api/v1/timetable", 200, 20*time.Millisecond)
	metrics.ObserveHTTPRequest("GET", "/api/v1/timetable", 502, 40*time.Millisecond)
	metrics.RecordCacheLookup("timetable", true)
	metrics.RecordCacheLookup("timetable", false)
	metrics.RecordCacheLookup("profile", true)
	metrics.ObserveCMSRequest("timetable", "ok", time.Millisecond)
	metrics.ObserveCMSRequest("timetable", "error", time.Millisecond)
	metrics.RecordNormalization(nil)
	metrics.RecordNormalization(&NormalizationError{Kind: KindWeekPairing})
	metrics.RecordSnapshotServe()
	refreshed := time.Date(2024, 9, 2, 6, 0, 0, 0, time.UTC)
	metrics.RecordRefresh(refreshed)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.RequestsTotal)
	assert.InDelta(t, 30.0, snapshot.AverageRequestDurationMs, 0.001)
	assert.InDelta(t, 2.0/3.0, snapshot.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(2), snapshot.CMSRequests)
	assert.Equal(t, uint64(1), snapshot.CMSFailures)
	assert.Equal(t, map[string]uint64{"OK": 1, "WEEK_PAIRING": 1}, snapshot.Normalizations)
	assert.Equal(t, uint64(1), snapshot.SnapshotServes)
	require.NotNil(t, snapshot.LastRefreshAt)
	assert.Equal(t, refreshed, *snapshot.LastRefreshAt)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordNormalization(&NormalizationError{Kind: KindPeriodTable})

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `timetable_normalizations_total{result="PERIOD_TABLE"} 1`))
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.RecordNormalization(nil)
	metrics.ObserveCMSRequest("login", "ok", time.Second)
	assert.Equal(t, uint64(0), metrics.Snapshot().RequestsTotal)

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
