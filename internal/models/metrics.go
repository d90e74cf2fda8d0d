package models

import "time"

// SystemMetrics is the JSON summary served by /system/metrics.
type SystemMetrics struct {
	CacheHitRatio            float64           `json:"cache_hit_ratio"`
	CacheHits                uint64            `json:"cache_hits"`
	CacheMisses              uint64            `json:"cache_misses"`
	RequestsTotal            uint64            `json:"requests_total"`
	AverageRequestDurationMs float64           `json:"average_request_duration_ms"`
	CMSRequests              uint64            `json:"cms_requests"`
	CMSFailures              uint64            `json:"cms_failures"`
	Normalizations           map[string]uint64 `json:"normalizations"`
	SnapshotServes           uint64            `json:"snapshot_serves"`
	LastRefreshAt            *time.Time        `json:"last_refresh_at,omitempty"`
	Goroutines               int               `json:"goroutines"`
	GeneratedAt              time.Time         `json:"generated_at"`
}
