package models

import "time"

// SystemMetrics is the aggregated runtime snapshot served to admins.
// The canonical time-series live in Prometheus; this is the quick-look
// view for the ops dashboard.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	SuggestionsIngested      uint64    `json:"suggestions_ingested"`
	SuggestionsReviewed      uint64    `json:"suggestions_reviewed"`
	Rollbacks                uint64    `json:"rollbacks"`
	PatternsLearned          uint64    `json:"patterns_learned"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
