// Package observability holds the process-wide Prometheus metrics and the
// metrics HTTP endpoint.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// IngestedRows counts ingestion rows by outcome: inserted, skipped, duplicate, dropped.
	IngestedRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwatch_ingested_rows_total",
			Help: "Historical snapshot rows processed, by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// IngestionRuns counts ingestion calls by operation and status.
	IngestionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwatch_ingestion_runs_total",
			Help: "Ingestion runs, by operation and status",
		},
		[]string{"operation", "status"}, // status: success, failed
	)

	// CacheRequests counts result cache lookups by query kind and result.
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwatch_cache_requests_total",
			Help: "Result cache lookups, by kind and result",
		},
		[]string{"kind", "result"}, // result: hit, miss
	)

	// CacheFlushes counts result cache invalidations.
	CacheFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shelfwatch_cache_flushes_total",
			Help: "Result cache flushes",
		},
	)

	// QueryDuration measures database query time by query kind.
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shelfwatch_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"kind"},
	)

	// FeedFetches counts feed downloads by status.
	FeedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shelfwatch_feed_fetches_total",
			Help: "Inventory feed downloads, by status",
		},
		[]string{"status"},
	)
)

// RecordIngestion records the counters of one finished ingestion run.
func RecordIngestion(operation string, inserted, skipped, duplicates, dropped int, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	IngestionRuns.WithLabelValues(operation, status).Inc()
	if err != nil {
		return
	}
	IngestedRows.WithLabelValues(operation, "inserted").Add(float64(inserted))
	IngestedRows.WithLabelValues(operation, "skipped").Add(float64(skipped))
	IngestedRows.WithLabelValues(operation, "duplicate").Add(float64(duplicates))
	IngestedRows.WithLabelValues(operation, "dropped").Add(float64(dropped))
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheRequests.WithLabelValues(kind, result).Inc()
}

// ObserveQuery records the duration of a query that started at start.
func ObserveQuery(kind string, start time.Time) {
	QueryDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
