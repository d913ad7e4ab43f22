package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthEvents counts authentication outcomes by event and result.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "libris_auth_events_total",
		Help: "Authentication events by type and result",
	}, []string{"event", "result"})

	// CacheLookups counts cache-aside lookups by key family and outcome.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "libris_cache_lookups_total",
		Help: "Cache lookups by key family and outcome (hit, miss, error)",
	}, []string{"family", "outcome"})

	// DatabaseQueryLatency records database query latency by statement kind.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "libris_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// MediaUploads counts stored uploads by media kind.
	MediaUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "libris_media_uploads_total",
		Help: "Stored media uploads by kind",
	}, []string{"kind"})
)
