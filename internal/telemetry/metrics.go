package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics, partitioned by terminal outcome and by the individual
// decisions taken along the way.
var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Mediated requests partitioned by terminal outcome.",
	}, []string{"outcome"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_cache_lookups_total",
		Help: "Response cache lookups partitioned by result.",
	}, []string{"result"})

	RateLimitDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_rate_limit_denied_total",
		Help: "Requests denied by the rate limiter.",
	})

	ProviderFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_provider_fallbacks_total",
		Help: "Primary provider failures that triggered the fallback provider.",
	})

	BackendDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_backend_degraded_total",
		Help: "Best-effort backend errors absorbed by the pipeline.",
	}, []string{"backend"})

	RequestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "End-to-end mediation latency.",
		Buckets: prometheus.DefBuckets,
	})
)
