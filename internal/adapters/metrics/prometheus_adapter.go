package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup results.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupStale = "stale"
)

// Refresh outcomes.
const (
	RefreshSuccess       = "success"
	RefreshStaleFallback = "stale_fallback"
	RefreshPlaceholder   = "placeholder"
	RefreshStoreError    = "store_error"
)

var (
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_cache_lookups_total",
			Help: "Cache lookups by domain and result (hit, miss, stale).",
		},
		[]string{"domain", "result"},
	)

	CacheRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_cache_refreshes_total",
			Help: "Cache refresh attempts by domain and outcome.",
		},
		[]string{"domain", "outcome"},
	)

	SingleFlightInFlightGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "account_cache_singleflight_in_flight",
			Help: "Number of refresh computations currently running.",
		},
	)

	SingleFlightSharedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "account_cache_singleflight_shared_total",
			Help: "Number of follower callers served by a refresh computation another caller started for the same key.",
		},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "account_cache_upstream_request_duration_seconds",
			Help:    "Latency of upstream fetches including retries, by service and outcome.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)

	CircuitBreakerStateChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_cache_circuit_breaker_state_changes_total",
			Help: "Circuit breaker transitions by service and new state.",
		},
		[]string{"service", "state"},
	)

	RefreshEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "account_cache_refresh_events_total",
			Help: "Refresh requests consumed from NATS by result (processed, degraded, invalid, failed).",
		},
		[]string{"result"},
	)
)

// IncrementCacheLookup records a cache lookup result for a domain.
func IncrementCacheLookup(domain, result string) {
	CacheLookupsTotal.WithLabelValues(domain, result).Inc()
}

// IncrementCacheRefresh records the outcome of a refresh for a domain.
func IncrementCacheRefresh(domain, outcome string) {
	CacheRefreshesTotal.WithLabelValues(domain, outcome).Inc()
}

// IncrementSingleFlightInFlight marks a refresh computation as started.
func IncrementSingleFlightInFlight() {
	SingleFlightInFlightGauge.Inc()
}

// DecrementSingleFlightInFlight marks a refresh computation as settled.
func DecrementSingleFlightInFlight() {
	SingleFlightInFlightGauge.Dec()
}

// IncrementSingleFlightShared counts a caller served by another caller's computation.
func IncrementSingleFlightShared() {
	SingleFlightSharedTotal.Inc()
}

// ObserveUpstreamRequest records the latency of an upstream fetch.
func ObserveUpstreamRequest(service, outcome string, elapsed time.Duration) {
	UpstreamRequestDuration.WithLabelValues(service, outcome).Observe(elapsed.Seconds())
}

// IncrementCircuitBreakerStateChange records a breaker transition.
func IncrementCircuitBreakerStateChange(service, state string) {
	CircuitBreakerStateChangesTotal.WithLabelValues(service, state).Inc()
}

// IncrementRefreshEvent records the handling result of a consumed refresh request.
func IncrementRefreshEvent(result string) {
	RefreshEventsTotal.WithLabelValues(result).Inc()
}
