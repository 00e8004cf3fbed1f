package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream call rate by provider (geocoding, weather, air_quality) and status.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency per call. Watch for: p95 > 2s on any provider.
	UpstreamDuration *prometheus.HistogramVec

	// Upstream errors by provider and category (see client.CategorizeError).
	UpstreamErrorsTotal *prometheus.CounterVec

	// Circuit breaker state per provider: 0 closed, 1 half-open, 2 open.
	CircuitBreakerState *prometheus.GaugeVec

	// Advisories issued per band. Watch for: hazardous spikes.
	AdvisoriesTotal *prometheus.CounterVec

	// Trend construction by strategy (historical_aligned, synthetic_walk). Synthetic means the provider sent no hourly data.
	TrendStrategyTotal *prometheus.CounterVec

	// Reverse lookups that fell back to "Current Location".
	ReverseGeocodeFallbackTotal prometheus.Counter

	// Dashboard requests cancelled because a newer request for the same session arrived.
	SupersededRequestsTotal prometheus.Counter

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of upstream provider calls",
		},
		[]string{"upstream", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream provider latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"upstream", "status"},
	)
	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamErrorsTotal",
			Help: "Upstream provider errors by category",
		},
		[]string{"upstream", "category"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open)",
		},
		[]string{"upstream"},
	)
	AdvisoriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisoriesTotal",
			Help: "Health advisories issued by AQI band",
		},
		[]string{"band"},
	)
	TrendStrategyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendStrategyTotal",
			Help: "AQI trends built, by construction strategy",
		},
		[]string{"strategy"},
	)
	ReverseGeocodeFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reverseGeocodeFallbackTotal",
			Help: "Reverse geocoding lookups answered with the Current Location placeholder",
		},
	)
	SupersededRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "supersededRequestsTotal",
			Help: "Dashboard requests cancelled by a newer request from the same session",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamErrorsTotal, CircuitBreakerState,
		AdvisoriesTotal, TrendStrategyTotal, ReverseGeocodeFallbackTotal,
		SupersededRequestsTotal, RateLimitDeniedTotal,
	)
}

// CircuitBreakerStateValue maps a breaker state name to the gauge value.
func CircuitBreakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// SetCircuitBreakerState records the current breaker state for upstream.
func SetCircuitBreakerState(upstream, state string) {
	CircuitBreakerState.WithLabelValues(upstream).Set(CircuitBreakerStateValue(state))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
