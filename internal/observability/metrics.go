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

	// Record backend call rate by table, operation and status.
	RecordsAPICallsTotal *prometheus.CounterVec

	// Record backend latency per attempt. Watch for: p95 > 2s (backend degradation).
	RecordsAPIDuration *prometheus.HistogramVec

	// Retry attempts against the record backend. Watch for: high retries = unstable backend.
	RecordsAPIRetriesTotal *prometheus.CounterVec

	// Calls that failed after retries, by error category.
	RecordsAPIErrorsTotal *prometheus.CounterVec

	// Forecast cache lookups by result (hit, miss).
	ForecastCacheLookupsTotal *prometheus.CounterVec

	// Forecast refreshes by outcome (success, error).
	ForecastRefreshTotal *prometheus.CounterVec

	// Forecast refreshes that waited on an in-flight refresh instead of calling the backend.
	ForecastCoalescedTotal prometheus.Counter

	// Concurrent backend refreshes observed when a refresh starts while others are running.
	// Watch for: sustained values > 1 with coalescing disabled (stampede on expiry).
	ForecastConcurrentRefreshes prometheus.Histogram

	// Failed reads absorbed by the entity services, by table.
	ReadFailuresTotal *prometheus.CounterVec

	// Failed mutations returned to callers, by table and operation.
	MutationFailuresTotal *prometheus.CounterVec

	// User-facing notifications emitted on mutation failures.
	NotificationsTotal prometheus.Counter

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// 0 closed, 1 half-open, 2 open.
	CircuitBreakerState *prometheus.GaugeVec
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
	RecordsAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recordsApiCallsTotal",
			Help: "Total number of record backend calls (per attempt)",
		},
		[]string{"table", "op", "status"},
	)
	RecordsAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recordsApiDurationSeconds",
			Help:    "Record backend latency in seconds (per attempt)",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"table", "op", "status"},
	)
	RecordsAPIRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recordsApiRetriesTotal",
			Help: "Total number of retry attempts for record backend calls",
		},
		[]string{"table", "op"},
	)
	RecordsAPIErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recordsApiErrorsTotal",
			Help: "Record backend calls that failed after retries, by error category",
		},
		[]string{"table", "op", "category"},
	)
	ForecastCacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastCacheLookupsTotal",
			Help: "Forecast cache lookups by result",
		},
		[]string{"result"},
	)
	ForecastRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forecastRefreshTotal",
			Help: "Forecast refreshes from the record backend by outcome",
		},
		[]string{"outcome"},
	)
	ForecastCoalescedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "forecastCoalescedTotal",
			Help: "Forecast refreshes served by an in-flight refresh",
		},
	)
	ForecastConcurrentRefreshes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "forecastConcurrentRefreshes",
			Help:    "Number of forecast refreshes in flight when a new refresh starts",
			Buckets: []float64{2, 3, 5, 10, 20},
		},
	)
	ReadFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "readFailuresTotal",
			Help: "Read failures absorbed by the entity services",
		},
		[]string{"table"},
	)
	MutationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mutationFailuresTotal",
			Help: "Mutation failures returned to callers",
		},
		[]string{"table", "op"},
	)
	NotificationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notificationsTotal",
			Help: "User-facing error notifications emitted",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"component"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		RecordsAPICallsTotal, RecordsAPIDuration, RecordsAPIRetriesTotal, RecordsAPIErrorsTotal,
		ForecastCacheLookupsTotal, ForecastRefreshTotal, ForecastCoalescedTotal, ForecastConcurrentRefreshes,
		ReadFailuresTotal, MutationFailuresTotal, NotificationsTotal,
		RateLimitDeniedTotal, CircuitBreakerState,
	)
}

// SetCircuitBreakerState records the breaker state for component. state follows
// gobreaker's String() values: "closed", "half-open", "open".
func SetCircuitBreakerState(component, state string) {
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(component).Set(v)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
