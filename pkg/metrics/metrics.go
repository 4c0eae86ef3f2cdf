// Package metrics defines the Prometheus collectors used by the dashboard
// services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the dashboard.
type Metrics struct {
	HTTPRequestsTotal        *prometheus.CounterVec
	HTTPRequestDuration      *prometheus.HistogramVec
	HTTPRequestsInFlight     prometheus.Gauge
	QueriesTotal             *prometheus.CounterVec
	QueryLatency             *prometheus.HistogramVec
	DatasetCells             prometheus.Gauge
	DimensionSize            *prometheus.GaugeVec
	RateLimitedTotal         prometheus.Counter
	AnalyticsEventsPublished prometheus.Counter
	AnalyticsEventsDropped   prometheus.Counter
	CircuitBreakerState      *prometheus.GaugeVec

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them on reg. Passing
// prometheus.DefaultRegisterer exposes them on the default handler; tests
// pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, route, and status.",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_queries_total",
				Help: "Total dashboard queries by kind (distribution, trend, comparison, ...) and outcome (ok, invalid, error).",
			},
			[]string{"kind", "outcome"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dashboard_query_latency_seconds",
				Help:    "Dashboard query evaluation latency in seconds.",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"kind"},
		),
		DatasetCells: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dataset_cells",
				Help: "Number of addressable cells in the loaded employment cube.",
			},
		),
		DimensionSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dataset_dimension_categories",
				Help: "Number of categories per dataset dimension.",
			},
			[]string{"dimension"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Total requests rejected by the rate limiter.",
			},
		),
		AnalyticsEventsPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_published_total",
				Help: "Total query analytics events published.",
			},
		),
		AnalyticsEventsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "analytics_events_dropped_total",
				Help: "Total query analytics events dropped because the buffer was full or publishing failed.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.QueriesTotal,
		m.QueryLatency,
		m.DatasetCells,
		m.DimensionSize,
		m.RateLimitedTotal,
		m.AnalyticsEventsPublished,
		m.AnalyticsEventsDropped,
		m.CircuitBreakerState,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}

	return m
}

// Handler returns the Prometheus scrape HTTP handler for the registry the
// collectors were registered on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
