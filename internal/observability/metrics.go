package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the API.
type Metrics struct {
	// Official-updates pipeline metrics.
	ScrapeRequests  *prometheus.CounterVec   // labels: source, outcome={success,error,empty}
	ScrapeDuration  *prometheus.HistogramVec // labels: source
	UpdatesReturned prometheus.Histogram

	// Cache metrics.
	CacheLookups     *prometheus.CounterVec // labels: result={hit,miss}
	CacheWriteErrors prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}

	// Audit stream metrics.
	AuditEvents *prometheus.CounterVec // labels: action, outcome={published,failed}
}

// NewMetrics creates and registers all API metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		ScrapeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_api",
			Name:      "scrape_requests_total",
			Help:      "Upstream scrape attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		ScrapeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "disaster_api",
			Name:      "scrape_duration_seconds",
			Help:      "Upstream scrape duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		UpdatesReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "disaster_api",
			Name:      "official_updates_returned",
			Help:      "Number of official updates returned per aggregation run.",
			Buckets:   []float64{0, 1, 2, 5, 10},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_api",
			Name:      "cache_lookups_total",
			Help:      "TTL cache lookups by result.",
		}, []string{"result"}),
		CacheWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_api",
			Name:      "cache_write_errors_total",
			Help:      "Failed best-effort cache writes.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_api",
			Name:      "geocode_requests_total",
			Help:      "Geocoding requests by outcome.",
		}, []string{"outcome"}),
		AuditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_api",
			Name:      "audit_events_total",
			Help:      "Audit events by action and publish outcome.",
		}, []string{"action", "outcome"}),
	}

	prometheus.MustRegister(
		m.ScrapeRequests,
		m.ScrapeDuration,
		m.UpdatesReturned,
		m.CacheLookups,
		m.CacheWriteErrors,
		m.GeocodeRequests,
		m.AuditEvents,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		ScrapeRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "disaster_api", Name: "scrape_requests_total"}, []string{"source", "outcome"}),
		ScrapeDuration:   prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "disaster_api", Name: "scrape_duration_seconds"}, []string{"source"}),
		UpdatesReturned:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "disaster_api", Name: "official_updates_returned"}),
		CacheLookups:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "disaster_api", Name: "cache_lookups_total"}, []string{"result"}),
		CacheWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "disaster_api", Name: "cache_write_errors_total"}),
		GeocodeRequests:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "disaster_api", Name: "geocode_requests_total"}, []string{"outcome"}),
		AuditEvents:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "disaster_api", Name: "audit_events_total"}, []string{"action", "outcome"}),
	}
}
