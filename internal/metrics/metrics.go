// Package metrics exposes domain counters in Prometheus format on /metrics.
// HTTP request metrics are recorded through OpenTelemetry by the API
// middleware; this package covers what happens behind the handlers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "transportco2"

// Search outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeEmpty       = "empty"
	OutcomeInvalid     = "invalid"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeFailed      = "failed"
)

// Metrics holds the Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	searchesTotal        *prometheus.CounterVec
	fetchFailures        prometheus.Counter
	optionsReturned      prometheus.Histogram
	tripsTotal           *prometheus.CounterVec
	simulationsSubmitted *prometheus.CounterVec
	loginsTotal          *prometheus.CounterVec
	sessionsPurged       prometheus.Counter
	eventsPublished      *prometheus.CounterVec
	probesTotal          *prometheus.CounterVec
	probeDuration        *prometheus.HistogramVec

	dbPoolConnsOpen     prometheus.Gauge
	dbPoolConnsAcquired prometheus.Gauge
	dbPoolConnsIdle     prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		searchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "comparison",
			Name:      "searches_total",
			Help:      "Total comparison requests by outcome",
		}, []string{"outcome"}),

		fetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "comparison",
			Name:      "fetch_failures_total",
			Help:      "Total comparison requests degraded to an empty result because the backend failed",
		}),

		optionsReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "comparison",
			Name:      "options_returned",
			Help:      "Number of ranked options returned per comparison",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		}),

		tripsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trips_total",
			Help:      "Trip list changes by action",
		}, []string{"action"}),

		simulationsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "submitted_total",
			Help:      "Simulations submitted to the backend by outcome",
		}, []string{"outcome"}),

		loginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),

		sessionsPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "purged_total",
			Help:      "Expired sessions removed by the purge loop",
		}),

		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events published by type and outcome",
		}, []string{"type", "outcome"}),

		probesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "probes_total",
			Help:      "Backend probes run by the worker by outcome",
		}, []string{"outcome"}),

		probeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "probe_duration_seconds",
			Help:      "Duration of backend probes",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),

		dbPoolConnsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_conns_open",
			Help:      "Total connections open in the database pool",
		}),

		dbPoolConnsAcquired: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_conns_acquired",
			Help:      "Connections currently acquired from the database pool",
		}),

		dbPoolConnsIdle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "pool_conns_idle",
			Help:      "Idle connections in the database pool",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SearchCompleted records one comparison request.
func (m *Metrics) SearchCompleted(outcome string, options int) {
	if m == nil {
		return
	}
	m.searchesTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeFetchFailed {
		m.fetchFailures.Inc()
	}
	if outcome == OutcomeOK || outcome == OutcomeEmpty || outcome == OutcomeFetchFailed {
		m.optionsReturned.Observe(float64(options))
	}
}

// TripChanged records a trip list change ("add", "remove", "clear").
func (m *Metrics) TripChanged(action string) {
	if m == nil {
		return
	}
	m.tripsTotal.WithLabelValues(action).Inc()
}

// SimulationSubmitted records a simulation submission.
func (m *Metrics) SimulationSubmitted(outcome string) {
	if m == nil {
		return
	}
	m.simulationsSubmitted.WithLabelValues(outcome).Inc()
}

// Login records a login attempt.
func (m *Metrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.loginsTotal.WithLabelValues(outcome).Inc()
}

// SessionsPurged records expired sessions removed.
func (m *Metrics) SessionsPurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsPurged.Add(float64(n))
}

// EventPublished records a publish attempt.
func (m *Metrics) EventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	m.eventsPublished.WithLabelValues(eventType, outcome).Inc()
}

// ProbeCompleted records one worker probe.
func (m *Metrics) ProbeCompleted(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.probesTotal.WithLabelValues(outcome).Inc()
	m.probeDuration.WithLabelValues(outcome).Observe(seconds)
}

// PoolStat is the subset of pgxpool.Stat the pool gauges need.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPool refreshes the database pool gauges.
func (m *Metrics) UpdateDBPool(s PoolStat) {
	if m == nil || s == nil {
		return
	}
	m.dbPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	m.dbPoolConnsIdle.Set(float64(s.IdleConns()))
	m.dbPoolConnsOpen.Set(float64(s.TotalConns()))
}
