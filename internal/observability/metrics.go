package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	ledgerMutations *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	lockContention  *prometheus.CounterVec
	creditsAccrued  *prometheus.CounterVec
}

// NewMetrics registers every collector.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carbon_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carbon_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carbon_http_errors_total",
			Help: "Domain errors returned to clients by code.",
		}, []string{"route", "method", "code"}),
		ledgerMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carbon_ledger_mutations_total",
			Help: "Applied balance primitives by operation.",
		}, []string{"operation"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carbon_transfer_transitions_total",
			Help: "Credit transfer state changes by target status.",
		}, []string{"status"}),
		lockContention: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carbon_ledger_lock_contention_total",
			Help: "Ledger lock acquisitions that timed out.",
		}, []string{"backend"}),
		creditsAccrued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "carbon_credits_accrued_total",
			Help: "Credits realized from verified trips by transport mode.",
		}, []string{"transport_mode"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.errors,
		m.ledgerMutations,
		m.transitions,
		m.lockContention,
		m.creditsAccrued,
	)
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordLedgerMutation counts one applied balance primitive.
func (m *Metrics) RecordLedgerMutation(operation string) {
	if m == nil {
		return
	}
	m.ledgerMutations.WithLabelValues(operation).Inc()
}

// RecordTransition counts a transfer entering status.
func (m *Metrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// RecordLockContention counts a lock wait that ran out.
func (m *Metrics) RecordLockContention(backend string) {
	if m == nil {
		return
	}
	m.lockContention.WithLabelValues(backend).Inc()
}

// RecordCreditsAccrued adds credits realized from a verified trip.
func (m *Metrics) RecordCreditsAccrued(mode string, credits float64) {
	if m == nil || credits <= 0 {
		return
	}
	m.creditsAccrued.WithLabelValues(mode).Add(credits)
}
