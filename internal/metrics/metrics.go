// Package metrics holds the Prometheus collectors for the record service
// and the HTTP API.  Collectors register on a caller-supplied registry so
// tests never touch the global one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeOK           = "ok"
	OutcomeDenied       = "denied"
	OutcomeNotFound     = "not_found"
	OutcomeInvalid      = "invalid"
	OutcomeTokenFailure = "token_failure"
	OutcomeError        = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medledger",
			Name:      "operations_total",
			Help:      "Record operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		httpDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medledger",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	reg.MustRegister(m.operations, m.httpDur)
	return m
}

// ObserveOperation counts one finished service call.  Nil-safe.
func (m *Metrics) ObserveOperation(op, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

// ObserveHTTP records one request.  Nil-safe.
func (m *Metrics) ObserveHTTP(route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDur.WithLabelValues(route, code).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OperationCounter returns one counter series, for tests and debugging.
func (m *Metrics) OperationCounter(op, outcome string) prometheus.Counter {
	return m.operations.WithLabelValues(op, outcome)
}
