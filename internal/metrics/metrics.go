// Package metrics exposes the Prometheus collectors of the CRM. All
// recording methods are safe on a nil *Metrics so callers can run without
// instrumentation.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"estatecrm/internal/amortization"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	schedules         prometheus.Counter
	engineErrors      *prometheus.CounterVec
	loansCreated      prometheus.Counter
	eventsPublished   *prometheus.CounterVec
	servicingRuns     *prometheus.CounterVec
	outstandingAmount prometheus.Gauge
	rateLimited       prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		schedules: factory.NewCounter(prometheus.CounterOpts{
			Name: "amortization_schedules_total",
			Help: "Amortization schedules generated (cache misses)",
		}),
		engineErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "amortization_errors_total",
			Help: "Amortization engine failures by kind",
		}, []string{"kind"}),
		loansCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "loans_created_total",
			Help: "Loans created",
		}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events published by type",
		}, []string{"type"}),
		servicingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "servicing_runs_total",
			Help: "Loan servicing sweeps by outcome",
		}, []string{"outcome"}),
		outstandingAmount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "loans_outstanding_balance",
			Help: "Scheduled balance still owed on active loans at the last servicing sweep",
		}),
		rateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ScheduleGenerated() {
	if m == nil {
		return
	}
	m.schedules.Inc()
}

func (m *Metrics) EngineError(err error) {
	if m == nil || err == nil {
		return
	}
	m.engineErrors.WithLabelValues(ErrorKind(err)).Inc()
}

func (m *Metrics) LoanCreated() {
	if m == nil {
		return
	}
	m.loansCreated.Inc()
}

func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ServicingRun(outcome string, outstanding float64) {
	if m == nil {
		return
	}
	m.servicingRuns.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		m.outstandingAmount.Set(outstanding)
	}
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// ErrorKind is the label value for an engine error.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, amortization.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, amortization.ErrInvalidRate):
		return "invalid_rate"
	case errors.Is(err, amortization.ErrInvalidTerm):
		return "invalid_term"
	case errors.Is(err, amortization.ErrArithmeticInconsistency):
		return "arithmetic_inconsistency"
	default:
		return "other"
	}
}
