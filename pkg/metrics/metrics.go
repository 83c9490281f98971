package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getmockd/errorgen/pkg/fault"
)

const namespace = "errorgen"

// Label names.
const (
	LabelErrorType = "error_type"
	LabelOutcome   = "outcome"
)

// Metrics holds the collectors for one server instance.
// Each instance has its own registry, so tests and multiple servers do not collide.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	injectedLatency prometheus.Histogram
	inFlight        prometheus.Gauge
}

// New creates and registers the errorgen collectors, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of fault injection requests by normalized error type and outcome.",
		}, []string{LabelErrorType, LabelOutcome}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Duration of fault injection requests in seconds, including injected latency.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{LabelOutcome}),
		injectedLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "injected_latency_seconds",
			Help:      "Latency injected into fault injection requests in seconds.",
			Buckets:   []float64{0, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "in_flight_requests",
			Help:      "Number of fault injection requests currently being served.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.injectedLatency,
		m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// InstrumentHandler tracks in-flight requests for next.
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(m.inFlight, next)
}

// RecordRequest implements fault.Recorder.
func (m *Metrics) RecordRequest(errorType fault.ErrorType, outcome fault.Kind, elapsed time.Duration) {
	m.requests.WithLabelValues(string(errorType), outcome.String()).Inc()
	m.duration.WithLabelValues(outcome.String()).Observe(elapsed.Seconds())
}

// RecordInjectedLatency implements fault.Recorder.
func (m *Metrics) RecordInjectedLatency(latency time.Duration) {
	m.injectedLatency.Observe(latency.Seconds())
}

var _ fault.Recorder = (*Metrics)(nil)
