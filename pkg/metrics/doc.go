// Package metrics exposes Prometheus metrics for the fault injection server.
//
// Metrics:
//
//   - errorgen_requests_total: counter (labels: error_type, outcome)
//   - errorgen_request_duration_seconds: histogram (labels: outcome)
//   - errorgen_injected_latency_seconds: histogram
//   - errorgen_in_flight_requests: gauge
//
// The error_type label carries the normalized type (one of the four known
// kinds), never the raw request value, so cardinality stays bounded.
// Outcome is "success" or "failure".
//
// # Usage
//
//	m := metrics.New()
//	handler := fault.NewHandler(injector, fault.WithRecorder(m))
//	mux.Handle("/api/error-generator", m.InstrumentHandler(handler))
//	mux.Handle("/metrics", m.Handler())
package metrics
