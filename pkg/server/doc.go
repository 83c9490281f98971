// Package server hosts the fault injection endpoint over HTTP.
//
// Routes:
//
//	/api/error-generator  fault injection (any method)
//	/healthz              liveness probe
//	/metrics              Prometheus exposition (path configurable)
//
// Every request gets an X-Request-Id, a debug-level access log entry and,
// except for the probe and metrics routes, an OpenTelemetry server span.
package server
