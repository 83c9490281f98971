// Package fault simulates classified failures for exercising observability
// pipelines.
//
// A request names an error type, a failure probability and an injected
// latency. The injector waits for the latency, rolls once against the
// probability, and answers with either a success payload or a simulated
// failure. The caller's span is annotated with the requested configuration
// and, on failure, with the error.
//
// # Error Types
//
//   - INTERNAL_ERROR: "Internal server error occurred" (also used for unknown types)
//   - VALIDATION_ERROR: "Validation failed: Invalid input parameters"
//   - TIMEOUT_ERROR: "Operation timed out"
//   - DEPENDENCY_ERROR: "Failed to reach dependent service"
//
// The response always echoes the requested type string as given, even when an
// unknown type was mapped to INTERNAL_ERROR for message selection.
//
// # Parameters
//
// Parameters are never rejected:
//
//   - errorRate is clamped to [0.0, 1.0]; a value that is not a number is 0.0
//   - latencyMs below zero or not a number is 0
//
// # Usage
//
//	injector := fault.NewInjector(fault.WithMaxLatency(30 * time.Second))
//
//	params := fault.NewParams("TIMEOUT_ERROR", "0.25", "100")
//	resp := injector.Handle(params, trace.SpanFromContext(ctx))
//
// Or over HTTP:
//
//	mux.Handle("/api/error-generator", fault.NewHandler(injector))
//
//	GET /api/error-generator?errorType=DEPENDENCY_ERROR&errorRate=0.5&latencyMs=250
//
// # Span Attributes
//
//   - error.type, error.rate, error.latency_ms: always, before the delay
//   - error.message, an exception event and an Error status: on failure only
package fault
