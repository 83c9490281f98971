package tracing

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ServerOperation is the otelhttp operation name for inbound requests.
const ServerOperation = "errorgen"

// Middleware wraps a handler so each request runs inside a server span.
// Requests whose path is listed in skip pass through untraced.
// A nil provider returns the handler unchanged.
func Middleware(tp trace.TracerProvider, prop propagation.TextMapPropagator, skip ...string) func(http.Handler) http.Handler {
	skipPaths := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipPaths[p] = true
	}

	return func(next http.Handler) http.Handler {
		if tp == nil {
			return next
		}
		opts := []otelhttp.Option{
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithFilter(func(r *http.Request) bool {
				return !skipPaths[r.URL.Path]
			}),
			otelhttp.WithSpanNameFormatter(spanName),
		}
		if prop != nil {
			opts = append(opts, otelhttp.WithPropagators(prop))
		}
		return otelhttp.NewHandler(next, ServerOperation, opts...)
	}
}

// Transport wraps base so outbound requests create client spans and carry
// the trace context. A nil base uses http.DefaultTransport.
func Transport(base http.RoundTripper, tp trace.TracerProvider, prop propagation.TextMapPropagator) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if tp == nil {
		return base
	}
	opts := []otelhttp.Option{
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithSpanNameFormatter(spanName),
	}
	if prop != nil {
		opts = append(opts, otelhttp.WithPropagators(prop))
	}
	return otelhttp.NewTransport(base, opts...)
}

// spanName formats span names as "GET /api/error-generator".
func spanName(_ string, r *http.Request) string {
	return r.Method + " " + r.URL.Path
}
