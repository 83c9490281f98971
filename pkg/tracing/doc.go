// Package tracing builds the OpenTelemetry tracer provider for errorgen.
//
// A Provider wraps an SDK TracerProvider configured from config.TracingConfig:
// one of the otlpgrpc, otlphttp or stdout exporters, a parent-based ratio
// sampler, and a W3C Trace Context plus Baggage propagator. When tracing is
// disabled the provider hands out a no-op TracerProvider, so callers never need
// to nil-check it.
//
// Usage:
//
//	p, err := tracing.NewProvider(ctx, tracing.FromConfig(cfg.Tracing, version))
//	if err != nil {
//	    return err
//	}
//	defer p.Shutdown(context.Background())
//
//	handler = tracing.Middleware(p.TracerProvider(), p.Propagator(), "/healthz")(handler)
package tracing
