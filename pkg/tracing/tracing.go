package tracing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/getmockd/errorgen/pkg/config"
	"github.com/getmockd/errorgen/pkg/logging"
)

// InstrumentationName is the tracer name used by errorgen components.
const InstrumentationName = "github.com/getmockd/errorgen"

// DefaultBatchTimeout is how long spans are buffered before export.
const DefaultBatchTimeout = 5 * time.Second

// Config configures the tracer provider.
type Config struct {
	Enabled        bool
	Exporter       string
	Endpoint       string
	Insecure       bool
	CAFile         string
	SampleRate     float64
	ServiceName    string
	ServiceVersion string
	BatchTimeout   time.Duration
}

// FromConfig converts the file/env configuration into a provider Config.
func FromConfig(c config.TracingConfig, version string) Config {
	return Config{
		Enabled:        c.Enabled,
		Exporter:       c.Exporter,
		Endpoint:       c.Endpoint,
		Insecure:       c.Insecure,
		CAFile:         c.CAFile,
		SampleRate:     c.SampleRate,
		ServiceName:    c.ServiceName,
		ServiceVersion: version,
		BatchTimeout:   DefaultBatchTimeout,
	}
}

// Provider owns the process tracer provider and its exporter.
type Provider struct {
	sdk    *sdktrace.TracerProvider // nil when disabled
	tp     trace.TracerProvider
	prop   propagation.TextMapPropagator
	log    *slog.Logger
	writer io.Writer
	extra  []sdktrace.SpanProcessor
	global bool
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(log *slog.Logger) Option {
	return func(p *Provider) {
		if log != nil {
			p.log = log
		}
	}
}

// WithWriter sets the destination of the stdout exporter.
func WithWriter(w io.Writer) Option {
	return func(p *Provider) {
		if w != nil {
			p.writer = w
		}
	}
}

// WithSpanProcessor registers an additional span processor.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(p *Provider) {
		p.extra = append(p.extra, sp)
	}
}

// WithoutGlobal keeps the provider out of the otel globals.
func WithoutGlobal() Option {
	return func(p *Provider) {
		p.global = false
	}
}

// NewProvider builds a tracer provider from cfg. When cfg.Enabled is false the
// returned provider is a no-op and no exporter is created.
func NewProvider(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	p := &Provider{
		prop: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		log:    logging.Nop(),
		writer: os.Stdout,
		global: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.Component(p.log, "tracing")

	if !cfg.Enabled {
		p.tp = noop.NewTracerProvider()
		p.log.Debug("tracing disabled")
		return p, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(ctx, cfg, p.writer)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Exporter, err)
	}

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(Sampler(cfg.SampleRate)),
	}
	if exporter != nil {
		batchTimeout := cfg.BatchTimeout
		if batchTimeout <= 0 {
			batchTimeout = DefaultBatchTimeout
		}
		tpOpts = append(tpOpts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batchTimeout)))
	}
	for _, sp := range p.extra {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}

	p.sdk = sdktrace.NewTracerProvider(tpOpts...)
	p.tp = p.sdk

	if p.global {
		otel.SetTracerProvider(p.sdk)
		otel.SetTextMapPropagator(p.prop)
	}

	p.log.Info("tracing initialized",
		"exporter", cfg.Exporter,
		"endpoint", cfg.Endpoint,
		"sample_rate", cfg.SampleRate,
		"service", cfg.ServiceName,
	)
	return p, nil
}

// Sampler returns a parent-based sampler for the given root sampling rate.
func Sampler(rate float64) sdktrace.Sampler {
	var root sdktrace.Sampler
	switch {
	case rate >= 1.0:
		root = sdktrace.AlwaysSample()
	case rate <= 0.0:
		root = sdktrace.NeverSample()
	default:
		root = sdktrace.TraceIDRatioBased(rate)
	}
	return sdktrace.ParentBased(root)
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = config.DefaultServiceName
	}
	attrs := []resource.Option{
		resource.WithTelemetrySDK(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.ServiceVersion)))
	}
	return resource.New(ctx, attrs...)
}

// Enabled reports whether spans are being recorded and exported.
func (p *Provider) Enabled() bool {
	return p.sdk != nil
}

// TracerProvider returns the provider to hand to instrumentation.
func (p *Provider) TracerProvider() trace.TracerProvider {
	return p.tp
}

// Propagator returns the W3C Trace Context and Baggage propagator.
func (p *Provider) Propagator() propagation.TextMapPropagator {
	return p.prop
}

// Tracer returns the errorgen tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer(InstrumentationName)
}

// ForceFlush exports all buffered spans.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.ForceFlush(ctx)
}

// Shutdown flushes and stops the exporter. It is safe to call more than once.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	if err := p.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracer shutdown: %w", err)
	}
	return nil
}
