package fault

import (
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys written by the injector.
const (
	AttrErrorType    = attribute.Key("error.type")
	AttrErrorRate    = attribute.Key("error.rate")
	AttrErrorLatency = attribute.Key("error.latency_ms")
	AttrErrorMessage = attribute.Key("error.message")
)

// Injector decides, per request, whether to simulate a failure.
// It holds no per-request state and is safe for concurrent use.
type Injector struct {
	random     func() float64
	sleep      func(time.Duration)
	now        func() time.Time
	maxLatency time.Duration
}

// Option configures an Injector.
type Option func(*Injector)

// WithRandom sets the source of uniform values in [0, 1).
// The function must be safe for concurrent use.
func WithRandom(fn func() float64) Option {
	return func(i *Injector) {
		if fn != nil {
			i.random = fn
		}
	}
}

// WithSleep replaces the function used to inject latency.
func WithSleep(fn func(time.Duration)) Option {
	return func(i *Injector) {
		if fn != nil {
			i.sleep = fn
		}
	}
}

// WithClock sets the clock used for response timestamps.
func WithClock(fn func() time.Time) Option {
	return func(i *Injector) {
		if fn != nil {
			i.now = fn
		}
	}
}

// WithMaxLatency caps injected latency. Zero or negative means no cap.
func WithMaxLatency(d time.Duration) Option {
	return func(i *Injector) {
		i.maxLatency = max(d, 0)
	}
}

// NewInjector creates an injector.
func NewInjector(opts ...Option) *Injector {
	i := &Injector{
		random: rand.Float64,
		sleep:  time.Sleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Handle runs one request through the injector. A nil span skips annotation.
//
// Span attributes describing the requested configuration are written before
// the delay, so they are present even if the request never completes.
func (i *Injector) Handle(params Params, span trace.Span) Response {
	params = i.capLatency(params)

	if span != nil {
		span.SetAttributes(
			AttrErrorType.String(params.ErrorType),
			AttrErrorRate.Float64(params.ErrorRate),
			AttrErrorLatency.Int64(params.LatencyMs),
		)
	}

	latency := params.Latency()
	if latency > 0 {
		i.sleep(latency)
	}

	outcome := i.Decide(params)
	if outcome.Failed() && span != nil {
		span.SetAttributes(AttrErrorMessage.String(outcome.Message))
		span.RecordError(outcome.Err())
		span.SetStatus(codes.Error, outcome.Message)
	}

	return i.respond(params, outcome, latency)
}

// Decide rolls once against the error rate. The result depends only on the
// roll and the parameters.
func (i *Injector) Decide(params Params) Outcome {
	if i.random() >= params.ErrorRate {
		return Outcome{Kind: KindSuccess}
	}
	kind := params.Type().Normalize()
	return Outcome{
		Kind:    KindSimulatedFailure,
		Type:    kind,
		Message: kind.Message(),
	}
}

func (i *Injector) respond(params Params, outcome Outcome, latency time.Duration) Response {
	message := MessageSuccess
	if outcome.Failed() {
		message = outcome.Message
	}
	return Response{
		StatusCode: outcome.StatusCode(),
		Payload: Payload{
			Message:   message,
			ErrorType: params.ErrorType,
			Timestamp: i.now().UTC().Format(TimestampFormat),
		},
		Outcome: outcome,
		Latency: latency,
	}
}

func (i *Injector) capLatency(params Params) Params {
	if i.maxLatency > 0 && params.Latency() > i.maxLatency {
		params.LatencyMs = i.maxLatency.Milliseconds()
	}
	return params
}
