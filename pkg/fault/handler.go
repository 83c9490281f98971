package fault

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/getmockd/errorgen/pkg/httputil"
	"github.com/getmockd/errorgen/pkg/logging"
)

// Recorder receives per-request measurements. Implemented by pkg/metrics.
type Recorder interface {
	RecordRequest(errorType ErrorType, outcome Kind, elapsed time.Duration)
	RecordInjectedLatency(latency time.Duration)
}

// Handler serves the fault injector over HTTP. Any method is accepted;
// parameters are read from the query string.
type Handler struct {
	injector *Injector
	recorder Recorder
	log      *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) HandlerOption {
	return func(h *Handler) {
		h.recorder = r
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.log = log
	}
}

// NewHandler creates a handler around injector. A nil injector uses defaults.
func NewHandler(injector *Injector, opts ...HandlerOption) *Handler {
	if injector == nil {
		injector = NewInjector()
	}
	h := &Handler{injector: injector}
	for _, opt := range opts {
		opt(h)
	}
	if h.log == nil {
		h.log = logging.Nop()
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	params := ParseParams(r.URL.Query())

	resp := h.injector.Handle(params, ActiveSpan(ctx))
	httputil.WriteJSON(w, resp.StatusCode, resp.Payload)

	if resp.Outcome.Failed() {
		h.log.InfoContext(ctx, "simulated failure",
			"error_type", params.ErrorType,
			"error_rate", params.ErrorRate,
			"latency_ms", resp.Latency.Milliseconds(),
			"message", resp.Outcome.Message,
		)
	}

	if h.recorder != nil {
		h.recorder.RecordInjectedLatency(resp.Latency)
		h.recorder.RecordRequest(params.Type().Normalize(), resp.Outcome.Kind, time.Since(start))
	}
}

// ActiveSpan returns the recording span carried by ctx, or nil when there
// is none. Non-recording spans are treated as absent.
func ActiveSpan(ctx context.Context) trace.Span {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return nil
	}
	return span
}
