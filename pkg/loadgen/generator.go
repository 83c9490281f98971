package loadgen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/getmockd/errorgen/pkg/fault"
	"github.com/getmockd/errorgen/pkg/logging"
	"github.com/getmockd/errorgen/pkg/tracing"
)

// maxBodyBytes bounds how much of a response body is read.
const maxBodyBytes = 64 << 10

// Generator issues randomized requests against an errorgen server.
type Generator struct {
	cfg      Config
	client   *http.Client
	rng      *rand.Rand
	log      *slog.Logger
	onResult func(Result)
	tp       trace.TracerProvider
	prop     propagation.TextMapPropagator
	now      func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithHTTPClient sets the HTTP client. Its transport is wrapped for tracing
// when a tracer provider is set.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Generator) {
		if c != nil {
			g.client = c
		}
	}
}

// WithRand sets the random source used to build requests.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) {
		if r != nil {
			g.rng = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(g *Generator) {
		if log != nil {
			g.log = log
		}
	}
}

// WithResultHandler registers a callback invoked once per finished request.
// Calls are serialized.
func WithResultHandler(fn func(Result)) Option {
	return func(g *Generator) {
		g.onResult = fn
	}
}

// WithTracerProvider makes every request emit a client span and carry the
// trace context to the server.
func WithTracerProvider(tp trace.TracerProvider, prop propagation.TextMapPropagator) Option {
	return func(g *Generator) {
		g.tp = tp
		g.prop = prop
	}
}

// New creates a Generator. The configuration is validated.
func New(cfg Config, opts ...Option) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{
		cfg:    cfg,
		client: &http.Client{},
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		log:    logging.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = logging.Component(g.log, "loadgen")

	client := *g.client
	client.Timeout = cfg.requestTimeout()
	if g.tp != nil {
		client.Transport = tracing.Transport(client.Transport, g.tp, g.prop)
	}
	g.client = &client
	return g, nil
}

// Next builds the next randomized request. Not safe for concurrent use.
func (g *Generator) Next() Request {
	types := fault.KnownErrorTypes
	maxMs := g.cfg.MaxLatency.Milliseconds()
	return Request{
		ErrorType: types[g.rng.IntN(len(types))],
		ErrorRate: g.cfg.MinRate + (g.cfg.MaxRate-g.cfg.MinRate)*g.rng.Float64(),
		LatencyMs: g.rng.Int64N(maxMs + 1),
	}
}

// Run issues requests until the duration elapses, the request cap is reached
// or ctx is canceled. In-flight requests finish before Run returns unless ctx
// itself is canceled. Stopping is not an error; the summary covers everything
// that completed.
func (g *Generator) Run(ctx context.Context) (*Summary, error) {
	start := g.now()
	g.log.Info("load started",
		"url", g.cfg.BaseURL,
		"rps", g.cfg.RPS,
		"duration", g.cfg.Duration.String(),
		"requests", g.cfg.Requests,
	)

	pacing := ctx
	if g.cfg.Duration > 0 {
		var cancel context.CancelFunc
		pacing, cancel = context.WithTimeout(ctx, g.cfg.Duration)
		defer cancel()
	}

	limiter := rate.NewLimiter(rate.Limit(g.cfg.RPS), g.cfg.RPS)

	var eg errgroup.Group
	if g.cfg.Concurrency > 0 {
		eg.SetLimit(g.cfg.Concurrency)
	}

	var mu sync.Mutex
	summary := newSummary()

	for n := 0; g.cfg.Requests == 0 || n < g.cfg.Requests; n++ {
		if err := limiter.Wait(pacing); err != nil {
			break
		}
		req := g.Next()
		eg.Go(func() error {
			res := g.Do(ctx, req)
			mu.Lock()
			defer mu.Unlock()
			summary.add(res)
			if g.onResult != nil {
				g.onResult(res)
			}
			return nil
		})
	}

	_ = eg.Wait()
	summary.Elapsed = g.now().Sub(start)

	g.log.Info("load finished",
		"total", summary.Total,
		"successes", summary.Successes,
		"failures", summary.Failures,
		"elapsed", summary.Elapsed.String(),
	)
	return summary, nil
}

// Do issues a single request and measures it.
func (g *Generator) Do(ctx context.Context, req Request) Result {
	res := Result{Request: req}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL(g.cfg.BaseURL), nil)
	if err != nil {
		res.Time = g.now()
		res.Err = fmt.Errorf("build request: %w", err)
		return res
	}

	start := g.now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		res.Time = g.now()
		res.Latency = res.Time.Sub(start)
		res.Err = err
		g.log.DebugContext(ctx, "request failed", "error", err)
		return res
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	res.Time = g.now()
	res.Latency = res.Time.Sub(start)
	res.StatusCode = resp.StatusCode
	if err != nil {
		res.Err = fmt.Errorf("read body: %w", err)
		return res
	}
	if err := json.Unmarshal(body, &res.Payload); err != nil {
		g.log.DebugContext(ctx, "unexpected response body", "status", resp.StatusCode, "error", err)
	}
	return res
}
