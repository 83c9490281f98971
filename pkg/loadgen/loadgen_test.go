package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/getmockd/errorgen/pkg/fault"
)

// newFaultServer serves the real fault handler with instant latency.
func newFaultServer(t *testing.T, u float64) *httptest.Server {
	t.Helper()
	inj := fault.NewInjector(
		fault.WithRandom(func() float64 { return u }),
		fault.WithSleep(func(time.Duration) {}),
	)
	mux := http.NewServeMux()
	mux.Handle(EndpointPath, fault.NewHandler(inj))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(base string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = base
	cfg.RPS = 1000
	cfg.Duration = 0
	cfg.Requests = 20
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative url", func(c *Config) { c.BaseURL = "localhost:8080" }},
		{"zero rps", func(c *Config) { c.RPS = 0 }},
		{"negative duration", func(c *Config) { c.Duration = -time.Second }},
		{"no bound", func(c *Config) { c.Duration = 0; c.Requests = 0 }},
		{"min above max", func(c *Config) { c.MinRate = 0.8; c.MaxRate = 0.2 }},
		{"max above one", func(c *Config) { c.MaxRate = 1.5 }},
		{"negative latency", func(c *Config) { c.MaxLatency = -1 }},
		{"negative concurrency", func(c *Config) { c.Concurrency = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRequest_URL(t *testing.T) {
	t.Parallel()

	r := Request{ErrorType: fault.ErrorTypeTimeout, ErrorRate: 0.25, LatencyMs: 150}
	raw := r.URL("http://example.com:8080/")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, EndpointPath, u.Path)
	assert.Equal(t, "TIMEOUT_ERROR", u.Query().Get("errorType"))
	assert.Equal(t, "0.25", u.Query().Get("errorRate"))
	assert.Equal(t, "150", u.Query().Get("latencyMs"))
}

func TestGenerator_NextWithinBounds(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MinRate = 0.3
	cfg.MaxRate = 0.6
	cfg.MaxLatency = 500 * time.Millisecond

	g, err := New(cfg, WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)

	seen := map[fault.ErrorType]bool{}
	for range 1000 {
		r := g.Next()
		assert.True(t, r.ErrorType.Known(), r.ErrorType)
		assert.GreaterOrEqual(t, r.ErrorRate, 0.3)
		assert.LessOrEqual(t, r.ErrorRate, 0.6)
		assert.GreaterOrEqual(t, r.LatencyMs, int64(0))
		assert.LessOrEqual(t, r.LatencyMs, int64(500))
		seen[r.ErrorType] = true
	}
	assert.Len(t, seen, len(fault.KnownErrorTypes))
}

func TestGenerator_NextZeroLatency(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxLatency = 0
	g, err := New(cfg)
	require.NoError(t, err)
	for range 50 {
		assert.Zero(t, g.Next().LatencyMs)
	}
}

func TestGenerator_Do(t *testing.T) {
	t.Parallel()

	srv := newFaultServer(t, 0.5)
	g, err := New(testConfig(srv.URL))
	require.NoError(t, err)

	fail := g.Do(context.Background(), Request{ErrorType: fault.ErrorTypeDependency, ErrorRate: 0.9})
	require.NoError(t, fail.Err)
	assert.Equal(t, http.StatusInternalServerError, fail.StatusCode)
	assert.False(t, fail.Succeeded())
	assert.Equal(t, fault.MessageDependency, fail.Payload.Message)
	assert.Equal(t, "DEPENDENCY_ERROR", fail.Payload.ErrorType)

	ok := g.Do(context.Background(), Request{ErrorType: fault.ErrorTypeDependency, ErrorRate: 0.1})
	require.NoError(t, ok.Err)
	assert.Equal(t, http.StatusOK, ok.StatusCode)
	assert.True(t, ok.Succeeded())
	assert.Equal(t, fault.MessageSuccess, ok.Payload.Message)

	line := fail.Line()
	assert.Contains(t, line, "| 500 | DEPENDENCY_ERROR | rate=0.90 | latency=")
}

func TestGenerator_DoTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	g, err := New(testConfig(base))
	require.NoError(t, err)

	res := g.Do(context.Background(), Request{ErrorType: fault.ErrorTypeInternal, ErrorRate: 1})
	require.Error(t, res.Err)
	assert.Zero(t, res.StatusCode)
	assert.True(t, strings.HasPrefix(res.Line(), "Request failed: "))
}

func TestGenerator_RunRequestCap(t *testing.T) {
	t.Parallel()

	// u=0.5 against rates in [0.1, 0.9]: both outcomes occur.
	srv := newFaultServer(t, 0.5)

	var mu sync.Mutex
	var lines []string
	g, err := New(testConfig(srv.URL),
		WithRand(rand.New(rand.NewPCG(7, 7))),
		WithResultHandler(func(r Result) {
			mu.Lock()
			lines = append(lines, r.Line())
			mu.Unlock()
		}),
	)
	require.NoError(t, err)

	summary, err := g.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 20, summary.Total)
	assert.Len(t, lines, 20)
	assert.Equal(t, summary.Total, summary.Successes+summary.Failures)
	assert.Zero(t, summary.TransportErrors)
	assert.Equal(t, summary.Successes, summary.StatusCodes[http.StatusOK])
	assert.Equal(t, summary.Failures, summary.StatusCodes[http.StatusInternalServerError])

	var byType int
	for typ, tc := range summary.ByType {
		assert.True(t, typ.Known())
		byType += tc.Success + tc.Failure
	}
	assert.Equal(t, 20, byType)
	assert.LessOrEqual(t, summary.MinLatency, summary.MeanLatency)
	assert.LessOrEqual(t, summary.MeanLatency, summary.MaxLatency)
}

func TestGenerator_RunDuration(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.RPS = 20
	cfg.Duration = 300 * time.Millisecond

	g, err := New(cfg)
	require.NoError(t, err)

	start := time.Now()
	summary, err := g.Run(context.Background())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	// Burst of RPS plus roughly RPS*duration more.
	assert.GreaterOrEqual(t, summary.Total, 20)
	assert.LessOrEqual(t, summary.Total, 30)
	assert.Equal(t, int64(summary.Total), hits.Load())
}

func TestGenerator_RunCanceled(t *testing.T) {
	t.Parallel()

	srv := newFaultServer(t, 0.5)
	cfg := testConfig(srv.URL)
	cfg.Requests = 0
	cfg.Duration = time.Hour
	cfg.RPS = 10

	g, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	summary, err := g.Run(ctx)
	require.NoError(t, err)
	assert.Positive(t, summary.Total)
}

func TestGenerator_ConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	cfg.Concurrency = 2
	g, err := New(cfg)
	require.NoError(t, err)

	summary, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, summary.Total)
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestGenerator_Tracing(t *testing.T) {
	t.Parallel()

	var traceparents []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		traceparents = append(traceparents, r.Header.Get("traceparent"))
		mu.Unlock()
	}))
	t.Cleanup(srv.Close)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	cfg := testConfig(srv.URL)
	cfg.Requests = 3
	g, err := New(cfg, WithTracerProvider(tp, propagation.TraceContext{}))
	require.NoError(t, err)

	_, err = g.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, rec.Ended(), 3)
	require.Len(t, traceparents, 3)
	for _, h := range traceparents {
		assert.True(t, strings.HasPrefix(h, "00-"), h)
	}
}

func TestSummary_Write(t *testing.T) {
	t.Parallel()

	s := newSummary()
	s.add(Result{Request: Request{ErrorType: fault.ErrorTypeTimeout}, StatusCode: 500, Latency: 30 * time.Millisecond})
	s.add(Result{Request: Request{ErrorType: fault.ErrorTypeTimeout}, StatusCode: 200, Latency: 10 * time.Millisecond})
	s.add(Result{Request: Request{ErrorType: fault.ErrorTypeInternal}, StatusCode: 200, Latency: 20 * time.Millisecond})
	s.add(Result{Request: Request{ErrorType: fault.ErrorTypeInternal}, Err: assert.AnError})

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Successes)
	assert.Equal(t, 2, s.Failures)
	assert.Equal(t, 1, s.TransportErrors)
	assert.Equal(t, 10*time.Millisecond, s.MinLatency)
	assert.Equal(t, 30*time.Millisecond, s.MaxLatency)
	assert.Equal(t, 20*time.Millisecond, s.MeanLatency)
	assert.Equal(t, TypeCounts{Success: 1, Failure: 1}, s.ByType[fault.ErrorTypeTimeout])
	assert.InDelta(t, 0.5, s.SuccessRatio(), 1e-9)

	var text bytes.Buffer
	require.NoError(t, s.WriteText(&text))
	out := text.String()
	assert.Contains(t, out, "Total Successful Requests: 2")
	assert.Contains(t, out, "Total Failed Requests: 2")
	assert.Contains(t, out, "Transport Errors: 1")
	assert.Contains(t, out, "  200: 2\n  500: 1")
	assert.Contains(t, out, "TIMEOUT_ERROR: success=1 failure=1")
	assert.Contains(t, out, "min=10ms mean=20ms max=30ms")

	var js bytes.Buffer
	require.NoError(t, s.WriteJSON(&js))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.EqualValues(t, 4, decoded["total"])
	assert.EqualValues(t, 1, decoded["transportErrors"])
}

func TestSummary_Empty(t *testing.T) {
	t.Parallel()

	s := newSummary()
	assert.Zero(t, s.SuccessRatio())
	var buf bytes.Buffer
	require.NoError(t, s.WriteText(&buf))
	assert.NotContains(t, buf.String(), "Latency:")
}
