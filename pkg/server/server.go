package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/getmockd/errorgen/pkg/config"
	"github.com/getmockd/errorgen/pkg/fault"
	"github.com/getmockd/errorgen/pkg/logging"
	"github.com/getmockd/errorgen/pkg/metrics"
	"github.com/getmockd/errorgen/pkg/tracing"
)

// Route paths.
const (
	PathErrorGenerator = config.PathErrorGenerator
	PathHealth         = config.PathHealth
)

// ErrAlreadyRunning is returned by Start on a running server.
var ErrAlreadyRunning = errors.New("server is already running")

// Server serves the fault injector.
type Server struct {
	cfg      *config.ServerConfiguration
	log      *slog.Logger
	tp       trace.TracerProvider
	prop     propagation.TextMapPropagator
	metrics  *metrics.Metrics
	injector *fault.Injector
	handler  http.Handler

	mu         sync.RWMutex
	httpServer *http.Server
	listener   net.Listener
	running    bool
	startTime  time.Time
	serveErr   chan error
}

// Option is a functional option for configuring a Server.
type Option func(*Server)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTracerProvider enables server spans using tp and prop.
// A nil propagator falls back to the otelhttp default.
func WithTracerProvider(tp trace.TracerProvider, prop propagation.TextMapPropagator) Option {
	return func(s *Server) {
		s.tp = tp
		s.prop = prop
	}
}

// WithMetrics sets the metrics instance. Ignored when metrics are disabled
// in the configuration.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithInjector replaces the default injector.
func WithInjector(i *fault.Injector) Option {
	return func(s *Server) {
		s.injector = i
	}
}

// New creates a Server. A nil cfg uses the defaults.
func New(cfg *config.ServerConfiguration, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultServerConfiguration()
	}
	s := &Server{
		cfg: cfg,
		log: logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.Component(s.log, "server")

	if s.injector == nil {
		s.injector = fault.NewInjector(fault.WithMaxLatency(cfg.EffectiveMaxLatency()))
	}
	if !cfg.Metrics.Enabled {
		s.metrics = nil
	} else if s.metrics == nil {
		s.metrics = metrics.New()
	}

	s.handler = s.buildHandler()
	return s
}

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	faultOpts := []fault.HandlerOption{fault.WithLogger(s.log)}
	if s.metrics != nil {
		faultOpts = append(faultOpts, fault.WithRecorder(s.metrics))
	}
	var faultHandler http.Handler = fault.NewHandler(s.injector, faultOpts...)
	if s.metrics != nil {
		faultHandler = s.metrics.InstrumentHandler(faultHandler)
	}

	mux.Handle(PathErrorGenerator, faultHandler)
	mux.HandleFunc(PathHealth, handleHealth)

	skip := []string{PathHealth}
	if s.metrics != nil {
		metricsPath := s.cfg.Metrics.Path
		if err := config.CheckMetricsPath(metricsPath); err != nil {
			s.log.Warn("invalid metrics path, using default",
				"path", metricsPath, "default", config.DefaultMetricsPath, "error", err)
			metricsPath = config.DefaultMetricsPath
		}
		mux.Handle(metricsPath, s.metrics.Handler())
		skip = append(skip, metricsPath)
	}

	// Outermost first: request ID, access log, server span, routes.
	var h http.Handler = mux
	h = tracing.Middleware(s.tp, s.prop, skip...)(h)
	h = requestLogMiddleware(s.log)(h)
	h = requestIDMiddleware(h)
	return h
}

// Handler returns the composed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the metrics instance, or nil when metrics are disabled.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Config returns the server configuration.
func (s *Server) Config() *config.ServerConfiguration {
	return s.cfg
}

// Start binds the listener and serves in the background.
// Bind errors are returned synchronously.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeoutDuration(),
		ReadHeaderTimeout: s.cfg.ReadTimeoutDuration(),
		WriteTimeout:      s.cfg.WriteTimeoutDuration(),
		ErrorLog:          slog.NewLogLogger(s.log.Handler(), slog.LevelWarn),
	}
	s.serveErr = make(chan error, 1)

	srv := s.httpServer
	errCh := s.serveErr
	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error", "error", err)
			errCh <- err
		}
		close(errCh)
	}()

	s.running = true
	s.startTime = time.Now()
	s.log.Info("server started",
		"addr", ln.Addr().String(),
		"metrics", s.metrics != nil,
		"tracing", s.tp != nil,
		"max_latency_ms", s.cfg.EffectiveMaxLatency().Milliseconds(),
	)
	return nil
}

// Stop gracefully shuts down the server, waiting for in-flight requests
// until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		_ = s.httpServer.Close()
		err = fmt.Errorf("HTTP shutdown: %w", err)
	}
	s.log.Info("server stopped", "uptime", time.Since(s.startTime).Round(time.Millisecond).String())
	return err
}

// Done returns a channel that receives a serve error, if any, and is closed
// when the server stops serving. It is nil before Start.
func (s *Server) Done() <-chan error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serveErr
}

// Addr returns the bound listen address, or "" when not started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the base URL of the running server.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	return "http://127.0.0.1:" + port
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startTime)
}
