package loadgen

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Defaults match the traffic script operators already use.
const (
	DefaultBaseURL    = "http://localhost:8080"
	DefaultRPS        = 5
	DefaultDuration   = 60 * time.Second
	DefaultMinRate    = 0.1
	DefaultMaxRate    = 0.9
	DefaultMaxLatency = 2000 * time.Millisecond

	// requestTimeoutSlack is added to MaxLatency for the per-request timeout.
	requestTimeoutSlack = 30 * time.Second
)

// ErrInvalidConfig wraps every Config validation failure.
var ErrInvalidConfig = errors.New("invalid load configuration")

// Config configures a load run.
type Config struct {
	// BaseURL is the server root; the endpoint path is appended.
	BaseURL string
	// RPS is the target request rate per second.
	RPS int
	// Duration bounds the run. Zero means run until Requests is reached or
	// the context is canceled.
	Duration time.Duration
	// Requests caps the number of requests (0 = no cap).
	Requests int
	// MinRate and MaxRate bound the random errorRate.
	MinRate float64
	MaxRate float64
	// MaxLatency bounds the random latencyMs.
	MaxLatency time.Duration
	// Concurrency caps in-flight requests (0 = no cap).
	Concurrency int
	// Timeout is the per-request timeout (0 = MaxLatency plus slack).
	Timeout time.Duration
}

// DefaultConfig returns the default load configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		RPS:        DefaultRPS,
		Duration:   DefaultDuration,
		MinRate:    DefaultMinRate,
		MaxRate:    DefaultMaxRate,
		MaxLatency: DefaultMaxLatency,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		fail("url must be absolute, got %q", c.BaseURL)
	}
	if c.RPS <= 0 {
		fail("rps must be > 0, got %d", c.RPS)
	}
	if c.Duration < 0 {
		fail("duration must be >= 0, got %s", c.Duration)
	}
	if c.Requests < 0 {
		fail("requests must be >= 0, got %d", c.Requests)
	}
	if c.Duration == 0 && c.Requests == 0 {
		fail("one of duration or requests must be set")
	}
	if c.MinRate < 0 || c.MaxRate > 1 || c.MinRate > c.MaxRate {
		fail("rates must satisfy 0 <= min <= max <= 1, got min=%v max=%v", c.MinRate, c.MaxRate)
	}
	if c.MaxLatency < 0 {
		fail("max latency must be >= 0, got %s", c.MaxLatency)
	}
	if c.Concurrency < 0 {
		fail("concurrency must be >= 0, got %d", c.Concurrency)
	}
	return errors.Join(errs...)
}

func (c Config) requestTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return c.MaxLatency + requestTimeoutSlack
}
