package config

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, DefaultServerConfiguration().Validate())
}

func TestValidate_Fields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfiguration)
		field  string
	}{
		{"port zero", func(c *ServerConfiguration) { c.Port = 0 }, "port"},
		{"port too large", func(c *ServerConfiguration) { c.Port = 65536 }, "port"},
		{"read timeout", func(c *ServerConfiguration) { c.ReadTimeout = 0 }, "readTimeout"},
		{"write timeout", func(c *ServerConfiguration) { c.WriteTimeout = -1 }, "writeTimeout"},
		{"shutdown timeout", func(c *ServerConfiguration) { c.ShutdownTimeout = 0 }, "shutdownTimeout"},
		{"max latency", func(c *ServerConfiguration) { c.MaxLatencyMs = -5 }, "maxLatencyMs"},
		{"log level", func(c *ServerConfiguration) { c.Log.Level = "verbose" }, "log.level"},
		{"log format", func(c *ServerConfiguration) { c.Log.Format = "xml" }, "log.format"},
		{"exporter", func(c *ServerConfiguration) { c.Tracing.Exporter = "jaeger" }, "tracing.exporter"},
		{"sample rate", func(c *ServerConfiguration) { c.Tracing.SampleRate = 1.5 }, "tracing.sampleRate"},
		{"sample rate NaN", func(c *ServerConfiguration) { c.Tracing.SampleRate = math.NaN() }, "tracing.sampleRate"},
		{"service name", func(c *ServerConfiguration) { c.Tracing.ServiceName = "" }, "tracing.serviceName"},
		{"endpoint", func(c *ServerConfiguration) {
			c.Tracing.Enabled = true
			c.Tracing.Endpoint = ""
		}, "tracing.endpoint"},
		{"ca file", func(c *ServerConfiguration) { c.Tracing.CAFile = "/does/not/exist.pem" }, "tracing.caFile"},
		{"metrics path", func(c *ServerConfiguration) { c.Metrics.Path = "metrics" }, "metrics.path"},
		{"metrics path on health", func(c *ServerConfiguration) { c.Metrics.Path = PathHealth }, "metrics.path"},
		{"metrics path on endpoint", func(c *ServerConfiguration) { c.Metrics.Path = PathErrorGenerator }, "metrics.path"},
		{"metrics path root", func(c *ServerConfiguration) { c.Metrics.Path = "/" }, "metrics.path"},
		{"metrics path subtree", func(c *ServerConfiguration) { c.Metrics.Path = "/metrics/" }, "metrics.path"},
		{"metrics path wildcard", func(c *ServerConfiguration) { c.Metrics.Path = "/m/{x}" }, "metrics.path"},
		{"metrics path method", func(c *ServerConfiguration) { c.Metrics.Path = "/m GET" }, "metrics.path"},
		{"max latency at write timeout", func(c *ServerConfiguration) { c.MaxLatencyMs = 60_000 }, "maxLatencyMs"},
		{"max latency overflow", func(c *ServerConfiguration) { c.MaxLatencyMs = math.MaxInt64 }, "maxLatencyMs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfiguration()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultServerConfiguration()
	cfg.Port = 0
	cfg.Metrics.Path = "x"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
	assert.Contains(t, err.Error(), "metrics.path")
}

func TestValidate_EndpointOptionalForStdout(t *testing.T) {
	cfg := DefaultServerConfiguration()
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = ExporterStdout
	cfg.Tracing.Endpoint = ""
	assert.NoError(t, cfg.Validate())
}

func TestDurations(t *testing.T) {
	cfg := DefaultServerConfiguration()
	cfg.MaxLatencyMs = 1500
	assert.Equal(t, "30s", cfg.ReadTimeoutDuration().String())
	assert.Equal(t, "1m0s", cfg.WriteTimeoutDuration().String())
	assert.Equal(t, "30s", cfg.ShutdownTimeoutDuration().String())
	assert.Equal(t, "1.5s", cfg.MaxLatency().String())
}

func TestValidate_MaxLatencyBelowWriteTimeout(t *testing.T) {
	cfg := DefaultServerConfiguration()
	cfg.MaxLatencyMs = 59_999
	assert.NoError(t, cfg.Validate())
}

func TestCheckMetricsPath(t *testing.T) {
	for _, p := range []string{"/metrics", "/prom", "/internal/metrics"} {
		assert.NoError(t, CheckMetricsPath(p), p)
	}
}

func TestMaxLatency_Saturates(t *testing.T) {
	cfg := DefaultServerConfiguration()
	cfg.MaxLatencyMs = math.MaxInt64
	assert.Positive(t, cfg.MaxLatency())

	cfg.WriteTimeout = math.MaxInt
	assert.Positive(t, cfg.WriteTimeoutDuration())
}

func TestEffectiveMaxLatency(t *testing.T) {
	tests := []struct {
		name         string
		writeTimeout int
		maxLatencyMs int64
		want         time.Duration
	}{
		{"defaults cap below write timeout", DefaultWriteTimeout, 0, 60*time.Second - LatencyHeadroom},
		{"explicit cap wins", DefaultWriteTimeout, 1500, 1500 * time.Millisecond},
		{"explicit cap trimmed to write timeout", 2, 5000, 2*time.Second - LatencyHeadroom},
		{"short write timeout", 1, 0, time.Second - LatencyHeadroom},
		{"huge cap", 10, math.MaxInt64, 10*time.Second - LatencyHeadroom},
		{"no write timeout no cap", 0, 0, 0},
		{"no write timeout explicit cap", 0, 300, 300 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultServerConfiguration()
			cfg.WriteTimeout = tt.writeTimeout
			cfg.MaxLatencyMs = tt.maxLatencyMs
			assert.Equal(t, tt.want, cfg.EffectiveMaxLatency())
		})
	}
}
