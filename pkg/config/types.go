package config

import (
	"math"
	"time"
)

// Tracing exporters.
const (
	ExporterOTLPGRPC = "otlpgrpc"
	ExporterOTLPHTTP = "otlphttp"
	ExporterStdout   = "stdout"
	ExporterNone     = "none"
)

// Defaults.
const (
	DefaultPort            = 8080
	DefaultReadTimeout     = 30
	DefaultWriteTimeout    = 60
	DefaultShutdownTimeout = 30
	DefaultServiceName     = "errorgen"
	DefaultOTLPEndpoint    = "localhost:4317"
	DefaultMetricsPath     = "/metrics"
)

// Fixed routes. Metrics cannot be mounted on either.
const (
	PathErrorGenerator = "/api/error-generator"
	PathHealth         = "/healthz"
)

// LatencyHeadroom is kept free inside WriteTimeout for writing the response
// after the injected delay.
const LatencyHeadroom = 250 * time.Millisecond

// maxDurationMs is the largest millisecond count a time.Duration holds.
const maxDurationMs = int64(math.MaxInt64 / int64(time.Millisecond))

// ServerConfiguration holds all settings for the errorgen server.
type ServerConfiguration struct {
	// Port is the HTTP listen port
	Port int `json:"port" yaml:"port"`
	// ReadTimeout is the HTTP read timeout in seconds
	ReadTimeout int `json:"readTimeout" yaml:"readTimeout"`
	// WriteTimeout is the HTTP write timeout in seconds. It bounds the
	// longest latency a client can observe.
	WriteTimeout int `json:"writeTimeout" yaml:"writeTimeout"`
	// ShutdownTimeout is the graceful shutdown budget in seconds
	ShutdownTimeout int `json:"shutdownTimeout" yaml:"shutdownTimeout"`
	// MaxLatencyMs caps injected latency (0 = no cap)
	MaxLatencyMs int64 `json:"maxLatencyMs" yaml:"maxLatencyMs"`

	Log     LogConfig     `json:"log" yaml:"log"`
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// TracingConfig configures the OpenTelemetry tracer provider.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Exporter    string  `json:"exporter" yaml:"exporter"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	Insecure    bool    `json:"insecure" yaml:"insecure"`
	CAFile      string  `json:"caFile,omitempty" yaml:"caFile,omitempty"`
	SampleRate  float64 `json:"sampleRate" yaml:"sampleRate"`
	ServiceName string  `json:"serviceName" yaml:"serviceName"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// DefaultServerConfiguration returns a configuration with every default applied.
func DefaultServerConfiguration() *ServerConfiguration {
	return &ServerConfiguration{
		Port:            DefaultPort,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    ExporterOTLPGRPC,
			Endpoint:    DefaultOTLPEndpoint,
			Insecure:    true,
			SampleRate:  1.0,
			ServiceName: DefaultServiceName,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    DefaultMetricsPath,
		},
	}
}

// ReadTimeoutDuration returns ReadTimeout as a duration.
func (c *ServerConfiguration) ReadTimeoutDuration() time.Duration {
	return seconds(c.ReadTimeout)
}

// WriteTimeoutDuration returns WriteTimeout as a duration.
func (c *ServerConfiguration) WriteTimeoutDuration() time.Duration {
	return seconds(c.WriteTimeout)
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a duration.
func (c *ServerConfiguration) ShutdownTimeoutDuration() time.Duration {
	return seconds(c.ShutdownTimeout)
}

// MaxLatency returns MaxLatencyMs as a duration, saturating instead of
// overflowing.
func (c *ServerConfiguration) MaxLatency() time.Duration {
	return millis(c.MaxLatencyMs)
}

// EffectiveMaxLatency returns the cap the server applies to injected latency.
// MaxLatencyMs is used when set. Either way the cap stays LatencyHeadroom
// below WriteTimeout, so a delayed response is still written. Zero means no
// cap, which only happens when both settings are zero.
func (c *ServerConfiguration) EffectiveMaxLatency() time.Duration {
	limit := c.MaxLatency()
	if wt := c.WriteTimeoutDuration(); wt > 0 {
		writeCap := wt / 2
		if wt > 2*LatencyHeadroom {
			writeCap = wt - LatencyHeadroom
		}
		if limit <= 0 || limit > writeCap {
			limit = writeCap
		}
	}
	return max(limit, 0)
}

func seconds(n int) time.Duration {
	s := min(max(int64(n), -maxDurationMs/1000), maxDurationMs/1000)
	return millis(s * 1000)
}

func millis(ms int64) time.Duration {
	switch {
	case ms > maxDurationMs:
		ms = maxDurationMs
	case ms < -maxDurationMs:
		ms = -maxDurationMs
	}
	return time.Duration(ms) * time.Millisecond
}
