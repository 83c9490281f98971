package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variable names
const (
	EnvPort              = "ERRORGEN_PORT"
	EnvReadTimeout       = "ERRORGEN_READ_TIMEOUT"
	EnvWriteTimeout      = "ERRORGEN_WRITE_TIMEOUT"
	EnvShutdownTimeout   = "ERRORGEN_SHUTDOWN_TIMEOUT"
	EnvMaxLatencyMs      = "ERRORGEN_MAX_LATENCY_MS"
	EnvLogLevel          = "ERRORGEN_LOG_LEVEL"
	EnvLogFormat         = "ERRORGEN_LOG_FORMAT"
	EnvTracingEnabled    = "ERRORGEN_TRACING_ENABLED"
	EnvTracingExporter   = "ERRORGEN_TRACING_EXPORTER"
	EnvTracingInsecure   = "ERRORGEN_TRACING_INSECURE"
	EnvTracingCAFile     = "ERRORGEN_TRACING_CA_FILE"
	EnvTracingSampleRate = "ERRORGEN_TRACING_SAMPLE_RATE"
	EnvMetricsEnabled    = "ERRORGEN_METRICS_ENABLED"
	EnvMetricsPath       = "ERRORGEN_METRICS_PATH"
	EnvConfig            = "ERRORGEN_CONFIG"

	// Standard OpenTelemetry variables.
	EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvServiceName  = "OTEL_SERVICE_NAME"
)

// LookupFunc looks up an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// LoadEnv applies environment overrides from the process environment.
func LoadEnv(cfg *ServerConfiguration) error {
	return ApplyEnv(cfg, os.LookupEnv)
}

// ApplyEnv applies environment overrides to cfg. Only variables that are set
// and non-empty are applied. Malformed values are reported together.
func ApplyEnv(cfg *ServerConfiguration, lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.int(EnvPort, &cfg.Port)
	e.int(EnvReadTimeout, &cfg.ReadTimeout)
	e.int(EnvWriteTimeout, &cfg.WriteTimeout)
	e.int(EnvShutdownTimeout, &cfg.ShutdownTimeout)
	e.int64(EnvMaxLatencyMs, &cfg.MaxLatencyMs)
	e.string(EnvLogLevel, &cfg.Log.Level)
	e.string(EnvLogFormat, &cfg.Log.Format)
	e.bool(EnvTracingEnabled, &cfg.Tracing.Enabled)
	e.string(EnvTracingExporter, &cfg.Tracing.Exporter)
	e.string(EnvOTLPEndpoint, &cfg.Tracing.Endpoint)
	e.bool(EnvTracingInsecure, &cfg.Tracing.Insecure)
	e.string(EnvTracingCAFile, &cfg.Tracing.CAFile)
	e.float(EnvTracingSampleRate, &cfg.Tracing.SampleRate)
	e.string(EnvServiceName, &cfg.Tracing.ServiceName)
	e.bool(EnvMetricsEnabled, &cfg.Metrics.Enabled)
	e.string(EnvMetricsPath, &cfg.Metrics.Path)

	return errors.Join(e.errs...)
}

// GetConfigFileFromEnv returns the config file path from the environment.
// Returns empty string if not set.
func GetConfigFileFromEnv() string {
	return os.Getenv(EnvConfig)
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) fail(key, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s=%q: %w", key, v, err))
}

func (e *envReader) string(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) bool(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		switch strings.ToLower(v) {
		case "true", "1", "yes", "on":
			*dst = true
		case "false", "0", "no", "off":
			*dst = false
		default:
			e.fail(key, v, errors.New("expected a boolean"))
		}
	}
}
