package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path"
	"strings"
)

// validExporters are the allowed tracing exporters.
var validExporters = map[string]bool{
	ExporterOTLPGRPC: true,
	ExporterOTLPHTTP: true,
	ExporterStdout:   true,
	ExporterNone:     true,
}

// validLogLevels are the accepted log level spellings.
var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationError reports an invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the effective configuration after files, environment and
// flags have been applied. All problems are returned together.
func (c *ServerConfiguration) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Port < 1 || c.Port > 65535 {
		add("port", "must be between 1 and 65535, got %d", c.Port)
	}
	if c.ReadTimeout <= 0 {
		add("readTimeout", "must be > 0, got %d", c.ReadTimeout)
	}
	if c.WriteTimeout <= 0 {
		add("writeTimeout", "must be > 0, got %d", c.WriteTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		add("shutdownTimeout", "must be > 0, got %d", c.ShutdownTimeout)
	}
	if c.MaxLatencyMs < 0 {
		add("maxLatencyMs", "must be >= 0, got %d", c.MaxLatencyMs)
	} else if c.WriteTimeout > 0 && c.MaxLatency() >= c.WriteTimeoutDuration() {
		add("maxLatencyMs", "must be below writeTimeout (%dms), got %d",
			c.WriteTimeoutDuration().Milliseconds(), c.MaxLatencyMs)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "unsupported level %q", c.Log.Level)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		add("log.format", "unsupported format %q, expected text or json", c.Log.Format)
	}

	if !validExporters[c.Tracing.Exporter] {
		add("tracing.exporter", "unsupported exporter %q", c.Tracing.Exporter)
	}
	if math.IsNaN(c.Tracing.SampleRate) || c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		add("tracing.sampleRate", "must be between 0.0 and 1.0, got %v", c.Tracing.SampleRate)
	}
	if c.Tracing.ServiceName == "" {
		add("tracing.serviceName", "is required")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" &&
		(c.Tracing.Exporter == ExporterOTLPGRPC || c.Tracing.Exporter == ExporterOTLPHTTP) {
		add("tracing.endpoint", "is required for exporter %q", c.Tracing.Exporter)
	}
	if c.Tracing.CAFile != "" {
		if info, err := os.Stat(c.Tracing.CAFile); err != nil {
			add("tracing.caFile", "cannot access file: %v", err)
		} else if info.IsDir() {
			add("tracing.caFile", "path is a directory, not a file: %s", c.Tracing.CAFile)
		}
	}

	if err := CheckMetricsPath(c.Metrics.Path); err != nil {
		add("metrics.path", "%v", err)
	}

	return errors.Join(errs...)
}

// CheckMetricsPath reports whether p can be mounted as the metrics route: a
// clean absolute path, not "/", that does not collide with a fixed route.
func CheckMetricsPath(p string) error {
	switch {
	case !strings.HasPrefix(p, "/"):
		return fmt.Errorf("must start with /, got %q", p)
	case p == "/":
		return errors.New("must not be the root path")
	case strings.ContainsAny(p, " \t{}?#%"):
		return fmt.Errorf("must be a plain path, got %q", p)
	case path.Clean(p) != p:
		return fmt.Errorf("must be a clean path without a trailing slash, got %q", p)
	case p == PathErrorGenerator, p == PathHealth:
		return fmt.Errorf("%q is reserved", p)
	}
	return nil
}
