// Package config provides the errorgen server configuration.
//
// Settings are resolved in layers, each overriding the previous one:
//
//  1. DefaultServerConfiguration
//  2. a YAML or JSON file (LoadFromFile), validated against an embedded JSON Schema
//  3. ERRORGEN_* and OTEL_* environment variables (LoadEnv)
//  4. command-line flags, applied by pkg/cli
//
// Validate checks the final result.
//
// Example file:
//
//	port: 8080
//	maxLatencyMs: 30000
//	log:
//	  level: debug
//	  format: json
//	tracing:
//	  enabled: true
//	  exporter: otlpgrpc
//	  endpoint: otel-collector:4317
//	  sampleRate: 0.5
//	metrics:
//	  path: /metrics
package config
