package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := writeFile(t, "errorgen.yaml", `
port: 9090
maxLatencyMs: 5000
log:
  level: debug
  format: json
tracing:
  enabled: true
  exporter: stdout
  sampleRate: 0.25
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, int64(5000), cfg.MaxLatencyMs)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, ExporterStdout, cfg.Tracing.Exporter)
	assert.InDelta(t, 0.25, cfg.Tracing.SampleRate, 1e-9)

	// Unset fields keep their defaults.
	assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, DefaultServiceName, cfg.Tracing.ServiceName)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := writeFile(t, "errorgen.json", `{"port": 7070, "metrics": {"enabled": false}}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
}

func TestLoadFromFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, ErrFileNotFound)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := LoadFromFile(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "directory")
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := LoadFromFile(writeFile(t, "empty.yaml", "  \n"))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := LoadFromFile(writeFile(t, "bad.yaml", "port: [1, 2\n"))
		assert.ErrorIs(t, err, ErrInvalidYAML)
	})

	t.Run("bad json", func(t *testing.T) {
		_, err := LoadFromFile(writeFile(t, "bad.json", `{"port": `))
		assert.ErrorIs(t, err, ErrInvalidJSON)
	})
}

func TestParseYAML_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		path string
	}{
		{"sample rate above one", "tracing:\n  sampleRate: 2\n", "tracing.sampleRate"},
		{"unknown top-level key", "listen: 8080\n", ""},
		{"port out of range", "port: 70000\n", "port"},
		{"unknown exporter", "tracing:\n  exporter: zipkin\n", "tracing.exporter"},
		{"relative metrics path", "metrics:\n  path: metrics\n", "metrics.path"},
		{"negative max latency", "maxLatencyMs: -1\n", "maxLatencyMs"},
		{"port as string", "port: \"8080\"\n", "port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaViolation)
			if tt.path != "" {
				assert.Contains(t, err.Error(), tt.path)
			}
		})
	}
}

func TestToYAML_RoundTrip(t *testing.T) {
	cfg := DefaultServerConfiguration()
	cfg.Port = 9999
	cfg.Tracing.Exporter = ExporterOTLPHTTP

	data, err := ToYAML(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "port: 9999")

	parsed, err := ParseYAML(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, parsed)
}

func TestToYAML_Nil(t *testing.T) {
	_, err := ToYAML(nil)
	assert.Error(t, err)
}

func TestPointerToPath(t *testing.T) {
	assert.Equal(t, "", pointerToPath(""))
	assert.Equal(t, "", pointerToPath("/"))
	assert.Equal(t, "port", pointerToPath("/port"))
	assert.Equal(t, "tracing.sampleRate", pointerToPath("/tracing/sampleRate"))
}
