package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, map[string]any{"status": "running"}))
	assert.Equal(t, "{\n  \"status\": \"running\"\n}\n", buf.String())
}

func TestWarn(t *testing.T) {
	var buf bytes.Buffer
	Warn(&buf, "tracer shutdown error: %v", "boom")
	assert.Equal(t, "Warning: tracer shutdown error: boom\n", buf.String())
}
