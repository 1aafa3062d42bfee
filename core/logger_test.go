package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLogger_JSONOutput(t *testing.T) {
	logger := NewStructuredLogger(LoggingConfig{Level: "info", Format: "json"}, "test-service", "cart")

	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Info("Cart persisted", map[string]interface{}{
		"items": 3,
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "test-service", entry["service"])
	assert.Equal(t, "cart", entry["component"])
	assert.Equal(t, "Cart persisted", entry["message"])
	assert.Equal(t, float64(3), entry["items"])
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	logger := NewStructuredLogger(LoggingConfig{Level: "warn", Format: "text"}, "svc", "session")

	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Info("should be filtered", nil)
	logger.Debug("should be filtered", nil)
	logger.Warn("should appear", nil)

	out := buf.String()
	assert.NotContains(t, out, "should be filtered")
	assert.Contains(t, out, "should appear")
}

func TestStructuredLogger_WithComponent(t *testing.T) {
	logger := NewStructuredLogger(LoggingConfig{Level: "info", Format: "text"}, "svc", "session")
	scoped := logger.WithComponent("checkout")

	var buf bytes.Buffer
	scoped.SetOutput(&buf)

	scoped.Info("sync skipped", nil)
	assert.Contains(t, buf.String(), "[checkout:svc]")
}

func TestStructuredLogger_ErrorRateLimit(t *testing.T) {
	logger := NewStructuredLogger(LoggingConfig{Level: "error", Format: "text"}, "svc", "api")

	var buf bytes.Buffer
	logger.SetOutput(&buf)

	// Burst of errors within the limiter interval collapses to one line
	for i := 0; i < 5; i++ {
		logger.Error("backend unreachable", nil)
	}

	lines := strings.Count(strings.TrimSpace(buf.String()), "\n") + 1
	assert.Equal(t, 1, lines, "error burst should be rate-limited to one line")
}
