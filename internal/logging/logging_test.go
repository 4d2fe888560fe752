// ABOUTME: Tests for logger construction and the color handler
// ABOUTME: Color output is disabled so lines can be matched as plain text

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/parlor/internal/config"
)

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestNew_TextFormat(t *testing.T) {
	noColor(t)
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.With("component", "engine").Info("send failed", "error", "boom")
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "INF send failed component=engine error=boom")
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.Debug("refreshing", "sessions", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "refreshing", rec["msg"])
	assert.Equal(t, "DEBUG", rec["level"])
	assert.EqualValues(t, 3, rec["sessions"])
}

func TestColorHandler_Groups(t *testing.T) {
	noColor(t)
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "info"}, &buf)

	logger.WithGroup("http").Warn("slow", "ms", 900)

	assert.Contains(t, buf.String(), "WRN slow http.ms=900")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}
