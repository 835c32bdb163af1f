package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maltedev/amazon-review-scraper/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, config.LoggingConfig{Level: "warn", Format: "json"})
	logger.Info("hidden")
	logger.Warn("shown", "asin", "B000000001")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"asin":"B000000001"`)

	buf.Reset()
	NewWithWriter(&buf, config.LoggingConfig{Level: "info", Format: "text"}).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}
