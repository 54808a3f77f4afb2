package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormats(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"", "msg=hello"},
		{"text", "msg=hello"},
		{"JSON", `"msg":"hello"`},
		{"pretty", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(Config{Writer: &buf, Format: tt.format, Level: slog.LevelInfo})
			require.NoError(t, err)

			logger.Info("hello", "uri", "init.mp4")
			assert.Contains(t, buf.String(), tt.want)
			assert.Contains(t, buf.String(), "init.mp4")
		})
	}
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestNewHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf, Format: FormatJSON, Level: slog.LevelWarn})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "kept", record["msg"])
	assert.Equal(t, "WARN", record["level"])
}

func TestPrettyHandlerAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logger.With("component", "workaround").WithGroup("box").Debug("inserted", "type", "enca")

	out := buf.String()
	assert.Contains(t, out, "DBG")
	assert.Contains(t, out, "component=workaround")
	assert.Contains(t, out, "box.type=enca")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(t.Context(), slog.LevelError))
}
