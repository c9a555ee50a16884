package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newBufferLogger(buf *bytes.Buffer, level LogLevel) *HubLogger {
	return NewLogger(&LoggerConfig{Level: level, Format: "json", Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestHubLogger_KeyValueArgs(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, LogLevelDebug)

	l.Info("flow.model.call", "agent", "chatbot", "step", 3, "run_id", "r1")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "flow.model.call", lines[0]["msg"])
	assert.Equal(t, "chatbot", lines[0]["agent"])
	assert.Equal(t, float64(3), lines[0]["step"])
	assert.Equal(t, "r1", lines[0]["run_id"])
}

func TestHubLogger_DanglingArg(t *testing.T) {
	var buf bytes.Buffer
	newBufferLogger(&buf, LogLevelInfo).Warn("odd", "key")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "key", lines[0]["!BADKEY"])
}

func TestHubLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, LogLevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	l.Error("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestHubLogger_ConfiguredAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{
		Level:       LogLevelInfo,
		Format:      "json",
		Output:      &buf,
		Component:   "cli",
		CustomAttrs: map[string]any{"version": "dev"},
	})

	l.Info("cli.start")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "cli", lines[0]["component"])
	assert.Equal(t, "dev", lines[0]["version"])
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.Debug("runner.turn.start", "run_id", "r1")
	l.Warn("safety.guard.unavailable", "model", "guard")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "runner.turn.start", lines[0]["msg"])
	assert.Equal(t, "r1", lines[0]["run_id"])
	assert.Equal(t, "WARN", lines[1]["level"])
}

func TestZapAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapAdapter(zap.New(core))

	l.Debug("tool.call.start", "tool", "Calculator")
	l.Error("tool.call.error", "tool", "Calculator", "error", "division by zero")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "Calculator", entries[0].ContextMap()["tool"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "division by zero", entries[1].ContextMap()["error"])
}

func TestNewZapAdapter_Nil(t *testing.T) {
	l := NewZapAdapter(nil)
	assert.NotPanics(t, func() { l.Info("ignored", "k", "v") })
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	assert.NotPanics(t, func() { l.Error("x") })
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{"debug": LogLevelDebug, "INFO": LogLevelInfo, "": LogLevelInfo, "warning": LogLevelWarn, "error": LogLevelError} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
