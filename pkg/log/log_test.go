package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

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

	for name, expected := range tests {
		assert.Equal(t, expected, ParseLevel(name), name)
	}
}

func TestWithModule(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	var buf bytes.Buffer

	SetupWriter(&buf, "warn")

	WithModule("engine").Info("hidden")
	WithModule("engine").Warn("shown", "workflow_id", "wf-1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "module=engine")
	assert.Contains(t, out, "workflow_id=wf-1")
}
