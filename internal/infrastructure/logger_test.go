package infrastructure

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradecli/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"WARN", slog.LevelWarn},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.input), "level %q", tt.input)
	}
}

func TestInitializeLoggerConsole(t *testing.T) {
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "console",
	})
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, logger, slog.Default())
}

func TestInitializeLoggerFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "gradecli.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    "debug",
		Format:   "json",
		Output:   "file",
		FilePath: logPath,
	})
	require.NoError(t, err)

	logger.Info("test entry", slog.String("key", "value"))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"test entry"`)
	assert.Contains(t, string(data), `"key":"value"`)
}
