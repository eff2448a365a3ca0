package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelDebug},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

func TestSetupWritesJSON(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "ingest.log")

	logger, cleanup, err := Setup(Config{
		Level:    "debug",
		FilePath: logPath,
	})
	require.NoError(t, err)

	logger.Info("ingest started", "repo", "test-repo")
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, `"msg":"ingest started"`)
	assert.Contains(t, content, `"repo":"test-repo"`)
}

func TestSetupRespectsLevel(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "ingest.log")

	logger, cleanup, err := Setup(Config{
		Level:    "warn",
		FilePath: logPath,
	})
	require.NoError(t, err)

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	logger.Warn("should appear")
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	content := string(data)
	assert.NotContains(t, content, "should not appear")
	assert.Contains(t, content, "should appear")
}

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "ingest.log")

	w, err := NewRotatingWriter(logPath, 1, 3)
	require.NoError(t, err)
	defer w.Close()

	// Force the size threshold low to trigger rotation quickly.
	w.maxSize = 100

	line := strings.Repeat("x", 40) + "\n"
	for i := 0; i < 10; i++ {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}

	matches, err := filepath.Glob(logPath + ".*")
	require.NoError(t, err)
	assert.NotEmpty(t, matches, "expected at least one rotated file")

	// Never more rotated files than maxFiles.
	assert.LessOrEqual(t, len(matches), 3)
}

func TestRotatingWriterCreatesDir(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "logs", "ingest.log")

	w, err := NewRotatingWriter(logPath, 10, 5)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("hello\n"))
	require.NoError(t, err)

	_, err = os.Stat(logPath)
	assert.NoError(t, err)
}
