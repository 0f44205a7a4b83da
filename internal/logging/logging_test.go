package logging

import (
	"encoding/json"
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
		input string
		want  slog.Level
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
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: a log file in a temp dir
	logPath := filepath.Join(t.TempDir(), "server.log")
	cfg := Config{
		Level:         "info",
		FilePath:      logPath,
		MaxSizeMB:     1,
		MaxFiles:      2,
		WriteToStderr: false,
	}

	// When: logging through the configured logger
	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Info("ingest_started", slog.String("path", "/repo"))
	cleanup()

	// Then: the file contains a structured JSON record
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.Split(strings.TrimSpace(string(data)), "\n")[0]), &record))
	assert.Equal(t, "ingest_started", record["msg"])
	assert.Equal(t, "/repo", record["path"])
}

func TestSetup_RespectsLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "server.log")
	cfg := Config{
		Level:         "warn",
		FilePath:      logPath,
		MaxSizeMB:     1,
		MaxFiles:      2,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	logger.Info("below threshold")
	logger.Warn("at threshold")
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "below threshold")
	assert.Contains(t, string(data), "at threshold")
}

func TestRotatingWriter_RotatesAtSizeLimit(t *testing.T) {
	// Given: a writer with a tiny size limit
	dir := t.TempDir()
	logPath := filepath.Join(dir, "server.log")

	w, err := NewRotatingWriter(logPath, 1, 3)
	require.NoError(t, err)
	// Force a small max size for the test.
	w.maxSize = 64

	// When: writing past the limit
	for i := 0; i < 10; i++ {
		_, err := w.Write([]byte(strings.Repeat("x", 32) + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	// Then: a rotated file exists alongside the active one
	_, err = os.Stat(logPath)
	assert.NoError(t, err)
	_, err = os.Stat(logPath + ".1")
	assert.NoError(t, err)
}

func TestRotatingWriter_KeepsAtMostMaxFiles(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "server.log")

	w, err := NewRotatingWriter(logPath, 1, 2)
	require.NoError(t, err)
	w.maxSize = 16

	for i := 0; i < 20; i++ {
		_, err := w.Write([]byte(strings.Repeat("y", 16)))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	matches, err := filepath.Glob(logPath + ".*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)
}

func TestFindLogFile_ExplicitPathMissing(t *testing.T) {
	_, err := FindLogFile(filepath.Join(t.TempDir(), "nope.log"))
	assert.Error(t, err)
}

func TestFindLogFile_ExplicitPathFound(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "custom.log")
	require.NoError(t, os.WriteFile(logPath, []byte("x"), 0o644))

	got, err := FindLogFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, logPath, got)
}
