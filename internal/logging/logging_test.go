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

func TestDefaultConfig_PointsIntoRepository(t *testing.T) {
	cfg := DefaultConfig("/repo")

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, filepath.Join("/repo", ".docai", "logs", "docai.log"), cfg.FilePath)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.Equal(t, 5, cfg.MaxFiles)
	assert.False(t, cfg.WriteToStderr)
}

func TestSetup_WritesJSONRecordsToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "docai.log")

	logger, cleanup, err := Setup(Config{Level: "debug", FilePath: logPath, MaxSizeMB: 1, MaxFiles: 2})
	require.NoError(t, err)

	logger.Debug("batch persisted", slog.String("folder", "pkg"))
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"batch persisted"`)
	assert.Contains(t, string(data), `"folder":"pkg"`)
}

func TestSetup_RespectsLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "docai.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: logPath})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	cleanup()

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestRotatingWriter_RotatesWhenFull(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "docai.log")

	w, err := NewRotatingWriter(logPath, 1, 2)
	require.NoError(t, err)
	w.maxSize = 16

	_, err = w.Write([]byte(strings.Repeat("a", 12)))
	require.NoError(t, err)
	_, err = w.Write([]byte(strings.Repeat("b", 12)))
	require.NoError(t, err)
	_, err = w.Write([]byte(strings.Repeat("c", 12)))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	current, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("c", 12), string(current))

	first, err := os.ReadFile(logPath + ".1")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("b", 12), string(first))

	second, err := os.ReadFile(logPath + ".2")
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 12), string(second))
}
