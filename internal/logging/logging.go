// Package logging wires structured slog output for a docai run.
// Records go to a size-rotated JSON file under the repository's .docai
// directory; the console is left to pterm so progress output stays readable.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level"`
	// FilePath is the path to the log file. Empty means stderr only.
	FilePath string `mapstructure:"file"`
	// MaxSizeMB is the maximum size in MB before rotation.
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxFiles is the maximum number of rotated files to keep.
	MaxFiles int `mapstructure:"max_files"`
	// WriteToStderr mirrors records to stderr.
	WriteToStderr bool `mapstructure:"-"`
}

// DefaultConfig returns file logging under repoPath/.docai/logs.
func DefaultConfig(repoPath string) Config {
	return Config{
		Level:     "info",
		FilePath:  DefaultLogPath(repoPath),
		MaxSizeMB: 10,
		MaxFiles:  5,
	}
}

// DefaultLogPath returns the log file location for a repository.
func DefaultLogPath(repoPath string) string {
	return filepath.Join(repoPath, ".docai", "logs", "docai.log")
}

// Setup builds the logger and returns a cleanup function that closes the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var writers []io.Writer
	cleanup := func() {}

	if cfg.FilePath != "" {
		if cfg.MaxSizeMB <= 0 {
			cfg.MaxSizeMB = 10
		}
		if cfg.MaxFiles <= 0 {
			cfg.MaxFiles = 5
		}
		writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, writer)
		cleanup = func() {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}

	if cfg.WriteToStderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	return slog.New(handler), cleanup, nil
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
