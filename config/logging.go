package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ParseLogLevel converts a configured level name to slog.Level
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger. Normally it writes colored text to w.
// With GDRIVECHAT_DEBUG set it writes JSON at debug level to
// <data dir>/debug.log instead, leaving w untouched. The returned closer
// releases the log file.
func NewLogger(cfg *Config, w io.Writer) (*slog.Logger, io.Closer, error) {
	if !CheckDebug() {
		h := tint.NewHandler(w, &tint.Options{
			Level:      ParseLogLevel(cfg.LogLevel),
			TimeFormat: time.Kitchen,
		})
		return slog.New(h), nopCloser{}, nil
	}

	logPath := filepath.Join(cfg.DataDir(), "debug.log")

	// 0600: debug output may include file names and tool arguments
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open debug log at %s: %w", logPath, err)
	}

	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}))
	logger.Debug("debug logging started", "path", logPath)

	return logger, f, nil
}
