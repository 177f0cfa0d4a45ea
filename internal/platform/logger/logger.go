package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Level defaults to info; set
// CONCORD_LOG_LEVEL=debug for verbose reconciliation traces.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("CONCORD_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
