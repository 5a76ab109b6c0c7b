package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger for the process.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
