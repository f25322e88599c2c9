package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates the process logger with JSON output. Every record carries
// the bridge client id so several bridges can share one log sink.
func New(level slog.Level, clientID string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, clientID)
}

func NewWithWriter(w io.Writer, level slog.Level, clientID string) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	if clientID != "" {
		logger = logger.With("bridge", clientID)
	}
	return logger
}

// Component returns a child logger tagged with the component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}
