// Package logger builds the structured loggers shared by the CLI and the
// storage layer.
package logger

import (
	"io"
	"log/slog"
)

// Logger is a slog.Logger whose level can be switched after creation.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New returns a text logger writing to w. Debug records are emitted only
// when debug is set.
func New(w io.Writer, debug bool) *Logger {
	level := new(slog.LevelVar)
	l := &Logger{
		Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})),
		level:  level,
	}
	l.SetDebug(debug)
	return l
}

// SetDebug enables or disables debug level logging.
func (l *Logger) SetDebug(enabled bool) {
	if enabled {
		l.level.Set(slog.LevelDebug)
	} else {
		l.level.Set(slog.LevelWarn)
	}
}

// WithSession returns a logger with the session ID attached.
func (l *Logger) WithSession(sessionID string) *slog.Logger {
	return l.With("sessionID", sessionID)
}

// WithComponent returns a logger with the component name attached.
func (l *Logger) WithComponent(component string) *slog.Logger {
	return l.With("component", component)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
