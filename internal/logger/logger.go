// Package logger provides a simple leveled logger for the application.
// It supports three levels: off (no output), normal (info/warn/error),
// and verbose (includes debug). Output goes through log/slog with a tint
// console handler; color is enabled only when writing to a terminal.
// The logger is safe for concurrent use.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/lmittmann/tint"
)

// Level controls the verbosity of the logger.
type Level int

const (
	// LevelOff disables all log output.
	LevelOff Level = iota
	// LevelNormal enables info, warn, and error output.
	LevelNormal
	// LevelVerbose enables all output including debug.
	LevelVerbose
)

// Logger is a leveled logger. All methods are safe for concurrent use.
type Logger struct {
	mu    sync.RWMutex
	level Level
	slog  *slog.Logger
}

// New creates a logger with the given level, writing to the given output.
// If out is nil, os.Stderr is used.
func New(level Level, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}

	h := tint.NewHandler(out, &tint.Options{
		Level:      slog.LevelDebug, // filtering happens in Logger
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(out),
	})

	return &Logger{level: level, slog: slog.New(h)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(f.Fd())
}

// SetLevel changes the log level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// Slog returns the underlying structured logger so third-party code using
// log/slog can share the same output.
func (l *Logger) Slog() *slog.Logger { return l.slog }

// Debug logs a message at debug level (only visible in verbose mode).
func (l *Logger) Debug(format string, args ...any) {
	l.logf(LevelVerbose, slog.LevelDebug, format, args...)
}

// Info logs a message at info level.
func (l *Logger) Info(format string, args ...any) {
	l.logf(LevelNormal, slog.LevelInfo, format, args...)
}

// Warn logs a message at warn level.
func (l *Logger) Warn(format string, args ...any) {
	l.logf(LevelNormal, slog.LevelWarn, format, args...)
}

// Error logs a message at error level.
func (l *Logger) Error(format string, args ...any) {
	l.logf(LevelNormal, slog.LevelError, format, args...)
}

func (l *Logger) logf(min Level, lvl slog.Level, format string, args ...any) {
	if l.GetLevel() < min {
		return
	}
	l.slog.Log(context.Background(), lvl, fmt.Sprintf(format, args...))
}
