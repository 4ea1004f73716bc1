package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	// Default is the default logger instance
	Default *slog.Logger
)

func init() {
	Default = New("info", os.Stderr)
}

// ParseLevel maps a level name to a slog.Level. Unknown names fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// New creates a JSON logger with the given level and output
func New(level string, output io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// NewText creates a text-formatted logger, used by the CLI
func NewText(level string, output io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// SetDefault sets the default logger
func SetDefault(logger *slog.Logger) {
	Default = logger
	slog.SetDefault(logger)
}

// ForRun returns the default logger scoped to a search run.
func ForRun(runID string) *slog.Logger {
	return Default.With("run_id", runID)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Default.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Default.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Default.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Default.Error(msg, args...)
}

// With returns a logger with additional attributes
func With(args ...any) *slog.Logger {
	return Default.With(args...)
}
