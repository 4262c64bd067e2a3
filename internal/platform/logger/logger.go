// Package logger holds the process-wide structured logger. Output is JSON
// on stdout so log shippers can ingest it without a parser config.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

var defaultLogger = newLogger(slog.LevelInfo)

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", "cineswipe")
}

// L returns the shared logger for injection into services.
func L() *slog.Logger {
	return defaultLogger
}

// SetLevel rebuilds the shared logger at the given level. Call it once
// during startup, before handing the logger out.
func SetLevel(level slog.Level) {
	defaultLogger = newLogger(level)
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

func Fatal(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
	os.Exit(1)
}
