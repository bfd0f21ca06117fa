// Package logger configures the process-wide slog logger for karmad.
// Output is JSON with source locations so settlement and state-machine
// log lines can be traced back to the call site during incident review.
package logger

import (
	"log/slog"
	"os"
)

// Setup installs the global JSON logger. Called once from the CLI
// Before hook so every subcommand logs the same way.
func Setup(level slog.Level) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	})
	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps the --log-level flag value to a slog.Level.
// Unrecognized values fall back to info.
func ParseLevel(level string) slog.Level {
	switch level {
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
