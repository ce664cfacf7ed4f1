// Package logging provides structured logging configuration using log/slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	levelEnv  = "CASHSYNC_LOG_LEVEL"
	formatEnv = "CASHSYNC_LOG_FORMAT"
)

// Config holds logging configuration options.
type Config struct {
	// Level is the minimum log level to output.
	Level slog.Level
	// JSON enables JSON output, for runs under a scheduler.
	JSON bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// FromEnv builds a configuration from CASHSYNC_LOG_LEVEL (DEBUG, INFO,
// WARN, ERROR; default INFO) and CASHSYNC_LOG_FORMAT ("json" or "text").
func FromEnv() Config {
	return Config{
		Level:  ParseLevel(os.Getenv(levelEnv)),
		JSON:   strings.EqualFold(os.Getenv(formatEnv), "json"),
		Output: os.Stderr,
	}
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds a logger from cfg and installs it as the slog default.
func Setup(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler).With("app", "cashsync")
	slog.SetDefault(logger)
	return logger
}
