// Package logger provides structured logging setup for the application.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler.
type Format int

const (
	// Text writes human readable key=value lines (CLI).
	Text Format = iota
	// JSON writes one JSON object per record (server).
	JSON
)

// Options configures Setup.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values fall back to info.
	Level string
	Format Format
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// ParseLevel maps a configured level name to a slog.Level (case-insensitive).
// The second result is false when the name is not recognised.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup builds a logger from opts and installs it as the slog default, so
// packages that fall back to slog.Default() share it.
func Setup(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level, ok := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch opts.Format {
	case JSON:
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	l := slog.New(handler)
	if !ok && opts.Level != "" {
		l.Warn("invalid log level configured, using default level",
			"configured_level", opts.Level,
			"default_level", "info")
	}

	slog.SetDefault(l)
	return l
}

// OrDefault returns l, or slog.Default() when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
