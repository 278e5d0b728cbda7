// Package log is the daemon's logging front end: typed slog.Attr helpers for
// the attributes every component shares, and Setup to pick the handler.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Debug logs at the debug level.
func Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.Default().LogAttrs(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs at the info level.
func Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.Default().LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs at the warning level.
func Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.Default().LogAttrs(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs at the error level.
func Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	slog.Default().LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

// ParseLevel converts debug, info, warn or error to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return l, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// Setup installs a text or json handler writing to w as the default logger.
func Setup(w io.Writer, level, format string) error {
	l, err := ParseLevel(level)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: l}

	var h slog.Handler
	switch format {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("log format %q: want text or json", format)
	}
	slog.SetDefault(slog.New(h))
	return nil
}
