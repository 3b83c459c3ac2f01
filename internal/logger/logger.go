// Package logger configures the application slog logger and carries a request scoped logger in the request context.
//
// In dev and test environments logs are written with tint (colourised, human readable).
// In staging and prod logs are written as JSON so they can be ingested by the log pipeline.
//
// Handlers should use ContextRequestLogger(r.Context()) so every line carries the request id.
// Attributes that should appear on the final request log line are added with ContextWithLogAttrs.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// LevelNone disables logging (used by the tests)
const LevelNone slog.Level = slog.LevelError + 100

// ParseLogLevel converts a LOG_LEVEL string to a slog level. Unknown values default to debug.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none", "off":
		return LevelNone
	default:
		return slog.LevelDebug
	}
}

// InitLogger creates the application logger and sets it as the slog default.
func InitLogger(level slog.Level, environment string) *slog.Logger {
	l := NewLogger(os.Stderr, level, environment)
	slog.SetDefault(l)
	return l
}

// NewLogger creates a logger writing to w.
func NewLogger(w io.Writer, level slog.Level, environment string) *slog.Logger {
	if level >= LevelNone {
		return slog.New(slog.DiscardHandler)
	}

	var handler slog.Handler
	switch environment {
	case "prod", "staging":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	}
	return slog.New(handler)
}

type contextKey int

const (
	requestLoggerKey contextKey = iota
	logAttrsKey
)

// logAttrs collects attributes added by middleware and handlers during a request.
type logAttrs struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

// ContextWithRequestLogger stores a request scoped logger in the context.
func ContextWithRequestLogger(ctx context.Context, l *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, requestLoggerKey, l)
	if _, ok := ctx.Value(logAttrsKey).(*logAttrs); !ok {
		ctx = context.WithValue(ctx, logAttrsKey, &logAttrs{})
	}
	return ctx
}

// ContextRequestLogger returns the request scoped logger, or the default logger when there is none.
func ContextRequestLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(requestLoggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// ContextWithLogAttrs adds attributes to the final request log line.
// It is a no-op when the context was not prepared by RequestLogging.
func ContextWithLogAttrs(ctx context.Context, attrs ...slog.Attr) {
	if la, ok := ctx.Value(logAttrsKey).(*logAttrs); ok {
		la.mu.Lock()
		la.attrs = append(la.attrs, attrs...)
		la.mu.Unlock()
	}
}

// ContextLogAttrs returns a copy of the attributes collected for the request.
func ContextLogAttrs(ctx context.Context) []slog.Attr {
	la, ok := ctx.Value(logAttrsKey).(*logAttrs)
	if !ok {
		return nil
	}
	la.mu.Lock()
	defer la.mu.Unlock()
	out := make([]slog.Attr, len(la.attrs))
	copy(out, la.attrs)
	return out
}
