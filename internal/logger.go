package internal

import (
	"context"
	"log/slog"
)

// LevelTrace is one notch below slog.LevelDebug, for per-segment detail
// that would otherwise drown out ordinary debug logging. Same constant
// the teacher's internal/debug.go defined for the same purpose.
const LevelTrace slog.Level = slog.LevelDebug - 2

// Logger is a small embeddable wrapper around *slog.Logger used by sender
// and receiver to keep every structured-logging call site uniform:
// nil-safe (a zero Logger silently drops everything), with Enabled
// available for callers that want to skip building slog.Attr values when
// nothing would be emitted. Mirrors the shape of the teacher's
// tcp.logger/debug.go helpers.
type Logger struct {
	Log *slog.Logger
}

// Enabled reports whether lvl would actually be emitted, letting callers
// skip building expensive attrs for a no-op log call.
func (l Logger) Enabled(lvl slog.Level) bool {
	return l.Log != nil && l.Log.Handler().Enabled(context.Background(), lvl)
}

func (l Logger) log(lvl slog.Level, msg string, attrs ...slog.Attr) {
	if l.Log == nil {
		return
	}
	l.Log.LogAttrs(context.Background(), lvl, msg, attrs...)
}

// Trace logs below debug level: per-segment detail.
func (l Logger) Trace(msg string, attrs ...slog.Attr) { l.log(LevelTrace, msg, attrs...) }

// Debug logs a state-machine transition or other routine event.
func (l Logger) Debug(msg string, attrs ...slog.Attr) { l.log(slog.LevelDebug, msg, attrs...) }

// Info logs a lifecycle event (open, terminate).
func (l Logger) Info(msg string, attrs ...slog.Attr) { l.log(slog.LevelInfo, msg, attrs...) }

// Err logs a protocol violation or other handled error.
func (l Logger) Err(msg string, err error) { l.log(slog.LevelError, msg, slog.String("err", err.Error())) }
