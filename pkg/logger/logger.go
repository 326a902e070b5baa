package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// New returns the process logger: JSON to stdout, debug level outside staging/production.
func New(appEnv string) *slog.Logger {
	return NewWithWriter(appEnv, os.Stdout)
}

func NewWithWriter(appEnv string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", "sessionguard")
}

// Discard is a logger for tests and for callers that opt out of logging.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// Critical logs at error level tagged for paging. Use for misconfiguration
// the process survives but an operator must fix.
func Critical(l *slog.Logger, msg string, args ...any) {
	l.Error(msg, append([]any{"severity", "critical"}, args...)...)
}
