package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	parseIDKey ctxKey = iota
	modeKey
)

// WithParseID returns a context with the parse ID set.
func WithParseID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, parseIDKey, id)
}

// WithMode returns a context with the parse mode set.
func WithMode(ctx context.Context, mode string) context.Context {
	return context.WithValue(ctx, modeKey, mode)
}

// ParseID extracts the parse ID from the context, or "" if absent.
func ParseID(ctx context.Context) string {
	v, _ := ctx.Value(parseIDKey).(string)
	return v
}

// Mode extracts the parse mode from the context, or "" if absent.
func Mode(ctx context.Context) string {
	v, _ := ctx.Value(modeKey).(string)
	return v
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation IDs from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and IDs appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation ID injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := ParseID(ctx); v != "" {
		r.AddAttrs(slog.String("parse_id", v))
	}
	if v := Mode(ctx); v != "" {
		r.AddAttrs(slog.String("mode", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
