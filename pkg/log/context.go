package log

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type contextKey struct{}

// SetContextLogger returns a copy of ctx carrying lg. A nil lg stores a
// NoopLogger. When ctx holds a valid span, lg is wrapped with NewSpanLogger.
func SetContextLogger(ctx context.Context, lg Logger) context.Context {
	if lg == nil {
		lg = NewNoopLogger()
	}
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		lg = NewSpanLogger(lg, span)
	}
	return context.WithValue(ctx, contextKey{}, lg)
}

// FromContext returns the logger stored in ctx, or a NoopLogger.
func FromContext(ctx context.Context) Logger {
	if lg, ok := ctx.Value(contextKey{}).(Logger); ok {
		return lg
	}
	return NewNoopLogger()
}
