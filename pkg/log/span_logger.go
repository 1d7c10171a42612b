package log

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ Logger = spanLogger{}

// spanLogger forwards entries to lg and mirrors them as events on span.
// Error and Fatal entries also mark the span as failed.
type spanLogger struct {
	lg   Logger
	span trace.Span
}

// NewSpanLogger wraps lg so every entry is also recorded on span. Log lines
// carry traceId and spanId so they can be joined with the trace.
func NewSpanLogger(lg Logger, span trace.Span) Logger {
	return spanLogger{lg: lg.AddCallerSkip(1), span: span}
}

func (sl spanLogger) Debug(msg string, keysAndValues ...any) {
	sl.record(LevelDebug, msg, keysAndValues)
	sl.lg.Debug(msg, sl.withTraceIDs(keysAndValues)...)
}

func (sl spanLogger) Info(msg string, keysAndValues ...any) {
	sl.record(LevelInfo, msg, keysAndValues)
	sl.lg.Info(msg, sl.withTraceIDs(keysAndValues)...)
}

func (sl spanLogger) Warn(msg string, keysAndValues ...any) {
	sl.record(LevelWarn, msg, keysAndValues)
	sl.lg.Warn(msg, sl.withTraceIDs(keysAndValues)...)
}

func (sl spanLogger) Error(msg string, keysAndValues ...any) {
	sl.record(LevelError, msg, keysAndValues)
	sl.lg.Error(msg, sl.withTraceIDs(keysAndValues)...)
}

func (sl spanLogger) Fatal(msg string, keysAndValues ...any) {
	sl.record(LevelFatal, msg, keysAndValues)
	sl.lg.Fatal(msg, sl.withTraceIDs(keysAndValues)...)
}

func (sl spanLogger) WithKV(key string, value any) Logger {
	return spanLogger{lg: sl.lg.WithKV(key, value), span: sl.span}
}

func (sl spanLogger) GetAllKV() []any { return sl.lg.GetAllKV() }

func (sl spanLogger) WithName(name string) Logger {
	return spanLogger{lg: sl.lg.WithName(name), span: sl.span}
}

func (sl spanLogger) Name() string { return sl.lg.Name() }

func (sl spanLogger) AddCallerSkip(skip int) Logger {
	return spanLogger{lg: sl.lg.AddCallerSkip(skip), span: sl.span}
}

func (sl spanLogger) record(level Level, msg string, keysAndValues []any) {
	attrs := []attribute.KeyValue{
		attribute.String("level", string(level)),
		attribute.String("component", sl.lg.Name()),
	}
	attrs = append(attrs, spanAttributes(sl.lg.GetAllKV())...)
	attrs = append(attrs, spanAttributes(keysAndValues)...)
	sl.span.AddEvent(msg, trace.WithAttributes(attrs...))

	if level == LevelError || level == LevelFatal {
		sl.span.SetStatus(codes.Error, msg)
	}
}

func (sl spanLogger) withTraceIDs(keysAndValues []any) []any {
	sc := sl.span.SpanContext()
	return append([]any{"traceId", sc.TraceID().String(), "spanId", sc.SpanID().String()}, keysAndValues...)
}

// spanAttributes converts key-value pairs into span attributes, redacting
// sensitive keys. A non-string key ends the conversion; the remainder is
// kept as a single attribute.
func spanAttributes(keysAndValues []any) []attribute.KeyValue {
	keysAndValues = redactKV(keysAndValues)
	attrs := make([]attribute.KeyValue, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			attrs = append(attrs, attribute.String("invalidKeysAndValues", fmt.Sprint(keysAndValues[i:])))
			break
		}
		if i+1 == len(keysAndValues) {
			attrs = append(attrs, attribute.String(key, "MISSING"))
			break
		}

		switch v := keysAndValues[i+1].(type) {
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		case int:
			attrs = append(attrs, attribute.Int(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case uint64:
			attrs = append(attrs, attribute.String(key, fmt.Sprint(v)))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		case error:
			attrs = append(attrs, attribute.String(key, v.Error()))
		case fmt.Stringer:
			attrs = append(attrs, attribute.String(key, v.String()))
		default:
			attrs = append(attrs, attribute.String(key, fmt.Sprint(v)))
		}
	}
	return attrs
}
