package observe

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope of gateway spans.
const tracerName = "github.com/MrWong99/nmspgate"

// Tracer returns the gateway tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span. The caller must End it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID returns the trace id of the span in ctx, or "" when there is
// none.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}

// Stage starts a span named "nmsp."+stage and returns a function that ends
// it, marks it failed when err is non-nil and records the stage duration on
// m. A nil m records no metric.
//
//	ctx, end := observe.Stage(ctx, m, observe.StageAuth)
//	id, err := gate.Authenticate(ctx, host)
//	end(err)
func Stage(ctx context.Context, m *Metrics, stage string) (context.Context, func(err error) time.Duration) {
	start := time.Now()
	ctx, span := StartSpan(ctx, "nmsp."+stage)
	return ctx, func(err error) time.Duration {
		d := time.Since(start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if m != nil {
			m.RecordStage(ctx, stage, d)
		}
		return d
	}
}
