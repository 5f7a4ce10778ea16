package observe

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useTestTracer installs an in-memory tracer as the global provider for the
// duration of the test.
func useTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })
	return exp
}

// captureLogs redirects the default logger into a buffer.
func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

func TestCorrelationID(t *testing.T) {
	useTestTracer(t)

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID without span = %q, want empty", got)
	}

	ctx, span := StartSpan(context.Background(), "op")
	defer span.End()
	if cid := CorrelationID(ctx); len(cid) != 32 {
		t.Errorf("CorrelationID length = %d, want 32", len(cid))
	}
}

func TestLogger_TraceFields(t *testing.T) {
	useTestTracer(t)
	buf := captureLogs(t, slog.LevelInfo)

	Logger(context.Background()).Info("no span")
	if bytes.Contains(buf.Bytes(), []byte("trace_id")) {
		t.Errorf("trace_id logged without span: %s", buf)
	}

	buf.Reset()
	ctx, span := StartSpan(context.Background(), "op")
	defer span.End()
	Logger(ctx).Info("with span")
	if !bytes.Contains(buf.Bytes(), []byte("trace_id=")) || !bytes.Contains(buf.Bytes(), []byte("span_id=")) {
		t.Errorf("trace fields missing: %s", buf)
	}
}

func TestStage_RecordsSpanAndDuration(t *testing.T) {
	exp := useTestTracer(t)
	m, reader := newTestMetrics(t)

	_, end := Stage(context.Background(), m, StageRecognize)
	if d := end(nil); d < 0 {
		t.Errorf("duration = %v", d)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "nmsp.recognize" {
		t.Fatalf("spans = %v, want one nmsp.recognize", spans)
	}
	if spans[0].Status.Code == codes.Error {
		t.Error("successful stage marked as error")
	}

	met := findMetric(collect(t, reader), "nmspgate.stage.duration")
	if met == nil {
		t.Fatal("stage histogram not recorded")
	}
	if hist := met.Data.(metricdata.Histogram[float64]); hist.DataPoints[0].Count != 1 {
		t.Errorf("count = %d, want 1", hist.DataPoints[0].Count)
	}
}

func TestStage_MarksFailure(t *testing.T) {
	exp := useTestTracer(t)

	_, end := Stage(context.Background(), nil, StageAuth)
	end(errors.New("denied"))

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status.Code != codes.Error || spans[0].Status.Description != "denied" {
		t.Errorf("status = %+v, want error/denied", spans[0].Status)
	}
	if len(spans[0].Events) == 0 {
		t.Error("error event not recorded")
	}
}
