// Package observe provides the gateway's observability primitives:
// OpenTelemetry metrics, tracing, trace-aware logging and the HTTP middleware
// that ties them together.
//
// Metrics go through the OpenTelemetry Metrics API. [InitProvider] installs a
// Prometheus exporter bridge so they can be scraped at /metrics. A
// package-level [DefaultMetrics] instance backs production code; tests should
// build their own with [NewMetrics] and a manual reader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope of every gateway metric.
const meterName = "github.com/MrWong99/nmspgate"

// Pipeline stages recorded by [Metrics.RecordStage].
const (
	StageAuth      = "auth"
	StageMetadata  = "metadata"
	StageAudio     = "audio"
	StageUpload    = "debug_upload"
	StageRecognize = "recognize"
	StageAnnotate  = "debug_annotate"
	StageEncode    = "encode"
)

// Metrics holds the OpenTelemetry instruments of the gateway. All fields are
// safe for concurrent use.
type Metrics struct {
	// Requests counts finished uploads. Attribute: outcome.
	Requests metric.Int64Counter

	// StageDuration tracks time spent per pipeline stage. Attribute: stage.
	StageDuration metric.Float64Histogram

	// RecognizeAttempts counts backend calls. Attributes: provider, status.
	RecognizeAttempts metric.Int64Counter

	// AudioBytes tracks the size of assembled audio per upload.
	AudioBytes metric.Int64Histogram

	// AudioFrames tracks the number of audio subframes per upload.
	AudioFrames metric.Int64Histogram

	// DebugStoreOps counts debug store calls. Attributes: store, op, status.
	DebugStoreOps metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	// name, to.
	BreakerTransitions metric.Int64Counter

	// ActiveRequests tracks uploads currently in flight.
	ActiveRequests metric.Int64UpDownCounter

	// HTTPRequestDuration tracks every HTTP request. Attributes: method,
	// path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are histogram boundaries in seconds, sized for an upload
// that spends most of its time in one recognition call.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// audioByteBuckets cover a few hundred milliseconds up to about a minute of
// 16 kHz PCM.
var audioByteBuckets = []float64{
	8 << 10, 32 << 10, 64 << 10, 128 << 10, 256 << 10, 512 << 10, 1 << 20, 2 << 20,
}

var frameBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Requests, err = m.Int64Counter("nmspgate.requests",
		metric.WithDescription("Finished NMSP uploads by outcome."),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("nmspgate.stage.duration",
		metric.WithDescription("Time spent in each upload pipeline stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecognizeAttempts, err = m.Int64Counter("nmspgate.recognize.attempts",
		metric.WithDescription("Recognition backend calls by provider and status."),
	); err != nil {
		return nil, err
	}
	if met.AudioBytes, err = m.Int64Histogram("nmspgate.audio.size",
		metric.WithDescription("Size of assembled upload audio."),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(audioByteBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AudioFrames, err = m.Int64Histogram("nmspgate.audio.frames",
		metric.WithDescription("Audio subframes per upload."),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DebugStoreOps, err = m.Int64Counter("nmspgate.debug_store.operations",
		metric.WithDescription("Debug artifact store calls by store, operation and status."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("nmspgate.circuit_breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}
	if met.ActiveRequests, err = m.Int64UpDownCounter("nmspgate.active_requests",
		metric.WithDescription("Uploads currently being processed."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("nmspgate.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first use
// from [otel.GetMeterProvider]. Call it after [InitProvider] so the
// instruments bind to the Prometheus-backed provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordRequest counts a finished upload.
func (m *Metrics) RecordRequest(ctx context.Context, outcome string) {
	m.Requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordStage records the duration of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordRecognizeAttempt counts one backend call.
func (m *Metrics) RecordRecognizeAttempt(ctx context.Context, provider, status string) {
	m.RecognizeAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// RecordAudio records the size of an assembled upload.
func (m *Metrics) RecordAudio(ctx context.Context, bytes, frames int) {
	m.AudioBytes.Record(ctx, int64(bytes))
	m.AudioFrames.Record(ctx, int64(frames))
}

// RecordDebugStore counts one debug store call.
func (m *Metrics) RecordDebugStore(ctx context.Context, store, op, status string) {
	m.DebugStoreOps.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("op", op),
		attribute.String("status", status),
	))
}

// RecordBreakerTransition counts a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, name, to string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("to", to),
	))
}
