package transcribe

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/nmspgate/internal/observe"
	"github.com/MrWong99/nmspgate/internal/resilience"
	"github.com/MrWong99/nmspgate/pkg/codec"
	"github.com/MrWong99/nmspgate/pkg/nmsp"
	"github.com/MrWong99/nmspgate/pkg/provider/asr"
	"github.com/MrWong99/nmspgate/pkg/provider/asr/mock"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var errTest = errors.New("test error")

func testRequest() asr.Request {
	return asr.Request{
		Audio:      make([]byte, 3200),
		Encoding:   codec.Linear16,
		SampleRate: codec.SampleRate,
		Language:   "en-us",
		Model:      "chirp_2",
	}
}

func helloWorld() *asr.Response {
	return &asr.Response{Results: []asr.Result{{
		Alternatives: []asr.Alternative{{Transcript: "hello world", Confidence: 0.87}},
	}}}
}

func TestFlatten(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *asr.Response
		want []nmsp.Word
	}{
		{name: "nil", resp: nil, want: nil},
		{name: "no results", resp: &asr.Response{}, want: nil},
		{
			name: "confidence broadcast",
			resp: helloWorld(),
			want: []nmsp.Word{{Word: "hello", Confidence: 0.87}, {Word: "world", Confidence: 0.87}},
		},
		{
			name: "results concatenated, best alternative only",
			resp: &asr.Response{Results: []asr.Result{
				{Alternatives: []asr.Alternative{
					{Transcript: "set a", Confidence: 0.9},
					{Transcript: "sit at", Confidence: 0.4},
				}},
				{Alternatives: nil},
				{Alternatives: []asr.Alternative{{Transcript: "  timer\tnow ", Confidence: 0.5}}},
			}},
			want: []nmsp.Word{
				{Word: "set", Confidence: 0.9},
				{Word: "a", Confidence: 0.9},
				{Word: "timer", Confidence: 0.5},
				{Word: "now", Confidence: 0.5},
			},
		},
		{
			name: "blank transcript",
			resp: &asr.Response{Results: []asr.Result{{Alternatives: []asr.Alternative{{Transcript: "   "}}}}},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Flatten(tt.resp); !slices.Equal(got, tt.want) {
				t.Errorf("Flatten = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdapter_Success(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Responses: []*asr.Response{helloWorld()}}
	a := New(p)

	words, err := a.Transcribe(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(words) != 2 || words[0].Word != "hello" {
		t.Errorf("words = %v", words)
	}
	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].Req.Language != "en-us" || calls[0].Req.Model != "chirp_2" {
		t.Errorf("request = %+v", calls[0].Req)
	}
	if _, ok := calls[0].Ctx.Deadline(); !ok {
		t.Error("attempt context has no deadline")
	}
}

func TestAdapter_EmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	words, err := New(&mock.Provider{}).Transcribe(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(words) != 0 {
		t.Errorf("words = %v, want none", words)
	}
}

func TestAdapter_RetriesUnavailable(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{
		Errors:    []error{asr.ErrUnavailable, asr.ErrUnavailable},
		Responses: []*asr.Response{nil, nil, helloWorld()},
	}
	a := New(p, WithRetry(3, 10*time.Millisecond))

	start := time.Now()
	words, err := a.Transcribe(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(words) != 2 {
		t.Errorf("words = %v", words)
	}
	if n := len(p.Calls()); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("elapsed = %v, want at least two delays", elapsed)
	}
}

func TestAdapter_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Errors: []error{asr.ErrUnavailable, asr.ErrUnavailable, asr.ErrUnavailable, nil}}
	_, err := New(p, WithRetry(3, time.Millisecond)).Transcribe(context.Background(), testRequest())

	if !errors.Is(err, asr.ErrUnavailable) || !errors.Is(err, resilience.ErrRetriesExhausted) {
		t.Errorf("err = %v, want unavailable after exhausted retries", err)
	}
	if n := len(p.Calls()); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestAdapter_OtherErrorsAreFatal(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{Errors: []error{errTest}}
	_, err := New(p, WithRetry(3, time.Millisecond)).Transcribe(context.Background(), testRequest())

	if !errors.Is(err, errTest) {
		t.Errorf("err = %v, want %v", err, errTest)
	}
	if n := len(p.Calls()); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestAdapter_PerAttemptTimeout(t *testing.T) {
	t.Parallel()

	p := &mock.Provider{RecognizeFunc: func(ctx context.Context, _ asr.Request) (*asr.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	_, err := New(p, WithTimeout(10*time.Millisecond)).Transcribe(context.Background(), testRequest())

	if !errors.Is(err, asr.ErrTimeout) {
		t.Errorf("err = %v, want %v", err, asr.ErrTimeout)
	}
	if n := len(p.Calls()); n != 1 {
		t.Errorf("timeouts must not be retried, calls = %d", n)
	}
}

func TestAdapter_CancelDuringDelay(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := &mock.Provider{RecognizeFunc: func(context.Context, asr.Request) (*asr.Response, error) {
		cancel()
		return nil, asr.ErrUnavailable
	}}
	start := time.Now()
	_, err := New(p, WithRetry(3, time.Minute)).Transcribe(ctx, testRequest())

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("retry delay ignored cancellation")
	}
}

func TestAdapter_RecordsAttempts(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	p := &mock.Provider{
		Errors:    []error{asr.ErrUnavailable},
		Responses: []*asr.Response{nil, helloWorld()},
	}
	a := New(p, WithRetry(3, time.Millisecond), WithMetrics(m), WithName("google-v2"))
	if _, err := a.Transcribe(context.Background(), testRequest()); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "nmspgate.recognize.attempts" {
				continue
			}
			for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
				status, _ := dp.Attributes.Value("status")
				got[status.AsString()] += dp.Value
			}
		}
	}
	if got["unavailable"] != 1 || got["ok"] != 1 {
		t.Errorf("attempts by status = %v, want unavailable=1 ok=1", got)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{asr.ErrUnavailable, "unavailable"},
		{asr.ErrTimeout, "timeout"},
		{errTest, "error"},
	}
	for _, tt := range tests {
		if got := Status(tt.err); got != tt.want {
			t.Errorf("Status(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
