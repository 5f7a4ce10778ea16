// Package transcribe turns an assembled upload into the word list the legacy
// encoder expects.
//
// An [Adapter] wraps an [asr.Provider] with the retry policy of the gateway:
// calls failing with [asr.ErrUnavailable] are repeated after a fixed delay,
// every other failure ends the request at once. Each attempt runs under its
// own deadline so a hung backend cannot consume the whole retry budget.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/nmspgate/internal/observe"
	"github.com/MrWong99/nmspgate/internal/resilience"
	"github.com/MrWong99/nmspgate/pkg/nmsp"
	"github.com/MrWong99/nmspgate/pkg/provider/asr"
)

// Defaults applied by [New].
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = time.Second
	DefaultTimeout     = 10 * time.Second
)

// Option configures an [Adapter].
type Option func(*Adapter)

// WithRetry sets the total number of attempts and the pause between them.
func WithRetry(maxAttempts int, delay time.Duration) Option {
	return func(a *Adapter) {
		a.retry.MaxAttempts = maxAttempts
		a.retry.Delay = delay
	}
}

// WithTimeout sets the deadline of a single attempt. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// WithMetrics records attempts on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// WithName labels metrics and logs with the backend name.
func WithName(name string) Option {
	return func(a *Adapter) { a.name = name }
}

// Adapter runs recognition with bounded retry. It is safe for concurrent use.
type Adapter struct {
	provider asr.Provider
	name     string
	timeout  time.Duration
	retry    resilience.Retry
	metrics  *observe.Metrics
}

// New returns an Adapter over p.
func New(p asr.Provider, opts ...Option) *Adapter {
	a := &Adapter{
		provider: p,
		name:     "asr",
		timeout:  DefaultTimeout,
		retry: resilience.Retry{
			MaxAttempts: DefaultMaxAttempts,
			Delay:       DefaultDelay,
		},
	}
	for _, o := range opts {
		o(a)
	}
	a.retry.Retryable = func(err error) bool { return errors.Is(err, asr.ErrUnavailable) }
	return a
}

// Transcribe recognises req and flattens the outcome. An empty, non-nil
// error-free result means no speech was recognised.
//
// Errors wrap [asr.ErrUnavailable], [asr.ErrTimeout] or the backend's own
// error. When every attempt was unavailable the error also wraps
// [resilience.ErrRetriesExhausted].
func (a *Adapter) Transcribe(ctx context.Context, req asr.Request) ([]nmsp.Word, error) {
	log := observe.Logger(ctx)
	retry := a.retry
	retry.OnRetry = func(attempt int, err error) {
		log.Warn("recognition attempt failed, retrying",
			"backend", a.name,
			"attempt", attempt,
			"delay", a.retry.Delay,
			"err", err,
		)
	}

	var resp *asr.Response
	err := retry.Do(ctx, func(ctx context.Context, _ int) error {
		r, err := a.recognize(ctx, req)
		a.record(ctx, err)
		resp = r
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	return Flatten(resp), nil
}

// recognize makes one backend call under the per-attempt deadline.
func (a *Adapter) recognize(ctx context.Context, req asr.Request) (*asr.Response, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	resp, err := a.provider.Recognize(ctx, req)
	if err != nil && !errors.Is(err, asr.ErrTimeout) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", asr.ErrTimeout, err)
	}
	return resp, err
}

func (a *Adapter) record(ctx context.Context, err error) {
	if a.metrics == nil {
		return
	}
	a.metrics.RecordRecognizeAttempt(ctx, a.name, Status(err))
}

// Status is the metric label of a recognition outcome.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, asr.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, asr.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// Flatten converts a backend response into words. Only the best alternative
// of each result is used; its transcript is split on whitespace and every
// word inherits the alternative's confidence. Results are concatenated in
// order.
func Flatten(resp *asr.Response) []nmsp.Word {
	if resp == nil {
		return nil
	}
	var words []nmsp.Word
	for _, res := range resp.Results {
		if len(res.Alternatives) == 0 {
			continue
		}
		alt := res.Alternatives[0]
		for _, w := range strings.Fields(alt.Transcript) {
			words = append(words, nmsp.Word{Word: w, Confidence: alt.Confidence})
		}
	}
	return words
}
