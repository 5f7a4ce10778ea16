package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed
// with a retryable error.
var ErrRetriesExhausted = errors.New("resilience: retries exhausted")

// Retry is a fixed-delay retry policy.
//
// The zero value makes a single attempt. Only errors for which Retryable
// returns true are retried; anything else is returned immediately.
type Retry struct {
	// MaxAttempts is the total number of attempts, first included.
	MaxAttempts int

	// Delay is the pause between attempts.
	Delay time.Duration

	// Retryable reports whether err is worth another attempt. Nil means
	// nothing is retried.
	Retryable func(err error) bool

	// OnRetry, if set, is called before each pause with the attempt that
	// just failed (1-based).
	OnRetry func(attempt int, err error)
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// attempts run out. The pause between attempts ends early when ctx is done.
func (r Retry) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(r.MaxAttempts, 1)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if r.Retryable == nil || !r.Retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}
		if r.OnRetry != nil {
			r.OnRetry(attempt, err)
		}
		if err := sleep(ctx, r.Delay); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
