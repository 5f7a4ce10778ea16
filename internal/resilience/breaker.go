// Package resilience holds the failure-handling policies of the gateway: a
// bounded retry for recognition calls and a circuit breaker that lets the
// optional debug store fail fast instead of slowing every request.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Do] while calls are being rejected.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the cooldown ends.
	StateOpen

	// StateHalfOpen lets a single probe call through at a time.
	StateHalfOpen
)

// String returns the lower-case name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero fields take defaults.
type BreakerConfig struct {
	// Name labels log lines and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default: 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing. Default: 30s.
	Cooldown time.Duration

	// Probes is the number of successful probes that closes a half-open
	// breaker. Default: 1.
	Probes int

	// OnStateChange, if set, is called after every transition with the
	// breaker's lock released.
	OnStateChange func(name string, from, to State)
}

// Breaker is a three-state circuit breaker.
//
// Context cancellation of the caller is not counted as a failure: a client
// hanging up says nothing about the health of the protected dependency.
type Breaker struct {
	name          string
	maxFailures   int
	cooldown      time.Duration
	probes        int
	onStateChange func(string, State, State)
	now           func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	successes int
	probing   bool
}

// NewBreaker returns a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 1
	}
	return &Breaker{
		name:          cfg.Name,
		maxFailures:   cfg.MaxFailures,
		cooldown:      cfg.Cooldown,
		probes:        cfg.Probes,
		onStateChange: cfg.OnStateChange,
		now:           time.Now,
	}
}

// Do runs fn unless the breaker is open, and records its outcome.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	probe, err := b.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)

	switch {
	case err == nil:
		b.record(probe, true)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		b.release(probe)
	default:
		b.record(probe, false)
	}
	return err
}

// State returns the current state. An open breaker whose cooldown has passed
// reports half-open even before the next call moves it there.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		return StateHalfOpen
	}
	return b.state
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.probing = false
	b.mu.Unlock()
	b.notify(from, StateClosed)
}

// admit decides whether a call may proceed. probe reports that the call is
// the half-open probe.
func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	from := b.state
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			b.mu.Unlock()
			return false, ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.successes = 0
		b.probing = true
		b.mu.Unlock()
		b.notify(from, StateHalfOpen)
		return true, nil
	case StateHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return false, ErrCircuitOpen
		}
		b.probing = true
		b.mu.Unlock()
		return true, nil
	}
	b.mu.Unlock()
	return false, nil
}

func (b *Breaker) record(probe, ok bool) {
	b.mu.Lock()
	from := b.state
	if probe {
		b.probing = false
	}
	switch {
	case ok && b.state == StateHalfOpen:
		b.successes++
		if b.successes >= b.probes {
			b.state = StateClosed
			b.failures = 0
		}
	case ok:
		b.failures = 0
	case b.state == StateHalfOpen:
		b.trip()
	default:
		b.failures++
		if b.failures >= b.maxFailures {
			b.trip()
		}
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from, to)
}

// release ends a call without recording an outcome.
func (b *Breaker) release(probe bool) {
	if !probe {
		return
	}
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

// trip opens the breaker. Must be called with b.mu held.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.successes = 0
}

func (b *Breaker) notify(from, to State) {
	if from == to {
		return
	}
	switch to {
	case StateOpen:
		slog.Warn("circuit breaker opened", "name", b.name, "from", from.String())
	default:
		slog.Info("circuit breaker state change", "name", b.name, "from", from.String(), "to", to.String())
	}
	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}
