package artifact

import (
	"context"
	"errors"

	"github.com/MrWong99/nmspgate/internal/resilience"
)

// Guarded is a Store whose calls go through a circuit breaker. While the
// breaker is open calls fail fast with [resilience.ErrCircuitOpen].
type Guarded struct {
	Store
	breaker *resilience.Breaker
}

var _ Store = (*Guarded)(nil)

// Guard wraps s with b.
func Guard(s Store, b *resilience.Breaker) *Guarded {
	return &Guarded{Store: s, breaker: b}
}

// Put implements [Store].
func (g *Guarded) Put(ctx context.Context, obj Object) error {
	return g.do(ctx, func(ctx context.Context) error { return g.Store.Put(ctx, obj) })
}

// Annotate implements [Store].
func (g *Guarded) Annotate(ctx context.Context, key string, meta Metadata) error {
	return g.do(ctx, func(ctx context.Context) error { return g.Store.Annotate(ctx, key, meta) })
}

// Breaker returns the breaker guarding the store.
func (g *Guarded) Breaker() *resilience.Breaker { return g.breaker }

// do runs fn through the breaker. Missing or duplicate keys say nothing about
// backend health and are not counted as failures.
func (g *Guarded) do(ctx context.Context, fn func(context.Context) error) error {
	var callErr error
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		callErr = fn(ctx)
		if errors.Is(callErr, ErrNotFound) || errors.Is(callErr, ErrExists) {
			return nil
		}
		return callErr
	})
	if err != nil {
		return err
	}
	return callErr
}
