// Package mock provides a test double for asr.Provider.
//
// Results are consumed in order, one per call, which makes it easy to script
// "fail twice, then succeed":
//
//	p := &mock.Provider{
//	    Errors:    []error{asr.ErrUnavailable, asr.ErrUnavailable},
//	    Responses: []*asr.Response{nil, nil, resp},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/nmspgate/pkg/provider/asr"
)

// RecognizeCall records a single invocation of Provider.Recognize.
type RecognizeCall struct {
	Ctx context.Context
	Req asr.Request
}

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// Responses[i] is returned by call i. Once exhausted, the last entry is
	// reused; if empty an empty Response is returned.
	Responses []*asr.Response

	// Errors[i], if non-nil, is returned by call i instead of a response.
	Errors []error

	// RecognizeFunc, if set, overrides Responses and Errors.
	RecognizeFunc func(ctx context.Context, req asr.Request) (*asr.Response, error)

	// CloseErr is returned by Close.
	CloseErr error

	// RecognizeCalls records every call in order.
	RecognizeCalls []RecognizeCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

var _ asr.Provider = (*Provider)(nil)

// Recognize records the call and returns the scripted result.
func (p *Provider) Recognize(ctx context.Context, req asr.Request) (*asr.Response, error) {
	p.mu.Lock()
	n := len(p.RecognizeCalls)
	p.RecognizeCalls = append(p.RecognizeCalls, RecognizeCall{Ctx: ctx, Req: req})
	fn := p.RecognizeFunc
	var err error
	if n < len(p.Errors) {
		err = p.Errors[n]
	}
	resp := &asr.Response{}
	switch {
	case n < len(p.Responses) && p.Responses[n] != nil:
		resp = p.Responses[n]
	case n >= len(p.Responses) && len(p.Responses) > 0 && p.Responses[len(p.Responses)-1] != nil:
		resp = p.Responses[len(p.Responses)-1]
	}
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Close records the call and returns CloseErr.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCallCount++
	return p.CloseErr
}

// Calls returns a snapshot of RecognizeCalls.
func (p *Provider) Calls() []RecognizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]RecognizeCall, len(p.RecognizeCalls))
	copy(out, p.RecognizeCalls)
	return out
}
