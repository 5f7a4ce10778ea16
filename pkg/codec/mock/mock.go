// Package mock provides a test double for codec.Decoder.
package mock

import (
	"bytes"
	"sync"

	"github.com/MrWong99/nmspgate/pkg/codec"
)

// Decoder is a mock implementation of codec.Decoder.
//
// By default Decode returns each packet unchanged. Set DecodeFunc to control
// the output, or DecodeErr to fail every call.
type Decoder struct {
	mu sync.Mutex

	// DecodeFunc, if set, computes the result of Decode.
	DecodeFunc func(packet []byte) ([]byte, error)

	// DecodeErr, if non-nil and DecodeFunc is nil, is returned by every Decode.
	DecodeErr error

	// Enc is returned by Encoding. Zero value is codec.Linear16.
	Enc codec.Encoding

	// CloseErr is returned by Close.
	CloseErr error

	// DecodeCalls records a copy of every packet passed to Decode, in order.
	DecodeCalls [][]byte

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

var _ codec.Decoder = (*Decoder)(nil)

// Decode records the packet and returns according to DecodeFunc/DecodeErr.
func (d *Decoder) Decode(packet []byte) ([]byte, error) {
	d.mu.Lock()
	d.DecodeCalls = append(d.DecodeCalls, bytes.Clone(packet))
	fn, err := d.DecodeFunc, d.DecodeErr
	d.mu.Unlock()

	if fn != nil {
		return fn(packet)
	}
	if err != nil {
		return nil, err
	}
	return bytes.Clone(packet), nil
}

// Encoding returns Enc.
func (d *Decoder) Encoding() codec.Encoding { return d.Enc }

// Close records the call and returns CloseErr.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCallCount++
	return d.CloseErr
}

// Calls returns a snapshot of the recorded Decode packets.
func (d *Decoder) Calls() [][]byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([][]byte, len(d.DecodeCalls))
	copy(out, d.DecodeCalls)
	return out
}

// Closes returns CloseCallCount.
func (d *Decoder) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.CloseCallCount
}

// Factory returns a codec.Factory that always hands out dec.
func Factory(dec *Decoder) codec.Factory {
	return func() (codec.Decoder, error) { return dec, nil }
}
