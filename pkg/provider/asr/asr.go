// Package asr defines the Provider interface for batch speech recognition
// backends.
//
// An NMSP upload is complete before recognition starts, so a provider receives
// the whole utterance in one [Request] and answers with every result at once.
// Providers classify their failures into [ErrUnavailable] and [ErrTimeout] so
// callers can decide what to retry without knowing the backend.
//
// Implementations must be safe for concurrent use.
package asr

import (
	"context"
	"errors"

	"github.com/MrWong99/nmspgate/pkg/codec"
)

var (
	// ErrUnavailable marks a transient backend failure worth retrying.
	ErrUnavailable = errors.New("asr: backend unavailable")

	// ErrTimeout marks a call that ran out of time.
	ErrTimeout = errors.New("asr: backend timeout")

	// ErrUnsupportedEncoding is returned when a provider cannot accept the
	// request's audio encoding.
	ErrUnsupportedEncoding = errors.New("asr: unsupported audio encoding")
)

// Request is one utterance to recognise.
type Request struct {
	// Audio is the assembled upload in Encoding.
	Audio []byte

	// Encoding describes Audio.
	Encoding codec.Encoding

	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// Language is the normalised locale, e.g. "en-us".
	Language string

	// Model is the backend model identifier, e.g. "chirp_2".
	Model string
}

// Alternative is one candidate transcript of a result.
type Alternative struct {
	Transcript string
	Confidence float32
}

// Result is a consecutive portion of the utterance, best alternative first.
type Result struct {
	Alternatives []Alternative
}

// Response holds the results in utterance order. An empty Response means no
// speech was recognised; it is not an error.
type Response struct {
	Results []Result
}

// Provider is the abstraction over any recognition backend.
type Provider interface {
	// Recognize transcribes req. It honours ctx cancellation and deadline.
	Recognize(ctx context.Context, req Request) (*Response, error)

	// Close releases backend connections.
	Close() error
}
