// Package codec defines the per-request decoder that turns NMSP audio
// subframes into something the recognition backend accepts.
//
// A [Decoder] is stateful: consecutive packets of one upload must go through
// the same instance, and an instance must never be shared between uploads.
// Callers create one with a [Factory] at the start of a request and Close it
// when the request ends.
package codec

import (
	"errors"
	"fmt"
)

// SampleRate is the rate of every PCM stream handled by the gateway.
const SampleRate = 16000

// ErrClosed is returned by Decode after Close.
var ErrClosed = errors.New("codec: decoder closed")

// Encoding identifies what a [Decoder] emits.
type Encoding int

const (
	// Linear16 is 16-bit little-endian mono PCM at [SampleRate].
	Linear16 Encoding = iota

	// SpeexWithHeaderByte is wideband speex where every frame is preceded by
	// a one-byte length. Backends that accept it need no local decoding.
	SpeexWithHeaderByte
)

// String returns the backend-facing name of the encoding.
func (e Encoding) String() string {
	switch e {
	case Linear16:
		return "LINEAR16"
	case SpeexWithHeaderByte:
		return "SPEEX_WITH_HEADER_BYTE"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Decoder converts one audio packet at a time.
//
// Implementations are not safe for concurrent use.
type Decoder interface {
	// Decode converts a single packet, without its length prefix, and returns
	// the bytes to append to the request's audio buffer.
	Decode(packet []byte) ([]byte, error)

	// Encoding reports the format of the bytes returned by Decode.
	Encoding() Encoding

	// Close releases codec state. Decode must not be called afterwards.
	Close() error
}

// Factory creates a fresh Decoder for one request.
type Factory func() (Decoder, error)
