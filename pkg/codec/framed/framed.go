// Package framed passes speex packets through undecoded, restoring the
// one-byte length header each one arrived with. It serves backends that
// accept SPEEX_WITH_HEADER_BYTE audio directly.
package framed

import (
	"fmt"

	"github.com/MrWong99/nmspgate/pkg/codec"
)

// Decoder is the passthrough codec. It is stateless apart from the closed
// flag.
type Decoder struct {
	closed bool
}

var _ codec.Decoder = (*Decoder)(nil)

// Factory returns a new passthrough Decoder.
func Factory() (codec.Decoder, error) {
	return &Decoder{}, nil
}

// Decode returns packet prefixed with its length.
func (d *Decoder) Decode(packet []byte) ([]byte, error) {
	if d.closed {
		return nil, codec.ErrClosed
	}
	if len(packet) > 0xff {
		return nil, fmt.Errorf("framed: packet of %d bytes does not fit a header byte", len(packet))
	}
	out := make([]byte, 0, len(packet)+1)
	out = append(out, byte(len(packet)))
	return append(out, packet...), nil
}

// Encoding reports codec.SpeexWithHeaderByte.
func (d *Decoder) Encoding() codec.Encoding { return codec.SpeexWithHeaderByte }

// Close marks the decoder closed.
func (d *Decoder) Close() error {
	d.closed = true
	return nil
}
