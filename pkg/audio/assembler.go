package audio

import (
	"bytes"
	"errors"
	"fmt"
	"iter"

	"github.com/MrWong99/nmspgate/pkg/codec"
)

var (
	// ErrBadSubframe is returned for a subframe whose length prefix is missing
	// or points past the end of the payload.
	ErrBadSubframe = errors.New("audio: malformed subframe")

	// ErrOddPCM is returned when a decoder emits a PCM chunk that is not
	// sample aligned.
	ErrOddPCM = errors.New("audio: decoder produced odd-length PCM")
)

// Assembler strips the one-byte length prefix from each audio subframe,
// passes the packet to the request's decoder and appends the result.
//
// The decoder belongs to the caller, which creates it per request and closes
// it afterwards. An Assembler is not safe for concurrent use.
type Assembler struct {
	dec    codec.Decoder
	buf    bytes.Buffer
	frames int
}

// NewAssembler returns an Assembler feeding dec.
func NewAssembler(dec codec.Decoder) *Assembler {
	return &Assembler{dec: dec}
}

// Add decodes one subframe and appends its output.
//
// The stated length is trusted as long as it fits in the payload; bytes
// after it are trailing control bytes and are dropped.
func (a *Assembler) Add(subframe []byte) error {
	if len(subframe) == 0 {
		return fmt.Errorf("%w %d: empty", ErrBadSubframe, a.frames)
	}
	n := int(subframe[0])
	if n > len(subframe)-1 {
		return fmt.Errorf("%w %d: length %d exceeds %d payload bytes",
			ErrBadSubframe, a.frames, n, len(subframe)-1)
	}

	out, err := a.dec.Decode(subframe[1 : 1+n])
	if err != nil {
		return fmt.Errorf("audio: decode subframe %d: %w", a.frames, err)
	}
	if a.dec.Encoding() == codec.Linear16 && len(out)%2 != 0 {
		return fmt.Errorf("%w: subframe %d gave %d bytes", ErrOddPCM, a.frames, len(out))
	}
	a.buf.Write(out)
	a.frames++
	return nil
}

// Consume adds every subframe from seq, stopping at the first error from
// either the sequence or the decoder.
func (a *Assembler) Consume(seq iter.Seq2[[]byte, error]) error {
	for subframe, err := range seq {
		if err != nil {
			return err
		}
		if err := a.Add(subframe); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the assembled audio. The slice aliases internal storage and
// is only valid until the next Add.
func (a *Assembler) Bytes() []byte { return a.buf.Bytes() }

// Len returns the number of assembled bytes.
func (a *Assembler) Len() int { return a.buf.Len() }

// Frames returns how many subframes were decoded.
func (a *Assembler) Frames() int { return a.frames }

// Encoding reports the format of [Assembler.Bytes].
func (a *Assembler) Encoding() codec.Encoding { return a.dec.Encoding() }
