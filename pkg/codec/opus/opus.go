// Package opus decodes NMSP audio subframes carrying Opus packets.
package opus

import (
	"fmt"

	"layeh.com/gopus"

	"github.com/MrWong99/nmspgate/pkg/audio"
	"github.com/MrWong99/nmspgate/pkg/codec"
)

const (
	channels = 1
	// maxFrameSize is the largest Opus frame (120 ms) at codec.SampleRate.
	maxFrameSize = codec.SampleRate * 120 / 1000
)

// Decoder wraps a gopus decoder for a single upload. Opus keeps prediction
// state across packets, so one Decoder must see every packet of the stream
// in order.
type Decoder struct {
	dec *gopus.Decoder
}

var _ codec.Decoder = (*Decoder)(nil)

// New creates a decoder producing mono PCM at codec.SampleRate.
func New() (*Decoder, error) {
	dec, err := gopus.NewDecoder(codec.SampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("opus: create decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Factory adapts [New] to codec.Factory.
func Factory() (codec.Decoder, error) {
	return New()
}

// Decode decodes one Opus packet into little-endian int16 PCM.
func (d *Decoder) Decode(packet []byte) ([]byte, error) {
	if d.dec == nil {
		return nil, codec.ErrClosed
	}
	pcm, err := d.dec.Decode(packet, maxFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("opus: decode: %w", err)
	}
	return audio.Int16sToBytes(pcm), nil
}

// Encoding reports codec.Linear16.
func (d *Decoder) Encoding() codec.Encoding { return codec.Linear16 }

// Close drops the decoder. gopus releases its native state on collection.
func (d *Decoder) Close() error {
	d.dec = nil
	return nil
}
