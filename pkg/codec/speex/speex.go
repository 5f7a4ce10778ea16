//go:build speex

package speex

/*
#cgo pkg-config: speex
#include <stdlib.h>
#include <speex/speex.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/MrWong99/nmspgate/pkg/audio"
	"github.com/MrWong99/nmspgate/pkg/codec"
)

// Decoder holds libspeex wideband decoder state for one upload.
type Decoder struct {
	state     unsafe.Pointer
	bits      *C.SpeexBits
	frameSize int
	out       []int16
}

var _ codec.Decoder = (*Decoder)(nil)

// New creates a wideband (16 kHz) decoder with perceptual enhancement on.
func New() (*Decoder, error) {
	state := C.speex_decoder_init(&C.speex_wb_mode)
	if state == nil {
		return nil, errors.New("speex: decoder init failed")
	}

	var enh C.int = 1
	C.speex_decoder_ctl(state, C.SPEEX_SET_ENH, unsafe.Pointer(&enh))

	var frameSize C.int
	C.speex_decoder_ctl(state, C.SPEEX_GET_FRAME_SIZE, unsafe.Pointer(&frameSize))
	if frameSize <= 0 {
		C.speex_decoder_destroy(state)
		return nil, fmt.Errorf("speex: invalid frame size %d", int(frameSize))
	}

	bits := (*C.SpeexBits)(C.malloc(C.size_t(C.sizeof_SpeexBits)))
	C.speex_bits_init(bits)

	return &Decoder{
		state:     state,
		bits:      bits,
		frameSize: int(frameSize),
		out:       make([]int16, int(frameSize)),
	}, nil
}

// Factory adapts [New] to codec.Factory.
func Factory() (codec.Decoder, error) {
	return New()
}

// Decode decodes the single speex frame in packet into little-endian int16
// PCM.
func (d *Decoder) Decode(packet []byte) ([]byte, error) {
	if d.state == nil {
		return nil, codec.ErrClosed
	}
	if len(packet) == 0 {
		return nil, fmt.Errorf("%w: empty packet", ErrCorrupt)
	}

	C.speex_bits_read_from(d.bits, (*C.char)(unsafe.Pointer(&packet[0])), C.int(len(packet)))
	ret := C.speex_decode_int(d.state, d.bits, (*C.spx_int16_t)(unsafe.Pointer(&d.out[0])))
	if ret != 0 {
		return nil, fmt.Errorf("%w: libspeex returned %d", ErrCorrupt, int(ret))
	}
	return audio.Int16sToBytes(d.out), nil
}

// Encoding reports codec.Linear16.
func (d *Decoder) Encoding() codec.Encoding { return codec.Linear16 }

// Close frees the native decoder state. It is safe to call more than once.
func (d *Decoder) Close() error {
	if d.state == nil {
		return nil
	}
	C.speex_bits_destroy(d.bits)
	C.free(unsafe.Pointer(d.bits))
	C.speex_decoder_destroy(d.state)
	d.state = nil
	d.bits = nil
	return nil
}
