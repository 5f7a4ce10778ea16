//go:build speex

package speex

import (
	"errors"
	"testing"

	"github.com/MrWong99/nmspgate/pkg/codec"
)

func TestDecoder_FrameSize(t *testing.T) {
	dec, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer dec.Close()

	// Wideband speex uses 20 ms frames.
	if dec.frameSize != codec.SampleRate/50 {
		t.Errorf("frameSize = %d, want %d", dec.frameSize, codec.SampleRate/50)
	}
}

func TestDecoder_EmptyPacket(t *testing.T) {
	dec, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer dec.Close()

	if _, err := dec.Decode(nil); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Decode(nil) err = %v, want ErrCorrupt", err)
	}
}

func TestDecoder_CloseTwice(t *testing.T) {
	dec, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := dec.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := dec.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := dec.Decode([]byte{1}); !errors.Is(err, codec.ErrClosed) {
		t.Errorf("Decode after Close err = %v, want ErrClosed", err)
	}
}
