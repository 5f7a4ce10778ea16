package framed

import (
	"bytes"
	"errors"
	"testing"

	"github.com/MrWong99/nmspgate/pkg/codec"
)

func TestDecode_RestoresHeaderByte(t *testing.T) {
	t.Parallel()

	dec, _ := Factory()
	tests := [][]byte{
		{},
		{0xaa},
		bytes.Repeat([]byte{1}, 255),
	}
	for _, packet := range tests {
		got, err := dec.Decode(packet)
		if err != nil {
			t.Fatalf("Decode(%d bytes): %v", len(packet), err)
		}
		if int(got[0]) != len(packet) || !bytes.Equal(got[1:], packet) {
			t.Errorf("Decode(%d bytes) = % x", len(packet), got)
		}
	}
}

func TestDecode_RejectsOversizedPacket(t *testing.T) {
	t.Parallel()

	dec, _ := Factory()
	if _, err := dec.Decode(make([]byte, 256)); err == nil {
		t.Error("expected error for 256-byte packet")
	}
}

func TestDecode_AfterClose(t *testing.T) {
	t.Parallel()

	dec, _ := Factory()
	if dec.Encoding() != codec.SpeexWithHeaderByte {
		t.Errorf("Encoding() = %v", dec.Encoding())
	}
	_ = dec.Close()
	if _, err := dec.Decode([]byte{1}); !errors.Is(err, codec.ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}
