package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth  = 16
	wavChannels  = 1
	wavFormatPCM = 1
)

// EncodeWAV wraps mono 16-bit PCM in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, ErrOddPCM
	}

	var out seekBuffer
	enc := wav.NewEncoder(&out, sampleRate, wavBitDepth, wavChannels, wavFormatPCM)

	samples := BytesToInt16s(pcm)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: wavChannels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: wavBitDepth,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}

	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("audio: write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: finish wav: %w", err)
	}
	return out.buf, nil
}

// seekBuffer is an in-memory io.WriteSeeker. The WAV encoder seeks back to
// patch chunk sizes once the data length is known.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	copy(s.buf[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(s.pos)
	case io.SeekEnd:
		base = int64(len(s.buf))
	default:
		return 0, errors.New("audio: invalid whence")
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("audio: negative seek position")
	}
	s.pos = int(next)
	return next, nil
}
