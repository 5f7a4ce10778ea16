package nmsp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

// ErrShortFrame is returned when a part body is shorter than the two-byte
// terminator every part carries. Well-formed clients never produce this.
var ErrShortFrame = errors.New("nmsp: frame shorter than terminator")

// frameTerminatorLen is the CRLF that precedes every delimiter.
const frameTerminatorLen = 2

// defaultReadSize is the size of each read from the underlying stream.
const defaultReadSize = 8192

var headerSeparator = []byte("\r\n\r\n")

// DemuxOption configures a [Demuxer].
type DemuxOption func(*Demuxer)

// WithReadSize sets how many bytes are requested per read. Values <= 0 are
// ignored.
func WithReadSize(n int) DemuxOption {
	return func(d *Demuxer) {
		if n > 0 {
			d.readSize = n
		}
	}
}

// Demuxer splits a multipart byte stream into frame payloads. It is a lazy,
// single-pass iterator: each call to [Demuxer.Next] reads only as much of the
// stream as is needed to complete the next frame.
//
// Parts are recognised by searching the cumulative buffer for the delimiter,
// so a delimiter split across reads is found once its tail arrives. Content
// before the first delimiter is preamble and dropped. A part whose sub-headers
// cannot be separated from its body is skipped (see [Demuxer.Skipped]). Bytes
// left over when the stream ends are discarded: a frame is only emitted once
// the delimiter after it has been seen.
//
// A Demuxer is not safe for concurrent use.
type Demuxer struct {
	r        io.Reader
	delim    []byte
	readSize int

	chunk    []byte
	buf      []byte
	scanFrom int
	started  bool
	eof      bool
	err      error
	skipped  int
}

// NewDemuxer returns a Demuxer reading parts separated by boundary from r.
// boundary is the bare parameter value as returned by [ParseBoundary].
func NewDemuxer(r io.Reader, boundary string, opts ...DemuxOption) *Demuxer {
	d := &Demuxer{
		r:        r,
		delim:    Delimiter(boundary),
		readSize: defaultReadSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Next returns the next frame payload. It returns io.EOF once the stream is
// exhausted. Any other error is sticky: subsequent calls return it again.
func (d *Demuxer) Next() ([]byte, error) {
	for d.err == nil {
		if payload, ok := d.nextBuffered(); ok {
			if d.err != nil {
				return nil, d.err
			}
			return payload, nil
		}
		if d.eof {
			d.buf = nil
			d.err = io.EOF
			break
		}
		d.fill()
	}
	return nil, d.err
}

// All returns an iterator over the remaining payloads. Iteration stops after
// the first error, which is yielded; io.EOF is not.
func (d *Demuxer) All() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			payload, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(payload, err) || err != nil {
				return
			}
		}
	}
}

// Skipped reports how many frames were dropped because their sub-headers
// could not be split from the body.
func (d *Demuxer) Skipped() int { return d.skipped }

// nextBuffered consumes delimiters already present in the buffer until a
// payload is produced. It reports false when the buffer holds no further
// complete frame.
func (d *Demuxer) nextBuffered() ([]byte, bool) {
	for {
		i := bytes.Index(d.buf[d.scanFrom:], d.delim)
		if i < 0 {
			// Keep the last len(delim)-1 bytes in the search window so a
			// delimiter completed by the next read is still found.
			d.scanFrom = max(0, len(d.buf)-len(d.delim)+1)
			return nil, false
		}
		i += d.scanFrom
		raw := d.buf[:i]
		d.buf = d.buf[i+len(d.delim):]
		d.scanFrom = 0

		if !d.started {
			d.started = true
			continue
		}
		if len(raw) == 0 {
			continue
		}

		sep := bytes.Index(raw, headerSeparator)
		if sep < 0 {
			d.skipped++
			continue
		}
		body := raw[sep+len(headerSeparator):]
		if len(body) < frameTerminatorLen {
			d.err = fmt.Errorf("%w: %d bytes", ErrShortFrame, len(body))
			return nil, true
		}
		return bytes.Clone(body[:len(body)-frameTerminatorLen]), true
	}
}

// fill performs one read from the underlying stream.
func (d *Demuxer) fill() {
	if d.chunk == nil {
		d.chunk = make([]byte, d.readSize)
	}
	n, err := d.r.Read(d.chunk)
	d.buf = append(d.buf, d.chunk[:n]...)
	switch {
	case errors.Is(err, io.EOF):
		d.eof = true
	case err != nil:
		d.err = fmt.Errorf("nmsp: read body: %w", err)
	}
}
