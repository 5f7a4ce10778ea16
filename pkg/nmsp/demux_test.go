package nmsp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"
	"testing/iotest"
)

const testBoundary = "NMSP_test_boundary_0123"

// buildBody assembles a multipart upload in the layout firmware produces: a
// metadata part followed by audio parts, each with two sub-headers.
func buildBody(boundary string, parts ...[]byte) []byte {
	var b bytes.Buffer
	for i, p := range parts {
		name := "ConcludingAudioParameter"
		if i == 0 {
			name = "RequestData"
		}
		b.WriteString("--" + boundary + "\r\n")
		fmt.Fprintf(&b, "Content-Disposition: form-data; name=%q\r\n", name)
		b.WriteString("Content-Type: application/octet-stream\r\n\r\n")
		b.Write(p)
		b.WriteString("\r\n")
	}
	b.WriteString("--" + boundary + "--\r\n")
	return b.Bytes()
}

// chunkReader returns at most size bytes per Read.
type chunkReader struct {
	data []byte
	size int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := min(len(p), c.size, len(c.data))
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func collect(t *testing.T, d *Demuxer) [][]byte {
	t.Helper()
	var out [][]byte
	for {
		p, err := d.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, p)
	}
}

func testParts() [][]byte {
	return [][]byte{
		[]byte(`{"CommandName":"NVC_ASR_CMD","Language":"en-US"}`),
		{5, 0x1e, 0x2f, 0x00, 0xff, 0x0d},
		{3, '\r', '\n', '-'},
		{4, '-', '-', 'N', 'M'},
		{0},
	}
}

func TestDemuxer_SingleChunk(t *testing.T) {
	t.Parallel()

	parts := testParts()
	body := buildBody(testBoundary, parts...)
	d := NewDemuxer(bytes.NewReader(body), testBoundary, WithReadSize(len(body)+1))

	got := collect(t, d)
	if len(got) != len(parts) {
		t.Fatalf("got %d frames, want %d", len(got), len(parts))
	}
	for i := range parts {
		if !bytes.Equal(got[i], parts[i]) {
			t.Errorf("frame %d = %q, want %q", i, got[i], parts[i])
		}
	}
	if d.Skipped() != 0 {
		t.Errorf("Skipped() = %d, want 0", d.Skipped())
	}
}

func TestDemuxer_ChunkSizeIndependent(t *testing.T) {
	t.Parallel()

	body := buildBody(testBoundary, testParts()...)
	want := collect(t, NewDemuxer(bytes.NewReader(body), testBoundary, WithReadSize(len(body))))

	for size := 1; size <= len(body); size++ {
		d := NewDemuxer(&chunkReader{data: body, size: size}, testBoundary)
		got := collect(t, d)
		if len(got) != len(want) {
			t.Fatalf("chunk size %d: got %d frames, want %d", size, len(got), len(want))
		}
		for i := range want {
			if !bytes.Equal(got[i], want[i]) {
				t.Fatalf("chunk size %d: frame %d = %q, want %q", size, i, got[i], want[i])
			}
		}
	}
}

func TestDemuxer_IotestReaders(t *testing.T) {
	t.Parallel()

	body := buildBody(testBoundary, testParts()...)
	want := collect(t, NewDemuxer(bytes.NewReader(body), testBoundary))

	readers := map[string]func() io.Reader{
		"one byte":  func() io.Reader { return iotest.OneByteReader(bytes.NewReader(body)) },
		"half":      func() io.Reader { return iotest.HalfReader(bytes.NewReader(body)) },
		"data err":  func() io.Reader { return iotest.DataErrReader(bytes.NewReader(body)) },
		"7 per read": func() io.Reader { return &chunkReader{data: body, size: 7} },
	}
	for name, mk := range readers {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := collect(t, NewDemuxer(mk(), testBoundary, WithReadSize(64)))
			if len(got) != len(want) {
				t.Fatalf("got %d frames, want %d", len(got), len(want))
			}
			for i := range want {
				if !bytes.Equal(got[i], want[i]) {
					t.Errorf("frame %d = %q, want %q", i, got[i], want[i])
				}
			}
		})
	}
}

func TestDemuxer_DiscardsPreamble(t *testing.T) {
	t.Parallel()

	body := append([]byte("this is a preamble\r\nwith two lines\r\n"), buildBody(testBoundary, []byte("meta"))...)
	got := collect(t, NewDemuxer(bytes.NewReader(body), testBoundary))
	if len(got) != 1 || string(got[0]) != "meta" {
		t.Fatalf("frames = %q, want [meta]", got)
	}
}

func TestDemuxer_SkipsFrameWithoutHeaders(t *testing.T) {
	t.Parallel()

	delim := "--" + testBoundary
	body := []byte(delim + "\r\nno header separator here\r\n" +
		delim + "\r\nX-H: 1\r\n\r\nkept\r\n" +
		delim + "--\r\n")

	d := NewDemuxer(bytes.NewReader(body), testBoundary)
	got := collect(t, d)
	if len(got) != 1 || string(got[0]) != "kept" {
		t.Fatalf("frames = %q, want [kept]", got)
	}
	if d.Skipped() != 1 {
		t.Errorf("Skipped() = %d, want 1", d.Skipped())
	}
}

func TestDemuxer_AdjacentBoundariesYieldNothing(t *testing.T) {
	t.Parallel()

	delim := "--" + testBoundary
	body := []byte(delim + delim + delim + "\r\nH: v\r\n\r\nx\r\n" + delim + "--")
	d := NewDemuxer(bytes.NewReader(body), testBoundary)
	got := collect(t, d)
	if len(got) != 1 || string(got[0]) != "x" {
		t.Fatalf("frames = %q, want [x]", got)
	}
	if d.Skipped() != 0 {
		t.Errorf("Skipped() = %d, want 0", d.Skipped())
	}
}

func TestDemuxer_DropsTrailingFrameWithoutBoundary(t *testing.T) {
	t.Parallel()

	delim := "--" + testBoundary
	body := []byte(delim + "\r\nH: v\r\n\r\nfirst\r\n" + delim + "\r\nH: v\r\n\r\nunterminated\r\n")
	got := collect(t, NewDemuxer(bytes.NewReader(body), testBoundary))
	if len(got) != 1 || string(got[0]) != "first" {
		t.Fatalf("frames = %q, want [first]", got)
	}
}

func TestDemuxer_ShortFrameFailsLoudly(t *testing.T) {
	t.Parallel()

	delim := "--" + testBoundary
	body := []byte(delim + "\r\n\r\nX" + delim + "--\r\n")
	d := NewDemuxer(bytes.NewReader(body), testBoundary)

	_, err := d.Next()
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("Next() err = %v, want ErrShortFrame", err)
	}
	// Errors are sticky.
	if _, err := d.Next(); !errors.Is(err, ErrShortFrame) {
		t.Errorf("second Next() err = %v, want ErrShortFrame", err)
	}
}

func TestDemuxer_ReadErrorPropagates(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("connection reset")
	body := buildBody(testBoundary, []byte("meta"))
	r := io.MultiReader(bytes.NewReader(body[:20]), iotest.ErrReader(errBoom))

	d := NewDemuxer(r, testBoundary)
	_, err := d.Next()
	if !errors.Is(err, errBoom) {
		t.Fatalf("Next() err = %v, want %v", err, errBoom)
	}
}

func TestDemuxer_EmptyStream(t *testing.T) {
	t.Parallel()

	d := NewDemuxer(bytes.NewReader(nil), testBoundary)
	if _, err := d.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next() err = %v, want io.EOF", err)
	}
}

func TestDemuxer_All(t *testing.T) {
	t.Parallel()

	parts := testParts()
	d := NewDemuxer(bytes.NewReader(buildBody(testBoundary, parts...)), testBoundary)

	i := 0
	for p, err := range d.All() {
		if err != nil {
			t.Fatalf("All yielded error: %v", err)
		}
		if !bytes.Equal(p, parts[i]) {
			t.Errorf("frame %d = %q, want %q", i, p, parts[i])
		}
		i++
	}
	if i != len(parts) {
		t.Errorf("iterated %d frames, want %d", i, len(parts))
	}
}

func TestDemuxer_PayloadsDoNotAliasBuffer(t *testing.T) {
	t.Parallel()

	body := buildBody(testBoundary, []byte("aaaa"), []byte("bbbb"))
	d := NewDemuxer(iotest.OneByteReader(bytes.NewReader(body)), testBoundary)

	first, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := d.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if string(first) != "aaaa" {
		t.Errorf("first payload changed to %q after further reads", first)
	}
}
