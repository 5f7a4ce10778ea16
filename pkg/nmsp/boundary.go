package nmsp

import (
	"errors"
	"strings"
)

// ErrNoBoundary is returned when a request Content-Type carries no usable
// boundary parameter.
var ErrNoBoundary = errors.New("nmsp: missing multipart boundary")

// ParseBoundary extracts the boundary parameter from a multipart Content-Type.
//
// The parse is intentionally naive and mirrors what the firmware-facing
// servers have always accepted: the text of the first parameter after the
// first "=", trimmed. Further parameters and quoting are not handled.
func ParseBoundary(contentType string) (string, error) {
	params := strings.Split(contentType, ";")
	if len(params) < 2 {
		return "", ErrNoBoundary
	}
	kv := strings.Split(params[1], "=")
	if len(kv) < 2 {
		return "", ErrNoBoundary
	}
	boundary := strings.TrimSpace(kv[1])
	if boundary == "" {
		return "", ErrNoBoundary
	}
	return boundary, nil
}

// Delimiter returns the byte sequence separating parts for boundary.
func Delimiter(boundary string) []byte {
	return []byte("--" + boundary)
}
