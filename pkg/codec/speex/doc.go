// Package speex decodes NMSP audio subframes carrying wideband speex frames.
//
// Decoding links against libspeex through cgo and is only compiled with the
// "speex" build tag. Without it [Factory] returns [ErrNotBuilt], and
// deployments are expected to run the passthrough codec against a backend
// that accepts speex directly.
package speex

import "errors"

// ErrNotBuilt is returned by Factory when the binary was built without the
// "speex" tag.
var ErrNotBuilt = errors.New("speex: built without libspeex support (use -tags speex)")

// ErrCorrupt is returned when libspeex rejects a frame.
var ErrCorrupt = errors.New("speex: corrupt frame")
