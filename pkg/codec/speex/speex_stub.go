//go:build !speex

package speex

import "github.com/MrWong99/nmspgate/pkg/codec"

// Factory always fails in builds without libspeex.
func Factory() (codec.Decoder, error) {
	return nil, ErrNotBuilt
}
