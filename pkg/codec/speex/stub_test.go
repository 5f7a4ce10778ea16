//go:build !speex

package speex

import (
	"errors"
	"testing"
)

func TestFactory_NotBuilt(t *testing.T) {
	t.Parallel()

	if _, err := Factory(); !errors.Is(err, ErrNotBuilt) {
		t.Errorf("Factory() err = %v, want ErrNotBuilt", err)
	}
}
