package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := NotFound("rent.pay", "invoice %s not found", "rnt-1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", Conflict("rent.verify", "already verified"))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestKindOfUntyped(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("timeout")
	err := Unavailable("storage.store", cause)
	assert.Equal(t, "storage.store: dependency unavailable: timeout", err.Error())
	assert.ErrorIs(t, err, cause)
}
