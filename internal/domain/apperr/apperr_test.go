package apperr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorageDistinguishesTimeout(t *testing.T) {
	err := Storage("find record", context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = Storage("find record", errors.New("connection refused"))
	assert.ErrorIs(t, err, ErrStorage)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestKindsAreMatchable(t *testing.T) {
	assert.ErrorIs(t, Validation("sku is required"), ErrValidation)
	assert.ErrorIs(t, NotFound("sku %s", "A-1"), ErrNotFound)
	assert.ErrorIs(t, Conflict("sku %s exists", "A-1"), ErrConflict)
	assert.ErrorIs(t, Delivery("send mail", errors.New("503")), ErrDelivery)

	assert.Contains(t, NotFound("sku %s", "A-1").Error(), "A-1")
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(Validation("x")))
	assert.True(t, IsClientError(NotFound("x")))
	assert.True(t, IsClientError(Conflict("x")))
	assert.False(t, IsClientError(Storage("op", errors.New("down"))))
	assert.False(t, IsClientError(nil))
}
