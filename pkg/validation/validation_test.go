package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInvalid = errors.New("invalid_request")

type sample struct {
	RoomID    int64     `validate:"required"`
	Method    string    `validate:"required,max=32"`
	Cycle     string    `validate:"omitempty,oneof=MONTHLY QUARTERLY YEARLY"`
	StartDate time.Time `validate:"required"`
}

func TestStruct(t *testing.T) {
	ok := sample{RoomID: 1, Method: "cash", Cycle: "MONTHLY", StartDate: time.Now()}
	require.NoError(t, Struct(ok, errInvalid))

	err := Struct(sample{Cycle: "WEEKLY"}, errInvalid)
	require.Error(t, err)
	assert.ErrorIs(t, err, errInvalid)
	assert.Contains(t, err.Error(), "RoomID:required")
	assert.Contains(t, err.Error(), "Method:required")
	assert.Contains(t, err.Error(), "Cycle:oneof")
	assert.Contains(t, err.Error(), "StartDate:required")
}
