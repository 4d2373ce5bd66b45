package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "validation error without wrapped error",
			err:      &Error{Type: ErrTypeValidation, Message: "min floor must be less than max floor"},
			expected: "validation: min floor must be less than max floor",
		},
		{
			name:     "invariant error with wrapped error",
			err:      &Error{Type: ErrTypeInvariant, Message: "vehicle assigned while occupied", Err: errors.New("vehicle 3")},
			expected: "invariant: vehicle assigned while occupied: vehicle 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestError_WithContext(t *testing.T) {
	err := NewInvariantError("impossible phase pair", nil).
		WithContext("vehicle_index", 4).
		WithContext("block", 12)

	assert.Equal(t, 4, err.Context["vehicle_index"])
	assert.Equal(t, 12, err.Context["block"])
}

func TestError_IsFatal(t *testing.T) {
	assert.True(t, NewValidationError("bad", nil).IsFatal())
	assert.True(t, NewInvariantError("bad", nil).IsFatal())
	assert.True(t, NewInternalError("bad", nil).IsFatal())
	assert.False(t, NewExhaustedDrawError("bad", nil).IsFatal())
}

func TestError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := NewInternalError("wrap", inner)
	assert.ErrorIs(t, err, inner)
}
