package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	errMismatch := errors.New("passwords do not match")

	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{name: "empty", err: &ValidationError{}},
		{name: "error only", err: &ValidationError{Err: errMismatch}, want: "passwords do not match"},
		{
			name: "fields only",
			err:  &ValidationError{Fields: []FieldError{{Field: "username", Error: "taken"}, {Field: "email", Error: "taken"}}},
			want: "username: taken; email: taken",
		},
		{
			name: "both",
			err:  &ValidationError{Err: errMismatch, Fields: []FieldError{{Field: "confirmPassword", Error: "differs"}}},
			want: "passwords do not match; confirmPassword: differs",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}

	err := errors.Wrap(NewValidationError(errMismatch), "registering")
	assert.ErrorIs(t, err, errMismatch)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Equal(t, vErr, errors.Cause(err))
}

func TestIsShutdown(t *testing.T) {
	err := NewShutdownError("upload directory is gone")
	assert.True(t, IsShutdown(err))
	assert.True(t, IsShutdown(errors.Wrap(err, "saving profile picture")))
	assert.False(t, IsShutdown(errors.New("upload directory is gone")))
	assert.False(t, IsShutdown(nil))
}
