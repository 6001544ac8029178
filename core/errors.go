package core

import (
	"strings"

	"github.com/pkg/errors"
)

// FieldError is a client mistake tied to one input field, such as "username".
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned for requests that are well formed but rejected
// by a business rule. The API answers it with 400: the field messages when
// there are any, the Err text otherwise.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (err *ValidationError) Error() string {
	msgs := make([]string, 0, len(err.Fields)+1)
	if err.Err != nil {
		msgs = append(msgs, err.Err.Error())
	}
	for _, fld := range err.Fields {
		msgs = append(msgs, fld.Field+": "+fld.Error)
	}
	return strings.Join(msgs, "; ")
}

func (err *ValidationError) Unwrap() error {
	return err.Err
}

// shutdown is a failure the process cannot serve past, like losing its upload directory.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s *shutdown) Error() string {
	return s.message
}

// IsShutdown reports whether the api should stop after answering the request that got err.
func IsShutdown(err error) bool {
	var s *shutdown
	return errors.As(err, &s)
}
