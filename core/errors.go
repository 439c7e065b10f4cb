package core

import "github.com/pkg/errors"

// FieldError reports a validation failure on a single input field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is a business-rule rejection of otherwise well-formed
// input. Err carries the object-level error when the failure is not tied
// to a particular field.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

// NewShutdownError returns an error that requests a graceful server
// shutdown when it reaches the HTTP error handler.
func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
