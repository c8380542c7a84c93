package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

// NewFieldError is a shortcut for a ValidationError on a single field.
func NewFieldError(err error, field string) error {
	return NewValidationError(err, FieldError{Field: field, Error: err.Error()})
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

// fatal marks errors the process cannot recover from (eg. a corrupt key file).
type fatal struct {
	err error
}

func NewFatalError(err error) error {
	return &fatal{err: err}
}

func (f fatal) Error() string { return f.err.Error() }

func (f fatal) Unwrap() error { return f.err }

func IsFatal(err error) bool {
	var f *fatal
	return errors.As(err, &f)
}
