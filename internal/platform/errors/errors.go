// Package errors provides the coded error taxonomy used across the
// negotiations service. Every error that crosses a package boundary carries
// a Code so handlers and callers can map it deterministically.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies an error for callers and transport mapping.
type Code string

const (
	// ErrCodeValidation marks bad input rejected before any mutation.
	ErrCodeValidation Code = "VALIDATION"
	// ErrCodeUnauthorized marks a missing capability or self-action.
	ErrCodeUnauthorized Code = "UNAUTHORIZED"
	// ErrCodeNotFound marks an unknown entity.
	ErrCodeNotFound Code = "NOT_FOUND"
	// ErrCodeInvalidState marks an operation not valid for the current
	// status or approval level.
	ErrCodeInvalidState Code = "INVALID_STATE"
	// ErrCodeInternal marks persistence or other unexpected failures.
	ErrCodeInternal Code = "INTERNAL"
)

// Error is a coded error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// InvalidInput reports a validation failure on a named field.
func InvalidInput(field, message string) error {
	return &Error{Code: ErrCodeValidation, Message: fmt.Sprintf("%s: %s", field, message)}
}

// NotFound reports an unknown entity by kind and id.
func NotFound(resource, id string) error {
	return &Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("%s %q not found", resource, id)}
}

// Forbidden reports a missing capability or a disallowed self-action.
func Forbidden(message string) error {
	return &Error{Code: ErrCodeUnauthorized, Message: message}
}

// InvalidState reports an operation attempted in the wrong lifecycle state.
func InvalidState(message string) error {
	return &Error{Code: ErrCodeInvalidState, Message: message}
}

// CodeOf returns the code of err, or ErrCodeInternal for uncoded errors.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Code == code
}
