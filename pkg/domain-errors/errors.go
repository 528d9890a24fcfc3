// Package domainerrors defines coded errors shared across services and
// handlers. Services wrap infrastructure failures with a code; handlers
// translate codes into HTTP responses; the queue worker uses Retryable to
// decide between rescheduling and dead-lettering.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of a domain error.
type Code string

const (
	CodeBadRequest     Code = "bad_request"
	CodeNotFound       Code = "not_found"
	CodeUnauthorized   Code = "unauthorized"
	CodeConflict       Code = "conflict"
	CodeInternal       Code = "internal_error"
	CodeFetch          Code = "fetch_failed"
	CodeClassification Code = "classification_failed"
	CodePersistence    Code = "persistence_failed"
	CodeConfig         Code = "configuration_error"
)

// Error carries a code, an operator-facing message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error. A nil err yields
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that never passed through this package.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Retryable reports whether the worker should reschedule a job that failed
// with err. Configuration and caller errors are terminal: retrying cannot fix
// a missing API key or a nonexistent document.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeConfig, CodeBadRequest, CodeNotFound:
		return false
	default:
		return true
	}
}
