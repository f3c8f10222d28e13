// Package domainerrors carries coded errors from services to the transport layer.
//
// Services return these (optionally wrapping infrastructure errors) and the HTTP
// boundary maps the Code to a status and a stable JSON error value. Stores should
// not use this package; they return sentinel errors from pkg/platform/sentinel.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine readable error category.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeInvalidRequest     Code = "invalid_request"
	CodeNotFound           Code = "not_found"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeConflict           Code = "conflict"
	CodeInvalidState       Code = "invalid_state"
	CodeAgentError         Code = "agent_error"
	CodeAgentUnavailable   Code = "agent_unavailable"
	CodeTimeout            Code = "timeout"
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	// Details is optional structured context surfaced to API callers.
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// WithDetails returns a copy of a coded error carrying details. Errors that are
// not coded are wrapped as internal errors first.
func WithDetails(err error, details map[string]any) error {
	var de *Error
	if !errors.As(err, &de) {
		return &Error{Code: CodeInternal, Message: err.Error(), Err: err, Details: details}
	}
	clone := *de
	clone.Details = details
	return &clone
}

// As extracts the outermost coded error.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf returns the code of the outermost coded error, or CodeInternal.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost coded error in the chain has code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}
