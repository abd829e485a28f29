// Package apperr defines the error taxonomy callers of the core surface
// see (spec.md §6, §7): a small set of codes, a code-carrying Error type
// and one sentinel per code. Agents never raise past Run; internal/appointment
// is the package that constructs these.
package apperr

import "errors"

// Code is one of the transport-appropriate error codes from spec.md §6.
type Code string

const (
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeConflict    Code = "CONFLICT"
	CodeNotFound    Code = "NOT_FOUND"
	CodeTimeout     Code = "UPSTREAM_TIMEOUT"
	CodeGuardrail   Code = "BLOCKED_BY_GUARDRAIL"
	CodeInternal    Code = "INTERNAL"
)

// Error is a typed, code-carrying error surfaced to callers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Code, so
// errors.Is(err, apperr.ErrNotFound) matches any NOT_FOUND error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// New builds an Error of the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap builds an Error of the given code around a lower-level cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Sentinels, one per code, for errors.Is(err, apperr.ErrNotFound)-style
// matching, since Code itself isn't an error.
var (
	ErrValidation = New(CodeValidation, "validation failed")
	ErrConflict   = New(CodeConflict, "conflicting resource")
	ErrNotFound   = New(CodeNotFound, "not found")
	ErrTimeout    = New(CodeTimeout, "upstream timeout")
	ErrGuardrail  = New(CodeGuardrail, "blocked by guardrail")
	ErrInternal   = New(CodeInternal, "internal error")
)

// CodeOf extracts the Code from err, defaulting to CodeInternal for
// errors that never went through apperr.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
