// Package apperr defines the engine's error taxonomy. Every user-visible
// failure carries a stable machine code so callers can branch without
// string-matching messages.
package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	// CodeValidation marks a malformed request. Never retried automatically.
	CodeValidation Code = "validation_error"
	// CodeDataUnavailable marks a missing or timed-out deal snapshot. Retryable.
	CodeDataUnavailable Code = "data_unavailable"
	// CodeConflict marks a double resolution or a lost resolution race.
	CodeConflict Code = "conflict"
	// CodeComputation marks an internal invariant violation.
	CodeComputation Code = "computation_error"
)

type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, msg string, err error) error {
	return &Error{Code: code, Msg: msg, Err: err}
}

// CodeOf extracts the taxonomy code from err, or "" if err is not ours.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
