// Package apperrors provides typed domain errors with stable codes so callers
// can branch on failure class without string matching. Infrastructure layers
// return sentinel errors (pkg/sentinel); services translate them into these.
package apperrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeInternal     Code = "internal"

	// Connection errors: the transport cannot reach the chain. The listener
	// reacts to these with its reconnect machinery.
	CodeConnection Code = "connection"

	// Decode errors: malformed remark payload. Recoverable; the event is
	// skipped, never surfaced as a failure.
	CodeDecode Code = "decode"

	// Precondition failures returned by the report pipeline before any state
	// is mutated.
	CodeWalletLocked Code = "wallet_locked"
	CodeNoAccount    Code = "no_account"
	CodeNotConnected Code = "not_connected"
	CodeConnecting   Code = "still_connecting"

	// Submission errors: the extrinsic was rejected, dropped, or invalid.
	// Recorded on the emergency record, never raised to the caller.
	CodeSubmission Code = "submission"

	// Persistence errors are fatal for the primary emergency write since the
	// local record is the durability guarantee.
	CodePersistence Code = "persistence"
)

// Error carries a code, a human-readable message, and an optional cause.
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

// New creates a domain error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message. Returns nil if err is nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error in the chain, or
// CodeInternal if err carries no code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
