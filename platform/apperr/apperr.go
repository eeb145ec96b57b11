// Package apperr provides standardized domain error types for the application.
// Batch stages return these typed errors, and the orchestrator maps them to
// per-lead accounting and the final process exit code.
package apperr

import (
	"errors"
	"fmt"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindSourceUnavailable indicates the lead datastore could not be reached.
	KindSourceUnavailable
	// KindCheckFailed indicates a non-retryable remote error during a duplicate check.
	KindCheckFailed
	// KindRateLimited indicates an upstream throttled the call and retries were exhausted.
	KindRateLimited
	// KindWriteFailed indicates a computed result could not be persisted.
	KindWriteFailed
	// KindConfig indicates invalid or missing configuration.
	KindConfig
	// KindInternal indicates an unexpected internal error.
	KindInternal
)

// Process exit codes. Zero means full success and is not represented here.
const (
	// ExitPartial is returned when some leads were processed with errors.
	ExitPartial = 1
	// ExitFatal is returned when no processing completed at all.
	ExitFatal = 2
)

// Error is a domain error with a typed Kind for batch accounting.
type Error struct {
	Kind    Kind
	Message string
	Op      string // Operation that failed (optional)
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a future run may succeed for the same unit of work.
// Rate-limit exhaustion and datastore outages are transient; a malformed
// credential or request is not.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindSourceUnavailable, KindRateLimited, KindWriteFailed:
		return true
	default:
		return false
	}
}

// ExitCode returns the process exit code this error maps to when it is fatal
// to the whole run.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindSourceUnavailable, KindConfig:
		return ExitFatal
	default:
		return ExitPartial
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOp returns a copy of the error with the operation set.
func (e *Error) WithOp(op string) *Error {
	e.Op = op
	return e
}

// Convenience constructors for common error types.

// SourceUnavailable creates a lead datastore availability error.
func SourceUnavailable(message string) *Error {
	return New(KindSourceUnavailable, message)
}

// CheckFailed creates a non-retryable duplicate-check error.
func CheckFailed(message string) *Error {
	return New(KindCheckFailed, message)
}

// WriteFailed creates a result persistence error.
func WriteFailed(message string) *Error {
	return New(KindWriteFailed, message)
}

// Config creates a configuration error.
func Config(message string) *Error {
	return New(KindConfig, message)
}

// GetKind extracts the error kind from an error, unwrapping as needed.
// Returns KindUnknown if no *Error is in the chain.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is checks if err is an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
