package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Review-engine errors. Every state transition failure maps onto one of
// these so handlers and bulk results can report the exact failure kind.
var (
	// ErrInvalidState signals a suggestion is not in the status the
	// operation requires, e.g. approving an already-approved suggestion
	// or rolling back twice.
	ErrInvalidState = New("INVALID_STATE", http.StatusConflict, "suggestion is not in a reviewable state")

	// ErrNotActionable signals an informational suggestion with no
	// executable change plan.
	ErrNotActionable = New("NOT_ACTIONABLE", http.StatusUnprocessableEntity, "suggestion has no applicable changes")

	// ErrApplyFailed signals the target mutation could not be committed;
	// the whole transaction was rolled back.
	ErrApplyFailed = New("APPLY_FAILED", http.StatusConflict, "failed to apply suggestion changes")

	// ErrTargetNotFound signals the referenced business entity no longer
	// resolves in the target store.
	ErrTargetNotFound = New("TARGET_NOT_FOUND", http.StatusNotFound, "target record not found")

	// ErrSourceUnavailable signals the source body backing a suggestion
	// could not be read.
	ErrSourceUnavailable = New("SOURCE_UNAVAILABLE", http.StatusServiceUnavailable, "source content unavailable")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
