package api

import (
	"errors"
	"fmt"
)

// Platform error codes carried on API responses. Older SDK generations
// reported missing-key, pending-call, and invalid-method failures under one
// shared code; they are split here so callers can classify without string
// matching.
const (
	CodeInvalidParameters      = 400001
	CodeMissingAPIKey          = 400002
	CodePendingCall            = 400003
	CodeInvalidMethod          = 400004
	CodeInvalidSessionToken    = 403001
	CodeUnauthorizedUser       = 403005
	CodeProviderSessionExpired = 403009
	CodeOperationCancelled     = 200001
	CodeGeneralServerError     = 500001
)

// Error is a typed platform failure.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("platform error %d: %s", e.Code, e.Message)
}

// NewError creates a typed platform failure.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ErrBackendUnavailable marks a transient transport failure. Idempotent-safe
// calls may be retried.
var ErrBackendUnavailable = errors.New("platform backend unavailable")

// ErrNoSession is returned by signed calls when no session is active.
var ErrNoSession = errors.New("no active session")

// Code extracts the platform error code from err, or 0.
func Code(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return 0
}

// IsProviderSessionExpired reports whether the remote platform said the
// provider-side session has expired.
func IsProviderSessionExpired(err error) bool {
	return Code(err) == CodeProviderSessionExpired
}

// IsSessionInvalidation reports whether the platform declared the current
// session expired or revoked.
func IsSessionInvalidation(err error) bool {
	switch Code(err) {
	case CodeInvalidSessionToken, CodeUnauthorizedUser:
		return true
	}
	return false
}
