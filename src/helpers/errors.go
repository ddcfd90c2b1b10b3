package helpers

import (
	"errors"
	"fmt"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type ObserverError struct {
	Message string
	Cause   error
}

func (e *ObserverError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ObserverError) Unwrap() error {
	return e.Cause
}

// Distinct error types for the failure taxonomy: transport failures are
// user-retryable, decode failures are per-frame, auth failures must be
// distinguishable so callers can report "could not establish connection"
// instead of retrying silently.
type AuthError struct{ ObserverError }
type TransportError struct{ ObserverError }
type DecodeError struct{ ObserverError }

// -----------------------------------------------------------------------------

func NewAuthError(message string, cause error) *AuthError {
	return &AuthError{ObserverError{Message: message, Cause: cause}}
}

func NewTransportError(message string, cause error) *TransportError {
	return &TransportError{ObserverError{Message: message, Cause: cause}}
}

func NewDecodeError(message string, cause error) *DecodeError {
	return &DecodeError{ObserverError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------

// IsAuthError reports whether err (or anything it wraps) is an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
