package source

import (
	"errors"
	"fmt"
)

// ErrTokenExpired signals that the audit-log API rejected a previously valid
// token. It is a recoverable signal, not a fatal error: the caller refreshes
// the token and retries the same cursor.
var ErrTokenExpired = errors.New("auth token expired")

// TransientError wraps any fetch failure other than token expiry: transport
// errors, non-2xx statuses and malformed payloads. The caller retries after
// a delay.
type TransientError struct {
	// Status is the HTTP status code, or 0 for connection-level failures
	Status int
	Err    error
}

// Error implements the error interface
func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient fetch failure (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient fetch failure: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient returns true if the error is a *TransientError
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
