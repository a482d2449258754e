package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPolicy marks retry configuration that must be rejected
	// before any unit runs.
	ErrInvalidPolicy = errors.New("invalid retry policy")

	// ErrInvalidRequest marks a request missing required fields.
	ErrInvalidRequest = errors.New("invalid request")
)

// SessionError wraps a failure to open the transport session. It aborts the
// whole run; no unit can proceed without a session.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string { return fmt.Sprintf("open session: %v", e.Err) }
func (e *SessionError) Unwrap() error { return e.Err }
