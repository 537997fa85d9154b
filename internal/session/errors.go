package session

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled marks a session abandoned by the user.
	ErrCancelled = errors.New("interview cancelled")
	// ErrNoCapture means an answer was submitted while no recording was held.
	ErrNoCapture = errors.New("no recording to submit")
	// ErrServerReported wraps an `error` message sent by the backend.
	ErrServerReported = errors.New("interview server reported an error")
)

// ProtocolError is an inbound frame the session could not act on.
type ProtocolError struct {
	Raw []byte
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
