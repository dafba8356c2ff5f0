package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when no valid token is present at connect time.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrTransport covers connect failures and drops of the duplex channel.
	ErrTransport = errors.New("transport error")

	// ErrStaleMessage marks an echoed or duplicated code update.
	ErrStaleMessage = errors.New("stale message")

	// ErrThrottledUpdate marks a code update that arrived inside the minimum apply interval
	// or while another update was being applied.
	ErrThrottledUpdate = errors.New("throttled update")

	// ErrSessionEnded is the terminal cause after a session_ended broadcast.
	ErrSessionEnded = errors.New("session ended")

	// ErrClosed is returned by operations on a disconnected session.
	ErrClosed = errors.New("session closed")
)

// UnauthenticatedError keeps the room the caller meant to join so it can be
// retried after sign-in.
type UnauthenticatedError struct {
	PendingRoomID string
}

func (e *UnauthenticatedError) Error() string {
	return fmt.Sprintf("joining room %s: %s", e.PendingRoomID, ErrUnauthenticated)
}

func (e *UnauthenticatedError) Unwrap() error {
	return ErrUnauthenticated
}
