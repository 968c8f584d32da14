package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected matches every *NotConnectedError.
	ErrNotConnected = errors.New("live session not connected")

	ErrNotJoined     = errors.New("not joined to a live session")
	ErrAlreadyJoined = errors.New("already joined to a live session")
	ErrInvalidMode   = errors.New("invalid participant mode")
	ErrEmptyMessage  = errors.New("message text is empty")
	ErrNoSession     = errors.New("no authenticated session")
)

// FetchError reports a failed cart fetch. The previous snapshot stays in place.
type FetchError struct {
	UserID string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch cart for user %s: %v", e.UserID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NotConnectedError is returned by side-channel sends outside STARTED.
type NotConnectedError struct {
	State SessionState
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("live session not connected (state %s)", e.State)
}

func (e *NotConnectedError) Is(target error) bool {
	return target == ErrNotConnected
}
