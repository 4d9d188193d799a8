package internal

import "errors"

var (
	// ErrLockState is returned by Accept/Deny while the lock is not engaged.
	ErrLockState = errors.New("lock state does not permit access decisions")
	// ErrNotAccepted is returned when sending to a client that was never accepted.
	ErrNotAccepted = errors.New("client not accepted")
	// ErrUnauthorizedClient marks a frame naming a client we do not know.
	ErrUnauthorizedClient = errors.New("unauthorized client")
	// ErrMissingClient marks a frame that needs a client field but has none.
	ErrMissingClient = errors.New("frame has no client")
	// ErrUnhandledType marks a well-formed frame this side does not handle.
	ErrUnhandledType = errors.New("unhandled message type")
	// ErrSocketNotReady is returned when a frame cannot be written. Frames are never queued.
	ErrSocketNotReady = errors.New("socket not ready")
	// ErrMounted is returned by Mount when the client is already mounted.
	ErrMounted = errors.New("client already mounted")
)
