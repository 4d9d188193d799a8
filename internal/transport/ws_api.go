package transport

import (
	"context"
	"errors"
)

// WSMessageType matches RFC 6455 opcodes we care about.
type WSMessageType uint8

const (
	WSMessageText   WSMessageType = 1
	WSMessageBinary WSMessageType = 2
)

type WSStatusCode uint16

const (
	WSStatusNormalClosure WSStatusCode = 1000
	WSStatusGoingAway     WSStatusCode = 1001
)

// ErrBinaryFrame is reported for binary messages; the protocol is text-only.
var ErrBinaryFrame = errors.New("transport: binary frames are not supported")

// WSConn is the minimal subset the engine needs from a WebSocket connection.
// Write may be called concurrently with Read; implementations serialize writes.
type WSConn interface {
	Read(ctx context.Context) (WSMessageType, []byte, error)
	Write(ctx context.Context, typ WSMessageType, data []byte) error
	Close(code WSStatusCode, reason string) error
}

// Dialer opens one client-side socket to rawurl.
type Dialer func(ctx context.Context, rawurl string) (WSConn, error)
