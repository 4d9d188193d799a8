// Package ftmsg is the public surface of the broker messaging client.
// The implementation lives in internal/ and may change without notice.
package ftmsg

import (
	"context"

	"go.uber.org/zap"

	"ftmsg/internal"
	"ftmsg/internal/config"
	"ftmsg/internal/protocol"
)

// --- Engine ---

type (
	Client       = internal.Client
	Option       = internal.Option
	Status       = internal.Status
	ErrorHandler = internal.ErrorHandler
)

const (
	StatusIdle    = internal.StatusIdle
	StatusLoading = internal.StatusLoading
	StatusOpen    = internal.StatusOpen
	StatusClosed  = internal.StatusClosed
)

// New creates an unmounted client for the broker at url.
func New(url string, opts ...Option) *Client { return internal.New(url, opts...) }

// NewMessaging creates a client whose endpoint comes from the ftMsgUrl query
// parameter of pageURL, falling back to DefaultURL.
func NewMessaging(pageURL string, opts ...Option) *Client {
	return internal.New(config.ResolveEndpoint("", pageURL), opts...)
}

// DefaultURL is the endpoint used when none is configured.
const DefaultURL = config.DefaultURL

var (
	WithLogger          = internal.WithLogger
	WithDialer          = internal.WithDialer
	WithReconnectDelay  = internal.WithReconnectDelay
	WithReconnectJitter = internal.WithReconnectJitter
	WithErrorHandler    = internal.WithErrorHandler
)

// --- Connections and listeners ---

type (
	Connection         = internal.Connection
	Request            = internal.Request
	ListenerID         = internal.ListenerID
	MessageCallback    = internal.MessageCallback
	ConnectionCallback = internal.ConnectionCallback
	CloseCallback      = internal.CloseCallback
	LifecycleCallback  = internal.LifecycleCallback
)

// NewRequestID returns a fresh id for a correlated send.
func NewRequestID() string { return internal.NewRequestID() }

// --- Lock ---

type Lock = protocol.Lock

var Unlocked = protocol.Unlocked

func Closed() Lock { return protocol.Closed() }

func LockAt(n int) Lock { return protocol.LockAt(n) }

func ParseLock(v any) (Lock, error) { return protocol.ParseLock(v) }

// --- Errors ---

var (
	ErrLockState          = internal.ErrLockState
	ErrNotAccepted        = internal.ErrNotAccepted
	ErrUnauthorizedClient = internal.ErrUnauthorizedClient
	ErrMissingClient      = internal.ErrMissingClient
	ErrUnhandledType      = internal.ErrUnhandledType
	ErrSocketNotReady     = internal.ErrSocketNotReady
	ErrMounted            = internal.ErrMounted
	ErrParse              = protocol.ErrParse
)

// --- Logging ---

// NewLogger builds a zap logger at level in "json" or "console" format.
func NewLogger(level, format string) (*zap.Logger, error) {
	return internal.NewLogger(level, format)
}

// --- Metrics ---

// EnablePrometheusMetrics turns on metric collection.
func EnablePrometheusMetrics() {
	internal.EnablePrometheusMetrics()
}

// StartMetricsServer serves /metrics on the provided address until context cancellation.
func StartMetricsServer(ctx context.Context, addr string) error {
	return internal.StartMetricsServer(ctx, addr)
}
