package internal

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"ftmsg/internal/protocol"
	"ftmsg/internal/transport"
)

// Status is the client lifecycle state. It only moves forward, except that
// Mount after Unmount starts over from idle.
type Status int32

const (
	StatusIdle Status = iota
	StatusLoading
	StatusOpen
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const defaultReconnectDelay = time.Second

// ErrorHandler receives transport and protocol errors that are not returned
// to any caller, such as a rejected inbound frame.
type ErrorHandler func(err error)

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func WithDialer(d transport.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dial = d
		}
	}
}

// WithReconnectDelay sets the fixed delay before reopening a dropped socket.
// Non-positive values are ignored.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

// WithReconnectJitter spreads reconnects by up to +-j around the delay.
func WithReconnectJitter(j time.Duration) Option {
	return func(c *Client) { c.reconnectJitter = j }
}

func WithErrorHandler(fn ErrorHandler) Option {
	return func(c *Client) { c.onError = fn }
}

// Client is the protocol engine. It owns the single broker socket and the
// table of logical connections multiplexed over it.
type Client struct {
	url             string
	dial            transport.Dialer
	log             *zap.Logger
	reconnectDelay  time.Duration
	reconnectJitter time.Duration
	onError         ErrorHandler

	mu           sync.Mutex
	status       Status
	lock         protocol.Lock
	sock         *socket
	conns        map[string]*logicalConnection
	reconnect    *time.Timer
	reconnecting bool
	epoch        uint64
	ctx          context.Context
	cancel       context.CancelFunc

	hasInitialState atomic.Bool

	messageListeners    registry[any]
	connectionListeners registry[*Connection]
}

// New creates an unmounted client for the broker at url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:            url,
		log:            zap.NewNop(),
		reconnectDelay: defaultReconnectDelay,
		conns:          make(map[string]*logicalConnection),
	}
	for _, o := range opts {
		o(c)
	}
	if c.dial == nil {
		c.dial = transport.DefaultDialer(transport.Options{})
	}
	return c
}

func (c *Client) URL() string { return c.url }

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Reconnecting reports whether the socket dropped and a reopen is scheduled or in flight.
func (c *Client) Reconnecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnecting
}

func (c *Client) Lock() protocol.Lock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lock
}

// SetLock pushes a new lock to the broker. The local value changes only after
// the frame was written.
func (c *Client) SetLock(ctx context.Context, lock protocol.Lock) error {
	err := c.sendProtocolMessage(ctx, &protocol.DisplaySettings{
		Settings: protocol.Settings{Lock: &lock},
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.lock = lock
	c.mu.Unlock()
	c.log.Info("engine.lock.set", zap.Stringer("lock", lock))
	return nil
}

// SetEndTime tells the broker when the current app session is expected to end.
func (c *Client) SetEndTime(ctx context.Context, t time.Time) error {
	ms := t.UnixMilli()
	return c.sendProtocolMessage(ctx, &protocol.DisplaySettings{
		Settings: protocol.Settings{EndTime: &ms},
	})
}

// Mount opens the socket in the background. It fails with ErrMounted unless
// the client is idle or was unmounted.
func (c *Client) Mount() error {
	c.mu.Lock()
	if c.status == StatusLoading || c.status == StatusOpen {
		c.mu.Unlock()
		return ErrMounted
	}
	c.status = StatusLoading
	c.epoch++
	c.ctx, c.cancel = context.WithCancel(context.Background())
	epoch := c.epoch
	c.mu.Unlock()

	c.log.Info("engine.mount", zap.String("url", c.url))
	c.openSocket(epoch)
	return nil
}

// Unmount closes the socket, drops every logical connection and clears the
// engine's listeners. Calling it again is a no-op.
func (c *Client) Unmount() error {
	c.mu.Lock()
	if c.status == StatusClosed {
		c.mu.Unlock()
		return nil
	}
	c.status = StatusClosed
	c.epoch++
	// Deregister the reconnect hook before the socket goes away.
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	c.reconnecting = false
	s := c.sock
	c.sock = nil
	cancel := c.cancel
	c.mu.Unlock()

	var err error
	if s != nil {
		err = s.close("unmount")
	}
	if cancel != nil {
		cancel()
	}
	for _, lc := range c.connectionsSnapshot() {
		c.dropConnection(lc)
	}
	c.messageListeners.clear()
	c.connectionListeners.clear()
	c.log.Info("engine.unmount")
	return err
}

// SendMessage broadcasts body to every accepted, unpaused client. Clients
// that are paused or not accepted are skipped. Transport failures for
// individual clients are combined into the returned error.
func (c *Client) SendMessage(ctx context.Context, body any, requestID string) error {
	raw, err := marshalBody(body)
	if err != nil {
		return err
	}
	var errs error
	for _, lc := range c.connectionsSnapshot() {
		accepted, paused := lc.state()
		if !accepted || paused {
			continue
		}
		if err := lc.sendMessage(ctx, raw, requestID); err != nil && !errors.Is(err, ErrNotAccepted) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (c *Client) AddMessageListener(fn MessageCallback) ListenerID {
	return c.messageListeners.add(fn)
}

func (c *Client) RemoveMessageListener(id ListenerID) {
	c.messageListeners.remove(id)
}

// AddConnectionListener registers fn to be called once per new client.
func (c *Client) AddConnectionListener(fn ConnectionCallback) ListenerID {
	return c.connectionListeners.add(fn)
}

func (c *Client) RemoveConnectionListener(id ListenerID) {
	c.connectionListeners.remove(id)
}

// Connections returns the ids of the live clients, sorted.
func (c *Client) Connections() []string { return c.connectionIDs() }

// Connection returns the view of a live client, or nil.
func (c *Client) Connection(id string) *Connection {
	if lc := c.lookup(id); lc != nil {
		return &Connection{impl: lc}
	}
	return nil
}

func (c *Client) lookup(id string) *logicalConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conns[id]
}

func (c *Client) connectionIDs() []string {
	c.mu.Lock()
	ids := make([]string, 0, len(c.conns))
	for id := range c.conns {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (c *Client) connectionsSnapshot() []*logicalConnection {
	c.mu.Lock()
	out := make([]*logicalConnection, 0, len(c.conns))
	for _, lc := range c.conns {
		out = append(out, lc)
	}
	c.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (c *Client) reportError(err error) {
	observeFrameError(err)
	c.log.Warn("engine.frame.rejected", zap.Error(err))
	if c.onError != nil {
		c.onError(err)
	}
}
