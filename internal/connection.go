package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ftmsg/internal/protocol"
)

// Sent once to the first accepted client so it starts from a known state.
var initialStateBody = json.RawMessage(`{"__start":""}`)

type (
	// MessageCallback receives json.RawMessage for bare bodies and *Request
	// for correlated ones.
	MessageCallback    func(msg any)
	ConnectionCallback func(conn *Connection)
	CloseCallback      func()
	LifecycleCallback  func(paused bool)
)

// logicalConnection is the engine-owned state of one multiplexed client.
// Only the Client creates and destroys it.
type logicalConnection struct {
	id     string
	client *Client

	mu       sync.Mutex
	accepted bool
	paused   bool

	closeOnce sync.Once

	messageListeners   registry[any]
	closeListeners     registry[struct{}]
	lifecycleListeners registry[bool]
}

func newLogicalConnection(id string, c *Client, accepted bool) *logicalConnection {
	return &logicalConnection{id: id, client: c, accepted: accepted}
}

func (lc *logicalConnection) state() (accepted, paused bool) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.accepted, lc.paused
}

// setPaused notifies lifecycle listeners only when the value changes, so a
// broker repeating the same lifecycle frame does not re-fire them.
func (lc *logicalConnection) setPaused(paused bool) {
	lc.mu.Lock()
	changed := lc.paused != paused
	lc.paused = paused
	lc.mu.Unlock()
	if changed {
		lc.lifecycleListeners.notify(paused)
	}
}

func (lc *logicalConnection) accept(ctx context.Context) error {
	if err := lc.updateAccess(ctx, true, ""); err != nil {
		return err
	}
	if !lc.client.hasInitialState.Load() {
		if err := lc.sendMessage(ctx, initialStateBody, ""); err != nil {
			return fmt.Errorf("send initial state to %s: %w", lc.id, err)
		}
	}
	return nil
}

func (lc *logicalConnection) deny(ctx context.Context, reason string) error {
	return lc.updateAccess(ctx, false, reason)
}

func (lc *logicalConnection) updateAccess(ctx context.Context, accepted bool, reason string) error {
	if lock := lc.client.Lock(); !lock.Engaged() {
		return fmt.Errorf("%w: lock is %s", ErrLockState, lock)
	}
	err := lc.client.sendProtocolMessage(ctx, &protocol.Access{
		Client:   lc.id,
		Accepted: accepted,
		Reason:   reason,
	})
	if err != nil {
		return err
	}
	lc.mu.Lock()
	lc.accepted = accepted
	lc.mu.Unlock()
	lc.client.log.Debug("connection.access", zap.String("client", lc.id), zap.Bool("accepted", accepted), zap.String("reason", reason))
	return nil
}

func (lc *logicalConnection) sendMessage(ctx context.Context, body any, requestID string) error {
	accepted, paused := lc.state()
	if !accepted {
		return fmt.Errorf("%w: %s", ErrNotAccepted, lc.id)
	}
	if paused {
		return nil
	}
	raw, err := marshalBody(body)
	if err != nil {
		return err
	}
	err = lc.client.sendProtocolMessage(ctx, &protocol.ApplicationApp{
		Client: lc.id,
		Body:   raw,
		Req:    requestID,
	})
	if err != nil {
		return err
	}
	lc.client.hasInitialState.Store(true)
	return nil
}

// close fires close listeners exactly once and drops every listener.
func (lc *logicalConnection) close() {
	lc.closeOnce.Do(func() {
		lc.closeListeners.notify(struct{}{})
		lc.closeListeners.clear()
		lc.messageListeners.clear()
		lc.lifecycleListeners.clear()
	})
}

func marshalBody(body any) (json.RawMessage, error) {
	if raw, ok := body.(json.RawMessage); ok {
		return raw, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	return b, nil
}

// Connection is the application's view of one client. It holds no state of its
// own; every call delegates to the engine-owned connection.
type Connection struct {
	impl *logicalConnection
}

func (c *Connection) ID() string { return c.impl.id }

func (c *Connection) Paused() bool {
	_, paused := c.impl.state()
	return paused
}

func (c *Connection) Accepted() bool {
	accepted, _ := c.impl.state()
	return accepted
}

// Accept grants the client access. It fails with ErrLockState unless the
// lock is engaged, and leaves local state untouched on any failure.
func (c *Connection) Accept(ctx context.Context) error { return c.impl.accept(ctx) }

// Deny refuses the client access with an optional reason.
func (c *Connection) Deny(ctx context.Context, reason string) error {
	return c.impl.deny(ctx, reason)
}

// SendMessage sends body to this client. It fails with ErrNotAccepted before
// the client is accepted and is a silent no-op while the client is paused.
func (c *Connection) SendMessage(ctx context.Context, body any, requestID string) error {
	return c.impl.sendMessage(ctx, body, requestID)
}

func (c *Connection) AddMessageListener(fn MessageCallback) ListenerID {
	return c.impl.messageListeners.add(fn)
}

func (c *Connection) RemoveMessageListener(id ListenerID) {
	c.impl.messageListeners.remove(id)
}

func (c *Connection) AddCloseListener(fn CloseCallback) ListenerID {
	return c.impl.closeListeners.add(func(struct{}) { fn() })
}

func (c *Connection) RemoveCloseListener(id ListenerID) {
	c.impl.closeListeners.remove(id)
}

func (c *Connection) AddLifecycleListener(fn LifecycleCallback) ListenerID {
	return c.impl.lifecycleListeners.add(fn)
}

func (c *Connection) RemoveLifecycleListener(id ListenerID) {
	c.impl.lifecycleListeners.remove(id)
}
