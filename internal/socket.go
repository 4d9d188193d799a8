package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"ftmsg/internal/protocol"
	"ftmsg/internal/transport"
)

type socketState int

const (
	socketConnecting socketState = iota
	socketOpen
	socketClosed
)

func (s socketState) String() string {
	switch s {
	case socketConnecting:
		return "connecting"
	case socketOpen:
		return "open"
	default:
		return "closed"
	}
}

// socket is one physical connection attempt. ready is closed when the socket
// leaves the connecting state, whichever way it goes.
type socket struct {
	id string

	mu    sync.Mutex
	state socketState
	conn  transport.WSConn
	ready chan struct{}
}

func newSocket() *socket {
	return &socket{
		id:    xid.New().String(),
		ready: make(chan struct{}),
	}
}

// markOpen attaches conn. It reports false if the socket was closed while dialing.
func (s *socket) markOpen(conn transport.WSConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != socketConnecting {
		return false
	}
	s.state = socketOpen
	s.conn = conn
	close(s.ready)
	return true
}

func (s *socket) markClosed() transport.WSConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == socketConnecting {
		close(s.ready)
	}
	s.state = socketClosed
	conn := s.conn
	s.conn = nil
	return conn
}

func (s *socket) close(reason string) error {
	if conn := s.markClosed(); conn != nil {
		return conn.Close(transport.WSStatusNormalClosure, reason)
	}
	return nil
}

// waitReady returns at once when open or closed and blocks while connecting.
func (s *socket) waitReady(ctx context.Context) (transport.WSConn, error) {
	s.mu.Lock()
	state, conn, ready := s.state, s.conn, s.ready
	s.mu.Unlock()

	switch state {
	case socketOpen:
		return conn, nil
	case socketClosed:
		return nil, fmt.Errorf("%w: socket %s", ErrSocketNotReady, state)
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != socketOpen {
		return nil, fmt.Errorf("%w: socket closed while connecting", ErrSocketNotReady)
	}
	return s.conn, nil
}

func (c *Client) openSocket(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.status == StatusClosed {
		c.mu.Unlock()
		return
	}
	c.reconnect = nil
	s := newSocket()
	c.sock = s
	ctx := c.ctx
	c.mu.Unlock()

	go c.runSocket(ctx, epoch, s)
}

func (c *Client) runSocket(ctx context.Context, epoch uint64, s *socket) {
	log := c.log.With(zap.String("socket", s.id))

	start := time.Now()
	conn, err := c.dial(ctx, c.url)
	observeDial(time.Since(start), err)
	if err != nil {
		log.Warn("engine.socket.dial_failed", zap.String("url", c.url), zap.Error(err))
		s.markClosed()
		c.onSocketClose(epoch, s, err)
		return
	}
	if !s.markOpen(conn) {
		_ = conn.Close(transport.WSStatusGoingAway, "unmounted")
		return
	}

	c.mu.Lock()
	if c.sock == s && c.status != StatusClosed {
		c.status = StatusOpen
		c.reconnecting = false
	}
	c.mu.Unlock()
	log.Info("engine.socket.open", zap.String("url", c.url))

	err = c.readLoop(ctx, log, conn)
	if conn := s.markClosed(); conn != nil {
		_ = conn.Close(transport.WSStatusNormalClosure, "read loop ended")
	}
	c.onSocketClose(epoch, s, err)
}

// readLoop processes frames one at a time, in arrival order. Per-frame
// errors are reported and never end the loop.
func (c *Client) readLoop(ctx context.Context, log *zap.Logger, conn transport.WSConn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != transport.WSMessageText {
			c.reportError(fmt.Errorf("%w (%s)", transport.ErrBinaryFrame, humanize.Bytes(uint64(len(data)))))
			continue
		}
		log.Debug("engine.frame.received", zap.String("size", humanize.Bytes(uint64(len(data)))))
		if err := c.handleFrame(data); err != nil {
			c.reportError(err)
		}
	}
}

// onSocketClose tells a socket we closed from one that died. Only the latter
// schedules a reopen, after a fixed nonzero delay. The old table is drained
// before the timer is armed so frames on the next socket never meet stale entries.
func (c *Client) onSocketClose(epoch uint64, s *socket, cause error) {
	c.mu.Lock()
	if c.epoch != epoch || c.sock != s || c.status == StatusClosed {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	c.mu.Unlock()

	c.log.Warn("engine.socket.closed", zap.String("socket", s.id), zap.Error(cause))
	if c.onError != nil && cause != nil {
		c.onError(fmt.Errorf("socket closed: %w", cause))
	}

	// Peers cannot be tracked without the socket; they reappear through
	// Connect frames or the next heartbeat roster.
	for _, lc := range c.connectionsSnapshot() {
		c.dropConnection(lc)
	}

	c.mu.Lock()
	if c.epoch != epoch || c.sock != s || c.status == StatusClosed {
		c.mu.Unlock()
		return
	}
	delay := c.nextReconnectDelay()
	c.reconnect = time.AfterFunc(delay, func() { c.openSocket(epoch) })
	c.mu.Unlock()

	observeReconnect()
	c.log.Info("engine.socket.retry", zap.String("socket", s.id), zap.Duration("retry_in", delay))
}

func (c *Client) nextReconnectDelay() time.Duration {
	return applyJitter(c.reconnectDelay, c.reconnectJitter)
}

// sendProtocolMessage writes one frame once the socket is ready. A socket
// that is connecting suspends the caller; a closed one fails immediately.
func (c *Client) sendProtocolMessage(ctx context.Context, m protocol.Message) error {
	c.mu.Lock()
	s := c.sock
	c.mu.Unlock()
	if s == nil {
		return fmt.Errorf("%w: no socket", ErrSocketNotReady)
	}

	data, err := protocol.Encode(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.MessageType(), err)
	}
	conn, err := s.waitReady(ctx)
	if err != nil {
		return fmt.Errorf("send %s: %w", m.MessageType(), err)
	}
	if err := conn.Write(ctx, transport.WSMessageText, data); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("send %s: %w", m.MessageType(), ctxErr)
		}
		return fmt.Errorf("send %s: %w: %v", m.MessageType(), ErrSocketNotReady, err)
	}
	observeFrameSent(m.MessageType())
	c.log.Debug("engine.frame.sent",
		zap.String("socket", s.id),
		zap.String("type", string(m.MessageType())),
		zap.String("size", humanize.Bytes(uint64(len(data)))),
	)
	return nil
}
