package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// gorillaConn serializes writes; gorilla allows one concurrent reader and one writer.
type gorillaConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func gorillaDialer(opts Options) Dialer {
	tr := opts.httpTransport()
	d := &websocket.Dialer{
		Proxy:            tr.Proxy,
		NetDialContext:   tr.DialContext,
		TLSClientConfig:  tr.TLSClientConfig,
		HandshakeTimeout: opts.timeout(),
	}
	return func(ctx context.Context, rawurl string) (WSConn, error) {
		wsConn, resp, err := d.DialContext(ctx, rawurl, opts.Header)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
			}
			return nil, fmt.Errorf("websocket dial failed: %w", err)
		}
		wsConn.SetReadLimit(readLimit)
		return &gorillaConn{conn: wsConn}, nil
	}
}

// Read ignores ctx cancellation once blocked; closing the conn unblocks it.
func (c *gorillaConn) Read(ctx context.Context) (WSMessageType, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		return 0, nil, err
	}
	if mt == websocket.TextMessage {
		return WSMessageText, data, nil
	}
	return WSMessageBinary, data, nil
}

func (c *gorillaConn) Write(ctx context.Context, typ WSMessageType, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	mt := websocket.BinaryMessage
	if typ == WSMessageText {
		mt = websocket.TextMessage
	}
	return c.conn.WriteMessage(mt, data)
}

func (c *gorillaConn) Close(code WSStatusCode, reason string) error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(int(code), reason),
		time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.conn.Close()
}
