package transport

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
)

// coderConn adapts github.com/coder/websocket. The library serializes writes
// itself, so no extra locking is needed.
type coderConn struct {
	ws *websocket.Conn
}

func coderDialer(opts Options) Dialer {
	return func(ctx context.Context, rawurl string) (WSConn, error) {
		dctx, cancel := context.WithTimeout(ctx, opts.timeout())
		defer cancel()

		ws, _, err := websocket.Dial(dctx, rawurl, &websocket.DialOptions{
			HTTPClient: &http.Client{Transport: opts.httpTransport()},
			HTTPHeader: opts.Header,
		})
		if err != nil {
			return nil, err
		}
		ws.SetReadLimit(readLimit)
		return &coderConn{ws: ws}, nil
	}
}

func (c *coderConn) Read(ctx context.Context) (WSMessageType, []byte, error) {
	mt, data, err := c.ws.Read(ctx)
	if err != nil {
		return 0, nil, err
	}
	if mt == websocket.MessageText {
		return WSMessageText, data, nil
	}
	return WSMessageBinary, data, nil
}

func (c *coderConn) Write(ctx context.Context, typ WSMessageType, data []byte) error {
	if typ == WSMessageText {
		return c.ws.Write(ctx, websocket.MessageText, data)
	}
	return c.ws.Write(ctx, websocket.MessageBinary, data)
}

func (c *coderConn) Close(code WSStatusCode, reason string) error {
	return c.ws.Close(websocket.StatusCode(code), reason)
}
