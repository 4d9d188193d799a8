package transport

import (
	"context"
	"net/http"

	"nhooyr.io/websocket"
)

// nhooyrConn adapts nhooyr.io/websocket, the default backend. Like coder, it
// serializes concurrent writes internally.
type nhooyrConn struct {
	c *websocket.Conn
}

func (c *nhooyrConn) Read(ctx context.Context) (WSMessageType, []byte, error) {
	mt, data, err := c.c.Read(ctx)
	if err != nil {
		return 0, nil, err
	}
	if mt == websocket.MessageText {
		return WSMessageText, data, nil
	}
	return WSMessageBinary, data, nil
}

func (c *nhooyrConn) Write(ctx context.Context, typ WSMessageType, data []byte) error {
	mt := websocket.MessageBinary
	if typ == WSMessageText {
		mt = websocket.MessageText
	}
	return c.c.Write(ctx, mt, data)
}

func (c *nhooyrConn) Close(code WSStatusCode, reason string) error {
	return c.c.Close(websocket.StatusCode(int(code)), reason)
}

func nhooyrDialer(opts Options) Dialer {
	return func(ctx context.Context, rawurl string) (WSConn, error) {
		dctx, cancel := context.WithTimeout(ctx, opts.timeout())
		defer cancel()

		c, _, err := websocket.Dial(dctx, rawurl, &websocket.DialOptions{
			HTTPClient: &http.Client{Transport: opts.httpTransport()},
			HTTPHeader: opts.Header,
		})
		if err != nil {
			return nil, err
		}
		c.SetReadLimit(readLimit)
		return &nhooyrConn{c: c}, nil
	}
}
