package internal

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Request is an application body that arrived with a request id. Replies
// sent through Respond carry the same id back to the originating client.
type Request struct {
	ID   string
	Body json.RawMessage

	conn *logicalConnection
}

// Client returns the id of the client that sent the request.
func (r *Request) Client() string { return r.conn.id }

// Decode unmarshals the request body into v.
func (r *Request) Decode(v any) error { return json.Unmarshal(r.Body, v) }

// Respond sends body to the originating client, correlated by the request id.
func (r *Request) Respond(ctx context.Context, body any) error {
	return r.conn.sendMessage(ctx, body, r.ID)
}

// NewRequestID returns a fresh identifier for an outbound correlated send.
func NewRequestID() string { return uuid.NewString() }

// inboundPayload is what message listeners receive: a *Request when the frame
// carried a req id, otherwise the bare json.RawMessage body.
func inboundPayload(conn *logicalConnection, body json.RawMessage, req string) any {
	if req == "" {
		return body
	}
	return &Request{ID: req, Body: body, conn: conn}
}
