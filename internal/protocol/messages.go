package protocol

import "encoding/json"

// Version is stamped on every outbound frame.
const Version = 1

// Type is the wire discriminant carried in the "type" field.
type Type string

const (
	// Broker -> app: an app went up or down.
	TypeHeartbeatApp Type = "ahb"
	// Broker -> app: roster of clients currently connected to us.
	TypeHeartbeatClient Type = "chb"

	// Client -> app: connection request.
	TypeConnect Type = "con"
	// App -> client: access granted or denied.
	TypeAccess Type = "acc"

	// Client -> app.
	TypeApplicationClient Type = "cap"
	// App -> client.
	TypeApplicationApp Type = "app"
	// Broker -> app.
	TypeError Type = "err"
	// App -> broker: runtime settings handled by the router.
	TypeDisplaySettings Type = "dse"
	// Client -> app: client paused or resumed.
	TypeLifecycle Type = "lcy"
)

// Message is one variant of the wire union.
type Message interface {
	MessageType() Type
}

// Addressed is implemented by variants that name a logical client.
type Addressed interface {
	Message
	ClientID() string
}

type HeartbeatApp struct {
	Up bool `json:"up"`
}

type HeartbeatClient struct {
	Up      bool     `json:"up"`
	Clients []string `json:"clients"`
}

type Connect struct {
	Client string `json:"client"`
	App    string `json:"app,omitempty"`
}

type Access struct {
	Client   string `json:"client"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

type ApplicationClient struct {
	Client string          `json:"client"`
	Body   json.RawMessage `json:"body"`
	Req    string          `json:"req,omitempty"`
}

type ApplicationApp struct {
	Client string          `json:"client"`
	Body   json.RawMessage `json:"body"`
	Req    string          `json:"req,omitempty"`
}

type ErrorMessage struct {
	Error string `json:"error"`
}

// Settings is the payload of a DisplaySettings frame. EndTime is unix milliseconds.
type Settings struct {
	Lock    *Lock  `json:"lock,omitempty"`
	EndTime *int64 `json:"end_time,omitempty"`
}

type DisplaySettings struct {
	Settings Settings `json:"settings"`
}

type Lifecycle struct {
	Client string `json:"client"`
	Paused bool   `json:"paused"`
}

// Unknown holds a frame whose type is not part of this protocol version.
// The client id is kept so callers can still apply authorization rules.
type Unknown struct {
	Kind   Type   `json:"-"`
	Client string `json:"client,omitempty"`
}

func (*HeartbeatApp) MessageType() Type      { return TypeHeartbeatApp }
func (*HeartbeatClient) MessageType() Type   { return TypeHeartbeatClient }
func (*Connect) MessageType() Type           { return TypeConnect }
func (*Access) MessageType() Type            { return TypeAccess }
func (*ApplicationClient) MessageType() Type { return TypeApplicationClient }
func (*ApplicationApp) MessageType() Type    { return TypeApplicationApp }
func (*ErrorMessage) MessageType() Type      { return TypeError }
func (*DisplaySettings) MessageType() Type   { return TypeDisplaySettings }
func (*Lifecycle) MessageType() Type         { return TypeLifecycle }
func (m *Unknown) MessageType() Type         { return m.Kind }

func (m *Connect) ClientID() string           { return m.Client }
func (m *Access) ClientID() string            { return m.Client }
func (m *ApplicationClient) ClientID() string { return m.Client }
func (m *ApplicationApp) ClientID() string    { return m.Client }
func (m *Lifecycle) ClientID() string         { return m.Client }
func (m *Unknown) ClientID() string           { return m.Client }

// ClientOf returns the client id named by m, or "" when m carries none.
func ClientOf(m Message) string {
	if a, ok := m.(Addressed); ok {
		return a.ClientID()
	}
	return ""
}
