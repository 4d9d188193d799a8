package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrParse covers malformed JSON and a missing or non-string discriminant.
	ErrParse = errors.New("protocol: parse error")
	// ErrInvalidLock is returned for lock values that are neither bool nor integer.
	ErrInvalidLock = errors.New("protocol: invalid lock value")
)

// Decode validates the "type" discriminant before decoding the variant body.
// Types outside this protocol version decode to *Unknown.
func Decode(data []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	rawType, ok := fields["type"]
	if !ok {
		return nil, fmt.Errorf("%w: frame has no type", ErrParse)
	}
	var t string
	if err := json.Unmarshal(rawType, &t); err != nil {
		return nil, fmt.Errorf("%w: type is not a string", ErrParse)
	}

	var m Message
	switch Type(t) {
	case TypeHeartbeatApp:
		m = &HeartbeatApp{}
	case TypeHeartbeatClient:
		m = &HeartbeatClient{}
	case TypeConnect:
		m = &Connect{}
	case TypeAccess:
		m = &Access{}
	case TypeApplicationClient:
		m = &ApplicationClient{}
	case TypeApplicationApp:
		m = &ApplicationApp{}
	case TypeError:
		m = &ErrorMessage{}
	case TypeDisplaySettings:
		m = &DisplaySettings{}
	case TypeLifecycle:
		m = &Lifecycle{}
	default:
		m = &Unknown{Kind: Type(t)}
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, t, err)
	}
	return m, nil
}

// Encode serializes m with its type and the protocol version added.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"], _ = json.Marshal(m.MessageType())
	fields["version"], _ = json.Marshal(Version)
	return json.Marshal(fields)
}
