package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Lock is the broker admission setting. The zero value is unlocked.
//
// On the wire it is false (no lock), true (closed to new connections) or an
// integer n (admit while fewer than n connections are active).
type Lock struct {
	closed bool
	max    int
}

// Unlocked admits everyone.
var Unlocked = Lock{}

// Closed returns a lock that admits nobody new.
func Closed() Lock { return Lock{closed: true} }

// LockAt returns a lock capped at n active connections.
func LockAt(n int) Lock { return Lock{max: n} }

// Engaged reports whether the lock is truthy. Access decisions are only
// meaningful while it is, and new connections are auto-accepted while it is not.
func (l Lock) Engaged() bool { return l.closed || l.max != 0 }

// IsClosed reports whether the lock is the boolean true.
func (l Lock) IsClosed() bool { return l.closed }

// Max returns the connection cap, if the lock is an integer.
func (l Lock) Max() (int, bool) {
	if l.closed || l.max == 0 {
		return 0, false
	}
	return l.max, true
}

func (l Lock) String() string {
	switch {
	case l.closed:
		return "true"
	case l.max != 0:
		return strconv.Itoa(l.max)
	default:
		return "false"
	}
}

func (l Lock) MarshalJSON() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Lock) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true":
		*l = Closed()
		return nil
	case "false", "null":
		*l = Unlocked
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidLock, data)
	}
	v, err := n.Int64()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidLock, data)
	}
	*l = LockAt(int(v))
	return nil
}

// ParseLock converts a loosely typed value (config files, flags) into a Lock.
func ParseLock(v any) (Lock, error) {
	switch x := v.(type) {
	case nil:
		return Unlocked, nil
	case Lock:
		return x, nil
	case bool:
		if x {
			return Closed(), nil
		}
		return Unlocked, nil
	case int:
		return LockAt(x), nil
	case int64:
		return LockAt(int(x)), nil
	case uint64:
		return LockAt(int(x)), nil
	case float64:
		if x != math.Trunc(x) {
			return Lock{}, fmt.Errorf("%w: %v", ErrInvalidLock, x)
		}
		return LockAt(int(x)), nil
	case string:
		s := strings.TrimSpace(strings.ToLower(x))
		switch s {
		case "", "false", "off", "no":
			return Unlocked, nil
		case "true", "on", "yes":
			return Closed(), nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return Lock{}, fmt.Errorf("%w: %q", ErrInvalidLock, x)
		}
		return LockAt(n), nil
	default:
		return Lock{}, fmt.Errorf("%w: %T", ErrInvalidLock, v)
	}
}
