package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// readLimit caps one inbound frame. Frames are JSON documents and the
// libraries' 32KiB default is too tight for app state.
const readLimit = 1 << 20

const (
	BackendNhooyr  = "nhooyr"
	BackendCoder   = "coder"
	BackendGorilla = "gorilla"
)

// Options tune the dialers. Zero values fall back to defaults.
type Options struct {
	DialTimeout time.Duration
	Header      http.Header
}

func (o Options) timeout() time.Duration {
	if o.DialTimeout <= 0 {
		return 10 * time.Second
	}
	return o.DialTimeout
}

func (o Options) httpTransport() *http.Transport {
	d := &net.Dialer{
		Timeout:   o.timeout(),
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: d.DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}
}

// DefaultDialer is the nhooyr backend, used when no backend is named.
func DefaultDialer(opts Options) Dialer { return nhooyrDialer(opts) }

// NewDialer returns the dialer for a backend name. An empty name selects DefaultDialer.
func NewDialer(backend string, opts Options) (Dialer, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendNhooyr:
		return DefaultDialer(opts), nil
	case BackendCoder:
		return coderDialer(opts), nil
	case BackendGorilla:
		return gorillaDialer(opts), nil
	default:
		return nil, fmt.Errorf("unsupported websocket backend: %s", backend)
	}
}
