package config

import (
	"net/url"
	"strings"
)

const (
	// DefaultURL is the broker endpoint used when nothing else is configured.
	DefaultURL = "ws://localhost:8089/out"
	// EndpointParam is the page query parameter that overrides the endpoint.
	EndpointParam = "ftMsgUrl"
)

// ResolveEndpoint picks the broker endpoint: an explicit value wins, then the
// ftMsgUrl query parameter of pageURL, then DefaultURL.
func ResolveEndpoint(explicit, pageURL string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			if v := strings.TrimSpace(u.Query().Get(EndpointParam)); v != "" {
				return v
			}
		}
	}
	return DefaultURL
}

func isWebSocketURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
		return true
	default:
		return false
	}
}
