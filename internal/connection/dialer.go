package connection

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// NewDialer returns a DialFunc backed by gorilla/websocket.
func NewDialer(handshakeTimeout time.Duration) DialFunc {
	if handshakeTimeout <= 0 {
		handshakeTimeout = 10 * time.Second
	}
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	return func(ctx context.Context, rawURL string) (Conn, error) {
		conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("%w (status %d)", err, resp.StatusCode)
			}
			return nil, err
		}
		return conn, nil
	}
}

// ToWebsocketURL normalises an endpoint so http(s) URLs become ws(s) URLs.
func ToWebsocketURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported websocket scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("websocket url %q has no host", raw)
	}
	return u.String(), nil
}
