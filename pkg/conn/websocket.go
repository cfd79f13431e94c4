package conn

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"

	"concierge/pkg/protocol"
)

// WebSocketDialer is the production Dialer backed by gorilla/websocket.
type WebSocketDialer struct {
	// Dialer defaults to websocket.DefaultDialer when nil.
	Dialer *websocket.Dialer
	Header http.Header
}

// Dial opens a WebSocket connection to target.
func (d WebSocketDialer) Dial(ctx context.Context, target string) (Conn, error) {
	wd := d.Dialer
	if wd == nil {
		wd = websocket.DefaultDialer
	}
	c, resp, err := wd.DialContext(ctx, target, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &wsConn{c: c}, nil
}

// wsConn adapts *websocket.Conn to Conn. Frames are sent as text.
type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.c.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("websocket read: %w", err)
	}
	return data, nil
}

func (w *wsConn) WriteMessage(data []byte) error {
	if err := w.c.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (w *wsConn) Close() error {
	return w.c.Close()
}

// WebSocketURL derives the connection target from the service origin:
// http becomes ws, https becomes wss, and the path is the service socket path.
func WebSocketURL(origin string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", origin, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("origin %q: unsupported scheme %q", origin, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q: missing host", origin)
	}
	u.Path = protocol.WebSocketPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
