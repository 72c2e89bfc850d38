package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Frame is one inbound named event.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Conn is an established push channel connection.
type Conn interface {
	// ReadFrame blocks for the next inbound event.
	ReadFrame() (Frame, error)
	// Invoke sends an outbound call.
	Invoke(target string, payload any) error
	Close() error
}

// Transport dials push channel connections. The manager treats it as opaque
// so tests can substitute a scripted one.
type Transport interface {
	Dial(ctx context.Context, url, accessToken string) (Conn, error)
}

// WebsocketTransport is the production transport.
type WebsocketTransport struct{}

// NewWebsocketTransport returns the gorilla/websocket-backed transport.
func NewWebsocketTransport() *WebsocketTransport {
	return &WebsocketTransport{}
}

// Dial opens the websocket with the access token as a bearer header.
func (t *WebsocketTransport) Dial(ctx context.Context, url, accessToken string) (Conn, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial push channel: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial push channel: %w", err)
	}
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

type invokeFrame struct {
	Target  string `json:"target"`
	Payload any    `json:"payload,omitempty"`
}

func (c *wsConn) ReadFrame() (Frame, error) {
	var f Frame
	if err := c.ws.ReadJSON(&f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func (c *wsConn) Invoke(target string, payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(invokeFrame{Target: target, Payload: payload})
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
