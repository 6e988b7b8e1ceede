package relay

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bigshanyao1/qwen-omni-proxy/config"
)

// upstreamDialer opens outbound connections to the realtime API. Abstracted so
// the session state machine can be exercised without network I/O.
type upstreamDialer interface {
	Connect(model string) (*UpstreamConn, error)
}

// Connector owns the outbound side of the relay: endpoint templating,
// credential injection, and the handshake timeout. It reports failures upward
// and never retries on its own; reconnect policy belongs to the session's
// liveness monitor.
type Connector struct {
	endpoint         string
	apiKey           string
	handshakeTimeout time.Duration
}

// NewConnector creates a connector from the upstream configuration. The API
// credential comes from process configuration and is never read from clients.
func NewConnector(cfg *config.UpstreamConfig) *Connector {
	return &Connector{
		endpoint:         cfg.Endpoint,
		apiKey:           cfg.APIKey,
		handshakeTimeout: time.Duration(cfg.HandshakeTimeout) * time.Second,
	}
}

// Connect dials the realtime API for the given model and returns the live
// connection once the handshake completes.
func (c *Connector) Connect(model string) (*UpstreamConn, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream endpoint: %w", err)
	}
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := &websocket.Dialer{
		HandshakeTimeout:  c.handshakeTimeout,
		EnableCompression: true,
	}

	conn, resp, err := dialer.Dial(u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("upstream handshake failed: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("upstream dial failed: %w", err)
	}

	return newUpstreamConn(conn), nil
}

// UpstreamConn is one live outbound connection instance. A session owns at
// most one at a time; a replacement is only issued after the prior instance is
// closed.
type UpstreamConn struct {
	conn   wireConn
	mu     sync.Mutex
	closed atomic.Bool
}

func newUpstreamConn(conn wireConn) *UpstreamConn {
	return &UpstreamConn{conn: conn}
}

// WriteMessage writes a raw frame to the upstream.
func (u *UpstreamConn) WriteMessage(messageType int, data []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.conn.WriteMessage(messageType, data)
}

// Close closes the connection. Safe to call more than once.
func (u *UpstreamConn) Close() error {
	if u.closed.Swap(true) {
		return nil
	}
	return u.conn.Close()
}

// CloseWithReason sends a close frame with an explicit reason and closes.
func (u *UpstreamConn) CloseWithReason(code int, text string, writeTimeout time.Duration) error {
	if u.closed.Swap(true) {
		return nil
	}
	u.mu.Lock()
	_ = u.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeTimeout),
	)
	u.mu.Unlock()
	return u.conn.Close()
}
