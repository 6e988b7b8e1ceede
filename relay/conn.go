package relay

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const (
	clientWriteRetryDelay = 200 * time.Millisecond
	clientWriteMaxRetries = 3
)

// wireConn is the subset of *websocket.Conn the relay depends on.
type wireConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// ClientConn wraps the inbound websocket connection with serialized, retried
// writes. The relay event loop and the reaper both write to the client, so
// writes are mutex-guarded.
type ClientConn struct {
	conn         wireConn
	writeTimeout time.Duration
	mu           sync.Mutex
}

// NewClientConn wraps a client websocket connection.
func NewClientConn(conn wireConn, writeTimeout time.Duration) *ClientConn {
	return &ClientConn{conn: conn, writeTimeout: writeTimeout}
}

// WriteMessage writes a raw frame to the client with bounded retry.
func (c *ClientConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	operation := func() error {
		return c.conn.WriteMessage(messageType, data)
	}

	backoffStrategy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(clientWriteRetryDelay),
		clientWriteMaxRetries,
	)

	return backoff.RetryNotify(operation, backoff.WithContext(backoffStrategy, context.Background()),
		func(err error, d time.Duration) {
			log.Printf("Retrying client write: %v (next attempt in %s)", err, d)
		})
}

// WriteJSON marshals and writes a proxy-originated payload to the client.
func (c *ClientConn) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a control ping frame, used by the collection-wide reaper.
func (c *ClientConn) Ping(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(timeout))
}

// CloseWithReason sends a close frame with an explicit reason code and then
// closes the connection.
func (c *ClientConn) CloseWithReason(code int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(c.writeTimeout),
	)
	if err != nil {
		log.Printf("Error sending close message: %v", err)
	}
	return c.conn.Close()
}
