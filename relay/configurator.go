package relay

import (
	"encoding/json"

	"github.com/gorilla/websocket"
)

// configurator sends the one-time session.update for a single upstream
// connection instance and tracks the upstream's acknowledgment. A fresh
// configurator is created for every upstream instance; a reconnect starts a
// new configuration cycle.
type configurator struct {
	sent  bool
	acked bool
}

func newConfigurator() *configurator {
	return &configurator{}
}

// configure sends the initialization message if it has not been sent for this
// upstream instance. Repeat calls are no-ops, and a failed send leaves the
// configurator eligible to try again.
func (c *configurator) configure(w messageWriter) error {
	if c.sent {
		return nil
	}
	payload, err := json.Marshal(newSessionUpdate())
	if err != nil {
		return err
	}
	if err := w.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	c.sent = true
	return nil
}

// acknowledge records the upstream's session.updated event. Returns true on
// the first acknowledgment only. Configuration completes here, not on send.
func (c *configurator) acknowledge() bool {
	if c.acked {
		return false
	}
	c.acked = true
	return true
}

// configured reports whether the upstream acknowledged the configuration.
func (c *configurator) configured() bool {
	return c.acked
}
