package session

import (
	"context"
	"time"
)

// Session holds metadata about a relay session: which proxy instance owns the
// client connection and which upstream model it is bound to. Message payloads
// are never persisted.
type Session struct {
	ClientID    string    `json:"client_id"`
	ServerID    string    `json:"server_id"` // ID of the proxy instance handling the connection
	Model       string    `json:"model"`     // Upstream model the session is relayed to
	ConnectedAt time.Time `json:"connected_at"`
}

// Store defines the interface for session metadata management.
type Store interface {
	// Create stores a new session record.
	Create(ctx context.Context, session *Session) error
	// Get retrieves a session record by client ID.
	Get(ctx context.Context, clientID string) (*Session, error)
	// Delete removes a session record.
	Delete(ctx context.Context, clientID string) error
	// RefreshTTL extends the session's lifetime in the store.
	RefreshTTL(ctx context.Context, clientID string) error
}
