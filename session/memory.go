package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements the Store interface with an in-process map.
// It is the default store for single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

type memoryEntry struct {
	session   *Session
	expiresAt time.Time
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore(ttl time.Duration) Store {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

// Create stores a new session record with a TTL.
func (s *MemoryStore) Create(ctx context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[session.ClientID] = memoryEntry{
		session:   session,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Get retrieves a session record. Expired records read as absent.
func (s *MemoryStore) Get(ctx context.Context, clientID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[clientID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil // Not found is not an error, just means no session
	}
	return entry.session, nil
}

// Delete removes a session record.
func (s *MemoryStore) Delete(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, clientID)
	return nil
}

// RefreshTTL extends the expiration of a session record. Refreshing a missing
// record is a no-op.
func (s *MemoryStore) RefreshTTL(ctx context.Context, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[clientID]; ok {
		entry.expiresAt = time.Now().Add(s.ttl)
		s.entries[clientID] = entry
	}
	return nil
}
