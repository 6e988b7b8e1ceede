package relay

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bigshanyao1/qwen-omni-proxy/metrics"
	"github.com/bigshanyao1/qwen-omni-proxy/session"
)

// Manager is the process-wide registry of active relay sessions. Sessions are
// added on client connect and removed on termination; no session reaches into
// another's state.
type Manager struct {
	sessions sync.Map
	store    session.Store
	serverID string
	mu       sync.Mutex
	count    int
}

// NewManager creates a session manager backed by the given metadata store.
func NewManager(store session.Store, serverID string) *Manager {
	return &Manager{
		store:    store,
		serverID: serverID,
	}
}

// Add registers a session, creating its metadata record first. The session's
// termination hook removes it again.
func (m *Manager) Add(ctx context.Context, s *Session) error {
	record := &session.Session{
		ClientID:    s.ID,
		ServerID:    m.serverID,
		Model:       s.Model,
		ConnectedAt: time.Now(),
	}
	if err := m.store.Create(ctx, record); err != nil {
		log.Printf("Failed to create session record for %s: %v", s.ID, err)
		return err
	}

	s.onTerminate = func(terminated *Session) {
		m.Remove(terminated.ID)
	}
	m.sessions.Store(s.ID, s)
	m.mu.Lock()
	m.count++
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()
	metrics.TotalSessions.Inc()
	log.Printf("Session %s registered on instance %s (model=%s)", s.ID, m.serverID, s.Model)
	return nil
}

// Remove drops a session from the registry and deletes its metadata record.
// Idempotent.
func (m *Manager) Remove(id string) {
	if _, loaded := m.sessions.LoadAndDelete(id); !loaded {
		return
	}
	m.mu.Lock()
	m.count--
	m.mu.Unlock()

	// Use a background context as the originating request context may be
	// cancelled by now.
	if err := m.store.Delete(context.Background(), id); err != nil {
		log.Printf("Failed to delete session record for %s: %v", id, err)
	}
	metrics.ActiveSessions.Dec()
	log.Printf("Session %s removed", id)
}

// Get retrieves a live session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	if s, ok := m.sessions.Load(id); ok {
		return s.(*Session), true
	}
	return nil, false
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// RefreshTTL extends a session's metadata record. Transient store failures
// never disconnect the client.
func (m *Manager) RefreshTTL(ctx context.Context, id string) {
	if err := m.store.RefreshTTL(ctx, id); err != nil {
		log.Printf("Failed to refresh session TTL for %s: %v", id, err)
	}
}

// StartReaper launches the collection-wide sweep: every interval it pings all
// client connections and terminates sessions that no longer respond. This is
// coarse-grained and independent of each session's own liveness timer.
func (m *Manager) StartReaper(ctx context.Context, interval, pingTimeout time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sessions.Range(func(key, value interface{}) bool {
					s := value.(*Session)
					if err := s.PingClient(pingTimeout); err != nil {
						log.Printf("Session %s: client unresponsive, reaping: %v", s.ID, err)
						s.Terminate(websocket.CloseGoingAway, "client unresponsive")
					}
					return true
				})
			}
		}
	}()
}

// CloseAll terminates every registered session and waits for each to finish
// tearing down.
func (m *Manager) CloseAll(reason string) {
	var done []<-chan struct{}
	m.sessions.Range(func(key, value interface{}) bool {
		s := value.(*Session)
		log.Printf("Closing session %s: %s", s.ID, reason)
		s.Terminate(websocket.CloseGoingAway, reason)
		done = append(done, s.Done())
		return true
	})
	for _, ch := range done {
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
		}
	}
}
