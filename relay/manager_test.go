package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigshanyao1/qwen-omni-proxy/session"
)

func TestManagerAddRemoveLifecycle(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)
	m := NewManager(store, "instance-1")

	dialer := &fakeDialer{gate: make(chan struct{})}
	s, _ := newTestSession(dialer)

	require.NoError(t, m.Add(context.Background(), s))
	assert.Equal(t, 1, m.Count())

	record, err := store.Get(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "instance-1", record.ServerID)
	assert.Equal(t, "qwen-omni-turbo-realtime", record.Model)

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	m.Remove(s.ID)
	assert.Equal(t, 0, m.Count())
	record, err = store.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Nil(t, record)

	// Removing twice is a no-op.
	m.Remove(s.ID)
	assert.Equal(t, 0, m.Count())
}

func TestSessionTerminationRemovesItFromManager(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)
	m := NewManager(store, "instance-1")

	dialer := &fakeDialer{}
	s, _ := newTestSession(dialer)
	require.NoError(t, m.Add(context.Background(), s))
	s.Start()

	s.Terminate(websocket.CloseNormalClosure, "test over")
	require.Eventually(t, func() bool { return m.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestReaperTerminatesUnresponsiveClients(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)
	m := NewManager(store, "instance-1")

	gate := make(chan struct{})
	defer close(gate)
	dialer := &fakeDialer{gate: gate}

	responsive, _ := newTestSession(dialer)
	require.NoError(t, m.Add(context.Background(), responsive))
	responsive.Start()

	deadClient := newFakeConn()
	deadClient.controlErr = errors.New("broken pipe")
	dead := NewSession("dead-session", "qwen-omni-turbo-realtime", deadClient, dialer, testRelayConfig())
	require.NoError(t, m.Add(context.Background(), dead))
	dead.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartReaper(ctx, 20*time.Millisecond, 100*time.Millisecond)

	require.Eventually(t, func() bool { return m.Count() == 1 }, 2*time.Second, 10*time.Millisecond,
		"reaper should remove only the unresponsive session")
	_, ok := m.Get(responsive.ID)
	assert.True(t, ok)
	_, ok = m.Get("dead-session")
	assert.False(t, ok)

	responsive.Terminate(websocket.CloseNormalClosure, "test over")
}

func TestCloseAllTerminatesEverySession(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)
	m := NewManager(store, "instance-1")

	dialer := &fakeDialer{}
	var sessions []*Session
	for i := 0; i < 3; i++ {
		s, _ := newTestSession(dialer)
		s.ID = s.ID + string(rune('a'+i))
		require.NoError(t, m.Add(context.Background(), s))
		s.Start()
		sessions = append(sessions, s)
	}

	m.CloseAll("Server shutting down")
	for _, s := range sessions {
		assert.Equal(t, stateTerminated, s.State())
	}
	require.Eventually(t, func() bool { return m.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
