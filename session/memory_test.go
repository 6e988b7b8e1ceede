package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	record := &Session{
		ClientID:    "client-1",
		ServerID:    "server-1",
		Model:       "qwen-omni-turbo-realtime",
		ConnectedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, record))

	got, err := store.Get(ctx, "client-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "server-1", got.ServerID)

	require.NoError(t, store.Delete(ctx, "client-1"))
	got, err = store.Get(ctx, "client-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(40 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Session{ClientID: "client-2"}))
	time.Sleep(60 * time.Millisecond)

	got, err := store.Get(ctx, "client-2")
	require.NoError(t, err)
	assert.Nil(t, got, "expired records read as absent")
}

func TestMemoryStoreRefreshTTL(t *testing.T) {
	store := NewMemoryStore(60 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Session{ClientID: "client-3"}))
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, store.RefreshTTL(ctx, "client-3"))
	time.Sleep(40 * time.Millisecond)

	got, err := store.Get(ctx, "client-3")
	require.NoError(t, err)
	assert.NotNil(t, got, "refresh should have extended the record's lifetime")

	// Refreshing a missing record is a no-op.
	require.NoError(t, store.RefreshTTL(ctx, "absent"))
}
