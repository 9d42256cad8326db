package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevocationStore(t *testing.T) {
	store := NewMemoryRevocationStore()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.MarkRevoked(ctx, "jti-1", time.Now().Add(time.Hour)))
	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

// Marking a token whose expiry already passed is a no-op: the wall clock has
// revoked it for us.
func TestMemoryRevocationStoreSkipsExpired(t *testing.T) {
	store := NewMemoryRevocationStore()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	require.NoError(t, store.MarkRevoked(ctx, "jti-old", time.Now().Add(-time.Minute)))
	revoked, err := store.IsRevoked(ctx, "jti-old")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemoryRevocationStoreEntriesExpire(t *testing.T) {
	store := NewMemoryRevocationStore()
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	require.NoError(t, store.MarkRevoked(ctx, "jti-short", time.Now().Add(30*time.Millisecond)))
	time.Sleep(100 * time.Millisecond)

	revoked, err := store.IsRevoked(ctx, "jti-short")
	require.NoError(t, err)
	assert.False(t, revoked)
}
