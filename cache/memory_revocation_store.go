package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryRevocationStore implements RevocationStore on an in-process
// ttlcache. Entries evict themselves when the marked token would have
// expired anyway.
type MemoryRevocationStore struct {
	cache *ttlcache.Cache[string, struct{}]
}

// NewMemoryRevocationStore creates an in-memory revocation store with
// automatic cleanup.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	c := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)
	go c.Start()

	return &MemoryRevocationStore{cache: c}
}

// MarkRevoked implements RevocationStore.MarkRevoked.
func (s *MemoryRevocationStore) MarkRevoked(_ context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	s.cache.Set(tokenID, struct{}{}, ttl)
	return nil
}

// IsRevoked implements RevocationStore.IsRevoked.
func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	return s.cache.Get(tokenID) != nil, nil
}

// Close stops the cleanup goroutine.
func (s *MemoryRevocationStore) Close() error {
	s.cache.Stop()
	return nil
}
