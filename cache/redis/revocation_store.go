// Package redis provides a RevocationStore shared across server instances.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore implements cache.RevocationStore on Redis. Keys carry the
// remaining token lifetime as EX so Redis expires them on its own.
type RevocationStore struct {
	client *redis.Client
	prefix string
}

// NewRevocationStore creates a new RevocationStore instance.
func NewRevocationStore(client *redis.Client, prefix string) *RevocationStore {
	return &RevocationStore{client: client, prefix: prefix}
}

func (r *RevocationStore) redisKey(tokenID string) string {
	return fmt.Sprintf("%s:revoked:%s", r.prefix, tokenID)
}

// MarkRevoked implements cache.RevocationStore.MarkRevoked.
func (r *RevocationStore) MarkRevoked(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, r.redisKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark token revoked in redis: %w", err)
	}
	return nil
}

// IsRevoked implements cache.RevocationStore.IsRevoked.
func (r *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.redisKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation in redis: %w", err)
	}
	return n > 0, nil
}
