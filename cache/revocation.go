// Package cache tracks revoked access-token identifiers until their natural
// expiry. It is a best-effort negative-lookup aid: a miss only means "not
// known to be revoked", never a validity proof.
package cache

import (
	"context"
	"time"
)

// RevocationStore records revoked access-token ids (jti) with a TTL equal to
// the token's remaining lifetime.
type RevocationStore interface {
	// MarkRevoked records the token id as revoked until the given instant.
	// Marking an already-expired token is a no-op.
	MarkRevoked(ctx context.Context, tokenID string, until time.Time) error
	// IsRevoked reports whether the token id is known to be revoked.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
