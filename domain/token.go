package domain

import (
	"context"
	"time"
)

// RefreshToken is the durable record of an opaque refresh token, stored as a
// sha256 hash. Rotation revokes the presented token and stamps ReplacedByID
// with its successor; a revoked token that carries a successor being
// presented again is the reuse signal that cascades grant revocation.
type RefreshToken struct {
	ID           string     `bson:"_id" json:"id"`
	TokenHash    string     `bson:"token_hash" json:"-"`
	GrantID      string     `bson:"grant_id" json:"grant_id"`
	IssuedAt     time.Time  `bson:"issued_at" json:"issued_at"`
	ExpiresAt    time.Time  `bson:"expires_at" json:"expires_at"`
	RevokedAt    *time.Time `bson:"revoked_at,omitempty" json:"revoked_at,omitempty"`
	ReplacedByID string     `bson:"replaced_by_id,omitempty" json:"replaced_by_id,omitempty"`
}

// Revoked reports whether the token has been revoked.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// RefreshTokenRepository persists refresh tokens, keyed by hash.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// Revoke marks the token revoked and optionally records its successor.
	Revoke(ctx context.Context, id string, at time.Time, replacedByID string) error
	// RevokeAllForGrant revokes every non-revoked token under the grant.
	RevokeAllForGrant(ctx context.Context, grantID string, at time.Time) error
	DeleteExpired(ctx context.Context) error
}
