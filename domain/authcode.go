package domain

import (
	"context"
	"time"
)

// AuthorizationCode is the single-use credential of the code exchange. Only
// the sha256 of the code is stored; the raw code never touches the database.
type AuthorizationCode struct {
	ID            string     `bson:"_id" json:"id"`
	CodeHash      string     `bson:"code_hash" json:"-"`
	ClientID      string     `bson:"client_id" json:"client_id"` // client entity id
	SubjectID     string     `bson:"subject_id" json:"subject_id"`
	Scopes        []string   `bson:"scopes" json:"scopes"`
	RedirectURI   string     `bson:"redirect_uri" json:"redirect_uri"`
	CodeChallenge string     `bson:"code_challenge" json:"-"` // PKCE S256 challenge
	ExpiresAt     time.Time  `bson:"expires_at" json:"expires_at"`
	RedeemedAt    *time.Time `bson:"redeemed_at,omitempty" json:"redeemed_at,omitempty"`
	CreatedAt     time.Time  `bson:"created_at" json:"created_at"`
}

// Redeemed reports whether the code has already been exchanged.
func (c *AuthorizationCode) Redeemed() bool {
	return c.RedeemedAt != nil
}

// AuthorizationCodeRepository persists authorization codes, keyed by hash.
type AuthorizationCodeRepository interface {
	Create(ctx context.Context, code *AuthorizationCode) error
	FindByHash(ctx context.Context, codeHash string) (*AuthorizationCode, error)
	// MarkRedeemed sets redeemed_at. It must only match codes that are not
	// yet redeemed so a concurrent double-exchange loses the race.
	MarkRedeemed(ctx context.Context, id string, at time.Time) error
	DeleteExpired(ctx context.Context) error
}
