package domain

import (
	"context"
	"time"
)

// GrantType distinguishes ordinary application consents from delegated
// follower access.
type GrantType string

const (
	GrantTypeApp      GrantType = "app"
	GrantTypeFollower GrantType = "follower"
)

// Grant is a standing consent: (client, subject) for app grants, or
// (owner subject, follower subject) for follower grants. At most one active
// grant exists per pair; a second creation merges scopes into the first.
type Grant struct {
	ID         string     `bson:"_id" json:"id"`
	ClientID   string     `bson:"client_id" json:"client_id"` // client entity id, empty for follower grants
	SubjectID  string     `bson:"subject_id" json:"subject_id"`
	GrantType  GrantType  `bson:"grant_type" json:"grant_type"`
	Scopes     []string   `bson:"scopes" json:"scopes"` // set semantics, no duplicates
	Label      string     `bson:"label,omitempty" json:"label,omitempty"`
	FollowerID string     `bson:"follower_id,omitempty" json:"follower_id,omitempty"`
	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	LastUsedAt time.Time  `bson:"last_used_at" json:"last_used_at"`
	RevokedAt  *time.Time `bson:"revoked_at,omitempty" json:"revoked_at,omitempty"`
}

// Active reports whether the grant has not been revoked.
func (g *Grant) Active() bool {
	return g.RevokedAt == nil
}

// HasScope reports whether the scope set contains the exact scope string.
func (g *Grant) HasScope(scope string) bool {
	for _, s := range g.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// GrantRepository persists consent records.
type GrantRepository interface {
	FindByID(ctx context.Context, id string) (*Grant, error)
	// FindActiveAppGrant returns the active app grant for (client entity id,
	// subject id), or errors.ErrNotFound.
	FindActiveAppGrant(ctx context.Context, clientID, subjectID string) (*Grant, error)
	// FindActiveFollowerGrant returns the active follower grant for
	// (owner subject id, follower subject id), or errors.ErrNotFound.
	FindActiveFollowerGrant(ctx context.Context, ownerID, followerID string) (*Grant, error)
	ListBySubject(ctx context.Context, subjectID string) ([]*Grant, error)
	Create(ctx context.Context, grant *Grant) error
	// Update persists scope, label and last-used changes.
	Update(ctx context.Context, grant *Grant) error
	UpdateLastUsed(ctx context.Context, id string, at time.Time) error
	// Revoke sets revoked_at on the grant.
	Revoke(ctx context.Context, id string, at time.Time) error
}
