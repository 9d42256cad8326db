package domain

import (
	"context"
	"time"
)

// Client is the identity of a calling application. Clients are created
// lazily on first sight of an unseen client_id and are never deleted.
type Client struct {
	ID           string    `bson:"_id" json:"id"`
	ClientID     string    `bson:"client_id" json:"client_id"` // caller-supplied public identifier
	Name         string    `bson:"name" json:"name"`
	Known        bool      `bson:"known" json:"known"` // first-party, trusted
	RedirectURIs []string  `bson:"redirect_uris,omitempty" json:"redirect_uris,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// ClientRepository persists client identity records.
type ClientRepository interface {
	// FindByClientID returns the client with the given public client id,
	// or errors.ErrNotFound.
	FindByClientID(ctx context.Context, clientID string) (*Client, error)
	// FindByID returns the client with the given entity id.
	FindByID(ctx context.Context, id string) (*Client, error)
	// Create inserts a new client. The unique index on client_id resolves
	// concurrent find-or-create races.
	Create(ctx context.Context, client *Client) error
}
