package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// Transactor implements domain.Transactor on MongoDB sessions. Collection
// operations join the transaction through the session-bearing context passed
// to fn.
type Transactor struct {
	client *mongo.Client
}

// NewTransactor creates a new Transactor instance.
func NewTransactor(client *mongo.Client) *Transactor {
	return &Transactor{client: client}
}

// WithinTransaction implements domain.Transactor.WithinTransaction. Nested
// calls join the transaction already bound to the context instead of
// starting a second, independently committing session.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := t.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start mongodb session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		return nil, fn(sessCtx)
	})
	return err
}
