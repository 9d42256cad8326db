package domain

import "context"

// Transactor runs fn atomically with respect to the persistent store. Token
// rotation and grant cascade-revocation must not be observable half-done: a
// crash between revoke-old and create-new must never leave two live refresh
// tokens for one rotation event.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
