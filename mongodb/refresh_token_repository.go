package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/nocturne-dev/nocturne-auth/domain"
	serrors "github.com/nocturne-dev/nocturne-auth/errors"
)

// RefreshTokenRepository implements domain.RefreshTokenRepository.
type RefreshTokenRepository struct {
	tokens *mongo.Collection
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository instance.
func NewRefreshTokenRepository(db *mongo.Database) *RefreshTokenRepository {
	return &RefreshTokenRepository{tokens: db.Collection(RefreshTokensCollection)}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	if _, err := r.tokens.InsertOne(ctx, token); err != nil {
		return fmt.Errorf("failed to insert refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) FindByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	var token domain.RefreshToken
	err := r.tokens.FindOne(ctx, bson.M{"token_hash": tokenHash}).Decode(&token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	return &token, nil
}

// Revoke only matches live tokens, so concurrent rotations of the same
// token cannot both stamp a successor.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, id string, at time.Time, replacedByID string) error {
	set := bson.M{"revoked_at": at}
	if replacedByID != "" {
		set["replaced_by_id"] = replacedByID
	}
	result, err := r.tokens.UpdateOne(ctx, bson.M{"_id": id, "revoked_at": nil}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if result.MatchedCount == 0 {
		return serrors.ErrNotFound
	}
	return nil
}

// RevokeAllForGrant revokes every live token under the grant. Successor
// references are left untouched: only rotation stamps them.
func (r *RefreshTokenRepository) RevokeAllForGrant(ctx context.Context, grantID string, at time.Time) error {
	filter := bson.M{"grant_id": grantID, "revoked_at": nil}
	if _, err := r.tokens.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"revoked_at": at}}); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens for grant: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.tokens.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
