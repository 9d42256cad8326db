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

// GrantRepository implements domain.GrantRepository.
type GrantRepository struct {
	grants *mongo.Collection
}

// NewGrantRepository creates a new GrantRepository instance.
func NewGrantRepository(db *mongo.Database) *GrantRepository {
	return &GrantRepository{grants: db.Collection(GrantsCollection)}
}

func (r *GrantRepository) findOne(ctx context.Context, filter bson.M) (*domain.Grant, error) {
	var grant domain.Grant
	err := r.grants.FindOne(ctx, filter).Decode(&grant)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find grant: %w", err)
	}
	return &grant, nil
}

func (r *GrantRepository) FindByID(ctx context.Context, id string) (*domain.Grant, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *GrantRepository) FindActiveAppGrant(ctx context.Context, clientID, subjectID string) (*domain.Grant, error) {
	return r.findOne(ctx, bson.M{
		"client_id":  clientID,
		"subject_id": subjectID,
		"grant_type": domain.GrantTypeApp,
		"revoked_at": nil,
	})
}

func (r *GrantRepository) FindActiveFollowerGrant(ctx context.Context, ownerID, followerID string) (*domain.Grant, error) {
	return r.findOne(ctx, bson.M{
		"subject_id":  ownerID,
		"follower_id": followerID,
		"grant_type":  domain.GrantTypeFollower,
		"revoked_at":  nil,
	})
}

func (r *GrantRepository) ListBySubject(ctx context.Context, subjectID string) ([]*domain.Grant, error) {
	cursor, err := r.grants.Find(ctx, bson.M{"subject_id": subjectID})
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	var grants []*domain.Grant
	if err := cursor.All(ctx, &grants); err != nil {
		return nil, fmt.Errorf("failed to decode grants: %w", err)
	}
	return grants, nil
}

func (r *GrantRepository) Create(ctx context.Context, grant *domain.Grant) error {
	if _, err := r.grants.InsertOne(ctx, grant); err != nil {
		return fmt.Errorf("failed to insert grant: %w", err)
	}
	return nil
}

func (r *GrantRepository) Update(ctx context.Context, grant *domain.Grant) error {
	update := bson.M{"$set": bson.M{
		"scopes": grant.Scopes,
		"label":  grant.Label,
	}}
	result, err := r.grants.UpdateOne(ctx, bson.M{"_id": grant.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update grant: %w", err)
	}
	if result.MatchedCount == 0 {
		return serrors.ErrNotFound
	}
	return nil
}

func (r *GrantRepository) UpdateLastUsed(ctx context.Context, id string, at time.Time) error {
	result, err := r.grants.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_used_at": at}})
	if err != nil {
		return fmt.Errorf("failed to update grant last_used_at: %w", err)
	}
	if result.MatchedCount == 0 {
		return serrors.ErrNotFound
	}
	return nil
}

// Revoke only matches active grants so revocation is idempotent at the
// caller and double revokes surface as not found.
func (r *GrantRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	filter := bson.M{"_id": id, "revoked_at": nil}
	result, err := r.grants.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"revoked_at": at}})
	if err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}
	if result.MatchedCount == 0 {
		return serrors.ErrNotFound
	}
	return nil
}
