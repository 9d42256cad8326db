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

// AuthCodeRepository implements domain.AuthorizationCodeRepository.
type AuthCodeRepository struct {
	codes *mongo.Collection
}

// NewAuthCodeRepository creates a new AuthCodeRepository instance.
func NewAuthCodeRepository(db *mongo.Database) *AuthCodeRepository {
	return &AuthCodeRepository{codes: db.Collection(AuthCodesCollection)}
}

func (r *AuthCodeRepository) Create(ctx context.Context, code *domain.AuthorizationCode) error {
	if _, err := r.codes.InsertOne(ctx, code); err != nil {
		return fmt.Errorf("failed to insert authorization code: %w", err)
	}
	return nil
}

func (r *AuthCodeRepository) FindByHash(ctx context.Context, codeHash string) (*domain.AuthorizationCode, error) {
	var code domain.AuthorizationCode
	err := r.codes.FindOne(ctx, bson.M{"code_hash": codeHash}).Decode(&code)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find authorization code: %w", err)
	}
	return &code, nil
}

// MarkRedeemed matches only unredeemed codes, so the second of two racing
// exchanges observes not found.
func (r *AuthCodeRepository) MarkRedeemed(ctx context.Context, id string, at time.Time) error {
	filter := bson.M{"_id": id, "redeemed_at": nil}
	result, err := r.codes.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"redeemed_at": at}})
	if err != nil {
		return fmt.Errorf("failed to mark authorization code redeemed: %w", err)
	}
	if result.MatchedCount == 0 {
		return serrors.ErrNotFound
	}
	return nil
}

func (r *AuthCodeRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.codes.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
