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

// DeviceCodeRepository implements domain.DeviceCodeRepository.
type DeviceCodeRepository struct {
	deviceCodes *mongo.Collection
}

// NewDeviceCodeRepository creates a new DeviceCodeRepository instance.
func NewDeviceCodeRepository(db *mongo.Database) *DeviceCodeRepository {
	return &DeviceCodeRepository{deviceCodes: db.Collection(DeviceCodesCollection)}
}

func (r *DeviceCodeRepository) Create(ctx context.Context, code *domain.DeviceCode) error {
	if _, err := r.deviceCodes.InsertOne(ctx, code); err != nil {
		return fmt.Errorf("failed to insert device code: %w", err)
	}
	return nil
}

func (r *DeviceCodeRepository) findOne(ctx context.Context, filter bson.M) (*domain.DeviceCode, error) {
	var code domain.DeviceCode
	err := r.deviceCodes.FindOne(ctx, filter).Decode(&code)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find device code: %w", err)
	}
	return &code, nil
}

func (r *DeviceCodeRepository) FindByDeviceCodeHash(ctx context.Context, hash string) (*domain.DeviceCode, error) {
	return r.findOne(ctx, bson.M{"device_code_hash": hash})
}

func (r *DeviceCodeRepository) FindByUserCode(ctx context.Context, userCode string) (*domain.DeviceCode, error) {
	return r.findOne(ctx, bson.M{"user_code": userCode})
}

func (r *DeviceCodeRepository) Update(ctx context.Context, code *domain.DeviceCode) error {
	update := bson.M{"$set": bson.M{
		"status":      code.Status,
		"interval":    code.Interval,
		"approved_at": code.ApprovedAt,
		"denied_at":   code.DeniedAt,
		"grant_id":    code.GrantID,
		"subject_id":  code.SubjectID,
	}}
	result, err := r.deviceCodes.UpdateOne(ctx, bson.M{"_id": code.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update device code: %w", err)
	}
	if result.MatchedCount == 0 {
		return serrors.ErrNotFound
	}
	return nil
}

func (r *DeviceCodeRepository) UpdateLastPolled(ctx context.Context, id string, at time.Time, interval int) error {
	update := bson.M{"$set": bson.M{"last_polled_at": at, "interval": interval}}
	result, err := r.deviceCodes.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update device code poll state: %w", err)
	}
	if result.MatchedCount == 0 {
		return serrors.ErrNotFound
	}
	return nil
}

func (r *DeviceCodeRepository) DeleteExpired(ctx context.Context) error {
	_, err := r.deviceCodes.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	return err
}
