package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
)

// Collection names used by the authorization core.
const (
	ClientsCollection       = "auth_clients"
	GrantsCollection        = "auth_grants"
	AuthCodesCollection     = "auth_codes"
	RefreshTokensCollection = "auth_refresh_tokens"
	DeviceCodesCollection   = "auth_device_codes"
	SubjectsCollection      = "subjects" // owned by the identity subsystem, read-only here
)

// Connect opens an instrumented MongoDB client and verifies connectivity.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb primary: %w", err)
	}

	log.Info().Msg("mongodb client initialized")

	return client, nil
}

// EnsureIndexes creates the unique and lookup indexes the invariants rely
// on: one client per client_id, one hash per secret, and at most one active
// grant per (client, subject) and (owner, follower) pair.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		ClientsCollection: {
			{Keys: bson.D{{Key: "client_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		AuthCodesCollection: {
			{Keys: bson.D{{Key: "code_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		RefreshTokensCollection: {
			{Keys: bson.D{{Key: "token_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "grant_id", Value: 1}}},
		},
		DeviceCodesCollection: {
			{Keys: bson.D{{Key: "device_code_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_code", Value: 1}}},
		},
		GrantsCollection: {
			{Keys: bson.D{{Key: "subject_id", Value: 1}}},
			{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "subject_id", Value: 1}}},
			{Keys: bson.D{{Key: "subject_id", Value: 1}, {Key: "follower_id", Value: 1}}},
		},
	}

	for collection, models := range specs {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
