package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/nocturne-dev/nocturne-auth/domain"
	serrors "github.com/nocturne-dev/nocturne-auth/errors"
)

// ClientRepository implements domain.ClientRepository.
type ClientRepository struct {
	clients *mongo.Collection
}

// NewClientRepository creates a new ClientRepository instance.
func NewClientRepository(db *mongo.Database) *ClientRepository {
	return &ClientRepository{clients: db.Collection(ClientsCollection)}
}

func (r *ClientRepository) FindByClientID(ctx context.Context, clientID string) (*domain.Client, error) {
	var client domain.Client
	err := r.clients.FindOne(ctx, bson.M{"client_id": clientID}).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find client by client_id: %w", err)
	}
	return &client, nil
}

func (r *ClientRepository) FindByID(ctx context.Context, id string) (*domain.Client, error) {
	var client domain.Client
	err := r.clients.FindOne(ctx, bson.M{"_id": id}).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, serrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find client by id: %w", err)
	}
	return &client, nil
}

func (r *ClientRepository) Create(ctx context.Context, client *domain.Client) error {
	if _, err := r.clients.InsertOne(ctx, client); err != nil {
		return fmt.Errorf("failed to insert client: %w", err)
	}
	return nil
}
