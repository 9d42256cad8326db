package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-dev/nocturne-auth/domain"
	serrors "github.com/nocturne-dev/nocturne-auth/errors"
)

// ClientService resolves client identity records. Unseen client ids are
// created lazily and never deleted.
type ClientService struct {
	repo domain.ClientRepository
	// known holds the configured first-party client ids.
	known map[string]struct{}
}

// NewClientService creates a new ClientService instance. knownClientIDs
// lists the first-party client ids that get the trusted flag.
func NewClientService(repo domain.ClientRepository, knownClientIDs []string) *ClientService {
	known := make(map[string]struct{}, len(knownClientIDs))
	for _, id := range knownClientIDs {
		known[id] = struct{}{}
	}
	return &ClientService{repo: repo, known: known}
}

// FindOrCreate resolves the client record for a public client id, creating
// it on first sight. Idempotent and safe to race: the unique index on
// client_id resolves concurrent creations, in which case the winner's record
// is returned.
func (s *ClientService) FindOrCreate(ctx context.Context, clientID, name string) (*domain.Client, error) {
	if clientID == "" {
		return nil, serrors.NewValidationError("client id must not be empty")
	}

	client, err := s.repo.FindByClientID(ctx, clientID)
	if err == nil {
		return client, nil
	}
	if !errors.Is(err, serrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up client %s: %w", clientID, err)
	}

	_, known := s.known[clientID]
	client = &domain.Client{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Name:      name,
		Known:     known,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, client); err != nil {
		// Lost the creation race: the concurrent insert owns the record now.
		existing, lookupErr := s.repo.FindByClientID(ctx, clientID)
		if lookupErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create client %s: %w", clientID, err)
	}

	log.Info().Str("client_id", clientID).Bool("known", known).Msg("registered new client")

	return client, nil
}

// GetByClientID returns the client with the given public client id.
func (s *ClientService) GetByClientID(ctx context.Context, clientID string) (*domain.Client, error) {
	return s.repo.FindByClientID(ctx, clientID)
}

// GetByID returns the client with the given entity id.
func (s *ClientService) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	return s.repo.FindByID(ctx, id)
}
