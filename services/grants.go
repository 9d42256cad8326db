package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-dev/nocturne-auth/domain"
	serrors "github.com/nocturne-dev/nocturne-auth/errors"
	"github.com/nocturne-dev/nocturne-auth/scopes"
)

// GrantService owns the long-lived consent records. It enforces the
// single-active-grant-per-pair invariant, follower scope restrictions, and
// cascading revocation.
type GrantService struct {
	grants        domain.GrantRepository
	refreshTokens domain.RefreshTokenRepository
	tx            domain.Transactor
}

// NewGrantService creates a new GrantService instance.
func NewGrantService(grants domain.GrantRepository, refreshTokens domain.RefreshTokenRepository, tx domain.Transactor) *GrantService {
	return &GrantService{grants: grants, refreshTokens: refreshTokens, tx: tx}
}

// mergeScopes unions two scope sets, preserving set semantics.
func mergeScopes(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, s := range existing {
		seen[s] = struct{}{}
	}
	for _, s := range incoming {
		seen[s] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// rejectWriteScopes raises a validation fault when the set contains a
// write-capable or full-access scope. Applied before normalization so that a
// raw "*" is caught directly, and after so expansions are caught too.
func rejectWriteScopes(requested []string) error {
	for _, s := range requested {
		if scopes.IsWriteCapable(s) {
			return serrors.NewValidationError("follower grants cannot contain write-capable scope %q", s)
		}
	}
	return nil
}

// CreateOrUpdateGrant returns the active app grant for (client, subject),
// merging the requested scopes into an existing grant rather than creating a
// duplicate. Scopes are normalized before storage.
func (s *GrantService) CreateOrUpdateGrant(ctx context.Context, clientEntityID, subjectID string, requested []string, label string) (*domain.Grant, error) {
	if clientEntityID == "" || subjectID == "" {
		return nil, serrors.NewValidationError("client and subject ids must not be empty")
	}
	normalized := scopes.Normalize(requested)

	// Find-then-merge runs inside one transaction so two racing consents
	// cannot both create a grant for the same pair.
	var grant *domain.Grant
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.grants.FindActiveAppGrant(ctx, clientEntityID, subjectID)
		switch {
		case err == nil:
			existing.Scopes = mergeScopes(existing.Scopes, normalized)
			if label != "" {
				existing.Label = label
			}
			if err := s.grants.Update(ctx, existing); err != nil {
				return fmt.Errorf("failed to update grant %s: %w", existing.ID, err)
			}
			grant = existing
			return nil
		case !errors.Is(err, serrors.ErrNotFound):
			return fmt.Errorf("failed to look up grant for client %s: %w", clientEntityID, err)
		}

		now := time.Now().UTC()
		grant = &domain.Grant{
			ID:         uuid.NewString(),
			ClientID:   clientEntityID,
			SubjectID:  subjectID,
			GrantType:  domain.GrantTypeApp,
			Scopes:     normalized,
			Label:      label,
			CreatedAt:  now,
			LastUsedAt: now,
		}
		if err := s.grants.Create(ctx, grant); err != nil {
			return fmt.Errorf("failed to create grant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// CreateFollowerGrant creates (or merges into) the delegated read-only grant
// for (owner, follower). Self-follow and write-capable scopes are validation
// faults, never protocol errors.
func (s *GrantService) CreateFollowerGrant(ctx context.Context, ownerID, followerID string, requested []string, label string) (*domain.Grant, error) {
	if ownerID == "" || followerID == "" {
		return nil, serrors.NewValidationError("owner and follower ids must not be empty")
	}
	if ownerID == followerID {
		return nil, serrors.NewValidationError("a subject cannot follow itself")
	}
	if err := rejectWriteScopes(requested); err != nil {
		return nil, err
	}
	normalized := scopes.Normalize(requested)
	if err := rejectWriteScopes(normalized); err != nil {
		return nil, err
	}

	var grant *domain.Grant
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.grants.FindActiveFollowerGrant(ctx, ownerID, followerID)
		switch {
		case err == nil:
			existing.Scopes = mergeScopes(existing.Scopes, normalized)
			if label != "" {
				existing.Label = label
			}
			if err := s.grants.Update(ctx, existing); err != nil {
				return fmt.Errorf("failed to update follower grant %s: %w", existing.ID, err)
			}
			grant = existing
			return nil
		case !errors.Is(err, serrors.ErrNotFound):
			return fmt.Errorf("failed to look up follower grant: %w", err)
		}

		now := time.Now().UTC()
		grant = &domain.Grant{
			ID:         uuid.NewString(),
			SubjectID:  ownerID,
			FollowerID: followerID,
			GrantType:  domain.GrantTypeFollower,
			Scopes:     normalized,
			Label:      label,
			CreatedAt:  now,
			LastUsedAt: now,
		}
		if err := s.grants.Create(ctx, grant); err != nil {
			return fmt.Errorf("failed to create follower grant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// UpdateGrant updates label and/or scopes of a grant owned by
// ownerSubjectID. A grant belonging to a different owner is reported as not
// found, indistinguishable from absence. Follower grants re-apply the
// no-write-scope rule.
func (s *GrantService) UpdateGrant(ctx context.Context, grantID, ownerSubjectID string, label *string, requested []string) (*domain.Grant, error) {
	grant, err := s.grants.FindByID(ctx, grantID)
	if err != nil {
		if errors.Is(err, serrors.ErrNotFound) {
			return nil, serrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up grant %s: %w", grantID, err)
	}
	if grant.SubjectID != ownerSubjectID || !grant.Active() {
		return nil, serrors.ErrNotFound
	}

	if label != nil {
		grant.Label = *label
	}
	if requested != nil {
		if grant.GrantType == domain.GrantTypeFollower {
			if err := rejectWriteScopes(requested); err != nil {
				return nil, err
			}
		}
		normalized := scopes.Normalize(requested)
		if grant.GrantType == domain.GrantTypeFollower {
			if err := rejectWriteScopes(normalized); err != nil {
				return nil, err
			}
		}
		grant.Scopes = normalized
	}

	if err := s.grants.Update(ctx, grant); err != nil {
		return nil, fmt.Errorf("failed to update grant %s: %w", grantID, err)
	}
	return grant, nil
}

// RevokeGrant revokes the grant and every refresh token under it in a single
// transaction, so a crash cannot leave a revoked grant with live tokens.
func (s *GrantService) RevokeGrant(ctx context.Context, grantID string) error {
	now := time.Now().UTC()
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.grants.Revoke(ctx, grantID, now); err != nil {
			return err
		}
		return s.refreshTokens.RevokeAllForGrant(ctx, grantID, now)
	})
	if err != nil {
		if errors.Is(err, serrors.ErrNotFound) {
			return serrors.ErrNotFound
		}
		return fmt.Errorf("failed to revoke grant %s: %w", grantID, err)
	}

	log.Info().Str("grant_id", grantID).Msg("grant revoked")

	return nil
}

// GetActiveFollowerGrant returns the single active follower grant for
// (owner, follower), or errors.ErrNotFound.
func (s *GrantService) GetActiveFollowerGrant(ctx context.Context, ownerID, followerID string) (*domain.Grant, error) {
	return s.grants.FindActiveFollowerGrant(ctx, ownerID, followerID)
}

// GetGrantByID returns the grant with the given id.
func (s *GrantService) GetGrantByID(ctx context.Context, grantID string) (*domain.Grant, error) {
	return s.grants.FindByID(ctx, grantID)
}

// ListGrantsForSubject lists all grants owned by a subject, revoked ones
// included.
func (s *GrantService) ListGrantsForSubject(ctx context.Context, subjectID string) ([]*domain.Grant, error) {
	return s.grants.ListBySubject(ctx, subjectID)
}

// TouchGrant updates the grant's last-used timestamp.
func (s *GrantService) TouchGrant(ctx context.Context, grantID string) error {
	return s.grants.UpdateLastUsed(ctx, grantID, time.Now().UTC())
}
