package services

import (
	"context"
	"sync"
	"time"

	"github.com/nocturne-dev/nocturne-auth/domain"
	serrors "github.com/nocturne-dev/nocturne-auth/errors"
)

// In-memory repository fakes. They mirror the conditional-update semantics
// of the real repositories: mutating operations match only records in the
// state the production queries filter on, and report errors.ErrNotFound
// otherwise.

type fakeClientRepo struct {
	mu      sync.Mutex
	clients map[string]*domain.Client // by entity id
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{clients: make(map[string]*domain.Client)}
}

func (r *fakeClientRepo) FindByClientID(_ context.Context, clientID string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		if c.ClientID == clientID {
			return c, nil
		}
	}
	return nil, serrors.ErrNotFound
}

func (r *fakeClientRepo) FindByID(_ context.Context, id string) (*domain.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok {
		return c, nil
	}
	return nil, serrors.ErrNotFound
}

func (r *fakeClientRepo) Create(_ context.Context, client *domain.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.ID] = client
	return nil
}

type fakeGrantRepo struct {
	mu     sync.Mutex
	grants map[string]*domain.Grant
}

func newFakeGrantRepo() *fakeGrantRepo {
	return &fakeGrantRepo{grants: make(map[string]*domain.Grant)}
}

func (r *fakeGrantRepo) FindByID(_ context.Context, id string) (*domain.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.grants[id]; ok {
		return g, nil
	}
	return nil, serrors.ErrNotFound
}

func (r *fakeGrantRepo) FindActiveAppGrant(_ context.Context, clientID, subjectID string) (*domain.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.grants {
		if g.GrantType == domain.GrantTypeApp && g.ClientID == clientID && g.SubjectID == subjectID && g.RevokedAt == nil {
			return g, nil
		}
	}
	return nil, serrors.ErrNotFound
}

func (r *fakeGrantRepo) FindActiveFollowerGrant(_ context.Context, ownerID, followerID string) (*domain.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.grants {
		if g.GrantType == domain.GrantTypeFollower && g.SubjectID == ownerID && g.FollowerID == followerID && g.RevokedAt == nil {
			return g, nil
		}
	}
	return nil, serrors.ErrNotFound
}

func (r *fakeGrantRepo) ListBySubject(_ context.Context, subjectID string) ([]*domain.Grant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Grant
	for _, g := range r.grants {
		if g.SubjectID == subjectID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *fakeGrantRepo) Create(_ context.Context, grant *domain.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[grant.ID] = grant
	return nil
}

func (r *fakeGrantRepo) Update(_ context.Context, grant *domain.Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.grants[grant.ID]; !ok {
		return serrors.ErrNotFound
	}
	r.grants[grant.ID] = grant
	return nil
}

func (r *fakeGrantRepo) UpdateLastUsed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[id]
	if !ok {
		return serrors.ErrNotFound
	}
	g.LastUsedAt = at
	return nil
}

func (r *fakeGrantRepo) Revoke(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.grants[id]
	if !ok || g.RevokedAt != nil {
		return serrors.ErrNotFound
	}
	g.RevokedAt = &at
	return nil
}

type fakeAuthCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*domain.AuthorizationCode
}

func newFakeAuthCodeRepo() *fakeAuthCodeRepo {
	return &fakeAuthCodeRepo{codes: make(map[string]*domain.AuthorizationCode)}
}

func (r *fakeAuthCodeRepo) Create(_ context.Context, code *domain.AuthorizationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[code.ID] = code
	return nil
}

func (r *fakeAuthCodeRepo) FindByHash(_ context.Context, codeHash string) (*domain.AuthorizationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.CodeHash == codeHash {
			return c, nil
		}
	}
	return nil, serrors.ErrNotFound
}

func (r *fakeAuthCodeRepo) MarkRedeemed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[id]
	if !ok || c.RedeemedAt != nil {
		return serrors.ErrNotFound
	}
	c.RedeemedAt = &at
	return nil
}

func (r *fakeAuthCodeRepo) DeleteExpired(_ context.Context) error { return nil }

type fakeRefreshTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.RefreshToken
}

func newFakeRefreshTokenRepo() *fakeRefreshTokenRepo {
	return &fakeRefreshTokenRepo{tokens: make(map[string]*domain.RefreshToken)}
}

func (r *fakeRefreshTokenRepo) Create(_ context.Context, token *domain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.ID] = token
	return nil
}

func (r *fakeRefreshTokenRepo) FindByHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == tokenHash {
			return t, nil
		}
	}
	return nil, serrors.ErrNotFound
}

func (r *fakeRefreshTokenRepo) Revoke(_ context.Context, id string, at time.Time, replacedByID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || t.RevokedAt != nil {
		return serrors.ErrNotFound
	}
	t.RevokedAt = &at
	t.ReplacedByID = replacedByID
	return nil
}

func (r *fakeRefreshTokenRepo) RevokeAllForGrant(_ context.Context, grantID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.GrantID == grantID && t.RevokedAt == nil {
			t.RevokedAt = &at
		}
	}
	return nil
}

func (r *fakeRefreshTokenRepo) DeleteExpired(_ context.Context) error { return nil }

func (r *fakeRefreshTokenRepo) activeCountForGrant(grantID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tokens {
		if t.GrantID == grantID && t.RevokedAt == nil {
			n++
		}
	}
	return n
}

type fakeDeviceCodeRepo struct {
	mu    sync.Mutex
	codes map[string]*domain.DeviceCode
}

func newFakeDeviceCodeRepo() *fakeDeviceCodeRepo {
	return &fakeDeviceCodeRepo{codes: make(map[string]*domain.DeviceCode)}
}

func (r *fakeDeviceCodeRepo) Create(_ context.Context, code *domain.DeviceCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes[code.ID] = code
	return nil
}

func (r *fakeDeviceCodeRepo) FindByDeviceCodeHash(_ context.Context, hash string) (*domain.DeviceCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.DeviceCodeHash == hash {
			return c, nil
		}
	}
	return nil, serrors.ErrNotFound
}

func (r *fakeDeviceCodeRepo) FindByUserCode(_ context.Context, userCode string) (*domain.DeviceCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.UserCode == userCode {
			return c, nil
		}
	}
	return nil, serrors.ErrNotFound
}

func (r *fakeDeviceCodeRepo) Update(_ context.Context, code *domain.DeviceCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[code.ID]; !ok {
		return serrors.ErrNotFound
	}
	r.codes[code.ID] = code
	return nil
}

func (r *fakeDeviceCodeRepo) UpdateLastPolled(_ context.Context, id string, at time.Time, interval int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[id]
	if !ok {
		return serrors.ErrNotFound
	}
	c.LastPolledAt = at
	c.Interval = interval
	return nil
}

func (r *fakeDeviceCodeRepo) DeleteExpired(_ context.Context) error { return nil }

type fakeSubjectReader struct {
	subjects map[string]*domain.Subject
}

func (r *fakeSubjectReader) GetSubjectByID(_ context.Context, id string) (*domain.Subject, error) {
	if s, ok := r.subjects[id]; ok {
		return s, nil
	}
	return nil, serrors.ErrNotFound
}

type fakeRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newFakeRevocationStore() *fakeRevocationStore {
	return &fakeRevocationStore{revoked: make(map[string]time.Time)}
}

func (s *fakeRevocationStore) MarkRevoked(_ context.Context, tokenID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tokenID] = until
	return nil
}

func (s *fakeRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[tokenID]
	return ok, nil
}

// fakeTransactor runs the function directly. The fakes are process-local, so
// atomicity is not observable here.
type fakeTransactor struct{}

func (fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
