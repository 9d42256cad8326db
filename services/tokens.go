package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-dev/nocturne-auth/api"
	"github.com/nocturne-dev/nocturne-auth/cache"
	"github.com/nocturne-dev/nocturne-auth/domain"
	serrors "github.com/nocturne-dev/nocturne-auth/errors"
	"github.com/nocturne-dev/nocturne-auth/internal/metrics"
	"github.com/nocturne-dev/nocturne-auth/pkce"
	"github.com/nocturne-dev/nocturne-auth/scopes"
)

const (
	refreshTokenLength = 32 // bytes of entropy in the opaque refresh token
	authCodeLength     = 32 // bytes of entropy in the authorization code
	authCodeLifetime   = 5 * time.Minute

	// slowDownIncrement is added to the stored polling interval every time
	// a device polls faster than allowed (RFC 8628, Section 3.5).
	slowDownIncrement = 5
)

// TokenService mints and exchanges credentials: authorization-code exchange,
// refresh rotation with reuse detection, and device-code exchange. Expected
// protocol failures are returned as structured *errors.OAuth2Error values,
// never as faults.
type TokenService struct {
	authCodes     domain.AuthorizationCodeRepository
	refreshTokens domain.RefreshTokenRepository
	deviceCodes   domain.DeviceCodeRepository
	grants        *GrantService
	clients       *ClientService
	subjects      domain.SubjectReader
	revocations   cache.RevocationStore
	signer        *TokenSigner
	tx            domain.Transactor

	issuer          string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// NewTokenService creates a new TokenService instance.
func NewTokenService(
	authCodes domain.AuthorizationCodeRepository,
	refreshTokens domain.RefreshTokenRepository,
	deviceCodes domain.DeviceCodeRepository,
	grants *GrantService,
	clients *ClientService,
	subjects domain.SubjectReader,
	revocations cache.RevocationStore,
	signer *TokenSigner,
	tx domain.Transactor,
	issuer string,
	accessTokenTTL, refreshTokenTTL time.Duration,
) *TokenService {
	return &TokenService{
		authCodes:       authCodes,
		refreshTokens:   refreshTokens,
		deviceCodes:     deviceCodes,
		grants:          grants,
		clients:         clients,
		subjects:        subjects,
		revocations:     revocations,
		signer:          signer,
		tx:              tx,
		issuer:          issuer,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// IssueAuthorizationCode mints a single-use authorization code after consent.
// Only the hash is stored; the raw code goes back to the caller once.
func (s *TokenService) IssueAuthorizationCode(ctx context.Context, clientID, clientName, subjectID, redirectURI, codeChallenge string, requested []string) (string, error) {
	if subjectID == "" {
		return "", serrors.NewValidationError("subject id must not be empty")
	}
	if codeChallenge == "" {
		return "", serrors.NewValidationError("PKCE code challenge is required")
	}

	client, err := s.clients.FindOrCreate(ctx, clientID, clientName)
	if err != nil {
		return "", err
	}

	code, err := generateOpaqueSecret(authCodeLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate authorization code: %w", err)
	}

	now := time.Now().UTC()
	record := &domain.AuthorizationCode{
		ID:            uuid.NewString(),
		CodeHash:      HashSecret(code),
		ClientID:      client.ID,
		SubjectID:     subjectID,
		Scopes:        scopes.Normalize(requested),
		RedirectURI:   redirectURI,
		CodeChallenge: codeChallenge,
		ExpiresAt:     now.Add(authCodeLifetime),
		CreatedAt:     now,
	}
	if err := s.authCodes.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}

	metrics.AuthCodesIssuedTotal.Inc()

	return code, nil
}

// ExchangeAuthorizationCode redeems an authorization code for a token pair.
// Validation order: existence, prior redemption, expiry, PKCE, redirect URI,
// client id; every expected failure is invalid_grant.
func (s *TokenService) ExchangeAuthorizationCode(ctx context.Context, code, verifier, redirectURI, clientID string) (*api.TokenResponse, error) {
	record, err := s.authCodes.FindByHash(ctx, HashSecret(code))
	if err != nil {
		if errors.Is(err, serrors.ErrNotFound) {
			return nil, serrors.NewInvalidGrant("Authorization code is invalid.")
		}
		return nil, fmt.Errorf("failed to look up authorization code: %w", err)
	}

	now := time.Now().UTC()
	switch {
	case record.Redeemed():
		return nil, serrors.NewInvalidGrant("Authorization code has already been used.")
	case now.After(record.ExpiresAt):
		return nil, serrors.NewInvalidGrant("Authorization code has expired.")
	}

	if !pkce.ValidateCodeChallenge(verifier, record.CodeChallenge) {
		return nil, serrors.NewInvalidGrant("PKCE verification failed.")
	}
	if record.RedirectURI != redirectURI {
		return nil, serrors.NewInvalidGrant("Redirect URI does not match the authorization request.")
	}

	client, err := s.clients.GetByClientID(ctx, clientID)
	if err != nil || client.ID != record.ClientID {
		return nil, serrors.NewInvalidGrant("Client ID does not match the authorization request.")
	}

	var grant *domain.Grant
	var refresh string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		// Conditional update: a concurrent exchange of the same code loses
		// the race here and surfaces as already-used.
		if err := s.authCodes.MarkRedeemed(ctx, record.ID, now); err != nil {
			return err
		}
		grant, err = s.grants.CreateOrUpdateGrant(ctx, record.ClientID, record.SubjectID, record.Scopes, client.Name)
		if err != nil {
			return err
		}
		refresh, err = s.issueRefreshToken(ctx, grant.ID, now)
		if err != nil {
			return err
		}
		return s.grants.TouchGrant(ctx, grant.ID)
	})
	if err != nil {
		if errors.Is(err, serrors.ErrNotFound) {
			return nil, serrors.NewInvalidGrant("Authorization code has already been used.")
		}
		return nil, fmt.Errorf("failed to redeem authorization code: %w", err)
	}

	metrics.AuthCodesExchangedTotal.Inc()

	return s.tokenResponse(ctx, grant, client.ClientID, refresh)
}

// RefreshAccessToken rotates a refresh token: the presented token is revoked
// and replaced atomically. Presenting a token that already has a successor
// is treated as reuse and revokes the entire grant.
func (s *TokenService) RefreshAccessToken(ctx context.Context, refreshToken, clientID string) (*api.TokenResponse, error) {
	record, err := s.refreshTokens.FindByHash(ctx, HashSecret(refreshToken))
	if err != nil {
		if errors.Is(err, serrors.ErrNotFound) {
			return nil, serrors.NewInvalidGrant("Refresh token is invalid.")
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	now := time.Now().UTC()
	if record.Revoked() {
		if record.ReplacedByID != "" {
			// The token was already rotated once: the old value leaking back
			// means someone else holds a copy. Kill the whole grant.
			s.revokeGrantForReuse(ctx, record)
		}
		return nil, serrors.NewInvalidGrant("Refresh token has been revoked.")
	}
	if record.Expired(now) {
		return nil, serrors.NewInvalidGrant("Refresh token has expired.")
	}

	grant, err := s.grants.GetGrantByID(ctx, record.GrantID)
	if err != nil || !grant.Active() {
		return nil, serrors.NewInvalidGrant("Refresh token has been revoked.")
	}

	client, err := s.clients.GetByID(ctx, grant.ClientID)
	if err != nil || client.ClientID != clientID {
		return nil, serrors.NewInvalidGrant("Client ID does not match the grant.")
	}

	var refresh string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		successorID := uuid.NewString()
		refresh, err = s.issueRefreshTokenWithID(ctx, successorID, grant.ID, now)
		if err != nil {
			return err
		}
		if err := s.refreshTokens.Revoke(ctx, record.ID, now, successorID); err != nil {
			return err
		}
		return s.grants.TouchGrant(ctx, grant.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	metrics.TokensRefreshedTotal.Inc()

	return s.tokenResponse(ctx, grant, client.ClientID, refresh)
}

// revokeGrantForReuse cascades a grant revocation after refresh-token reuse.
// The client-facing error stays invalid_grant so reuse is not an oracle; the
// log entry is what incident response keys on.
func (s *TokenService) revokeGrantForReuse(ctx context.Context, record *domain.RefreshToken) {
	log.Warn().
		Str("security_event", "refresh_token_reuse").
		Str("refresh_token_id", record.ID).
		Str("grant_id", record.GrantID).
		Msg("rotated refresh token presented again, revoking grant")

	metrics.TokenReuseDetectedTotal.Inc()

	if err := s.grants.RevokeGrant(ctx, record.GrantID); err != nil && !errors.Is(err, serrors.ErrNotFound) {
		log.Error().Err(err).Str("grant_id", record.GrantID).Msg("failed to cascade grant revocation after token reuse")
	}
}

// ExchangeDeviceCode redeems a device code once the user has approved it
// (RFC 8628, Section 3.4 and 3.5).
func (s *TokenService) ExchangeDeviceCode(ctx context.Context, deviceCode, clientID string) (*api.TokenResponse, error) {
	record, err := s.deviceCodes.FindByDeviceCodeHash(ctx, HashSecret(deviceCode))
	if err != nil {
		if errors.Is(err, serrors.ErrNotFound) {
			return nil, serrors.NewInvalidGrant("Device code is invalid.")
		}
		return nil, fmt.Errorf("failed to look up device code: %w", err)
	}

	client, err := s.clients.GetByClientID(ctx, clientID)
	if err != nil || client.ID != record.ClientID {
		return nil, serrors.NewInvalidGrant("Client ID does not match the device authorization request.")
	}

	now := time.Now().UTC()
	if record.Expired(now) {
		return nil, serrors.ErrDeviceTokenExpired
	}
	if record.Status == domain.DeviceCodeStatusDenied {
		return nil, serrors.ErrDeviceAccessDenied
	}

	// Rate-limit polling: a device asking again before its interval has
	// elapsed backs off by a fixed increment each time.
	if !record.LastPolledAt.IsZero() && now.Before(record.LastPolledAt.Add(time.Duration(record.Interval)*time.Second)) {
		newInterval := record.Interval + slowDownIncrement
		if err := s.deviceCodes.UpdateLastPolled(ctx, record.ID, now, newInterval); err != nil {
			log.Warn().Err(err).Str("device_code_id", record.ID).Msg("failed to record slow_down poll")
		}
		metrics.SlowDownResponsesTotal.Inc()
		return nil, serrors.ErrSlowDown
	}

	if record.Status != domain.DeviceCodeStatusApproved || record.GrantID == "" {
		if err := s.deviceCodes.UpdateLastPolled(ctx, record.ID, now, record.Interval); err != nil {
			log.Warn().Err(err).Str("device_code_id", record.ID).Msg("failed to record poll")
		}
		return nil, serrors.ErrAuthorizationPending
	}

	grant, err := s.grants.GetGrantByID(ctx, record.GrantID)
	if err != nil || !grant.Active() {
		return nil, serrors.NewInvalidGrant("The grant for this device authorization has been revoked.")
	}

	var refresh string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		refresh, err = s.issueRefreshToken(ctx, grant.ID, now)
		if err != nil {
			return err
		}
		return s.grants.TouchGrant(ctx, grant.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to redeem device code: %w", err)
	}

	return s.tokenResponse(ctx, grant, client.ClientID, refresh)
}

// RevokeAccessToken marks a still-valid access token revoked in the
// revocation cache until its natural expiry.
func (s *TokenService) RevokeAccessToken(ctx context.Context, rawToken string) error {
	claims := &AccessTokenClaims{}
	if err := s.signer.Parse(rawToken, claims); err != nil {
		// Already expired or not ours: nothing to revoke.
		return nil
	}
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return s.revocations.MarkRevoked(ctx, claims.ID, claims.ExpiresAt.Time)
}

// RevokeRefreshToken performs an ordinary revocation (logout). No successor
// is stamped, so a later presentation does not escalate to grant revocation.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, rawToken string) error {
	record, err := s.refreshTokens.FindByHash(ctx, HashSecret(rawToken))
	if err != nil {
		if errors.Is(err, serrors.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if record.Revoked() {
		return nil
	}
	return s.refreshTokens.Revoke(ctx, record.ID, time.Now().UTC(), "")
}

// ValidateAccessToken verifies signature and expiry and consults the
// revocation cache. Used by the bearer middleware.
func (s *TokenService) ValidateAccessToken(ctx context.Context, rawToken string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	if err := s.signer.Parse(rawToken, claims); err != nil {
		return nil, err
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		// Best-effort cache: an unreachable cache must not take down the
		// request path, it only loses the early-revocation shortcut.
		log.Warn().Err(err).Msg("revocation cache lookup failed")
		return claims, nil
	}
	if revoked {
		return nil, serrors.NewInvalidGrant("Access token has been revoked.")
	}
	return claims, nil
}

// issueRefreshToken creates a refresh-token record and returns the raw
// opaque value.
func (s *TokenService) issueRefreshToken(ctx context.Context, grantID string, now time.Time) (string, error) {
	return s.issueRefreshTokenWithID(ctx, uuid.NewString(), grantID, now)
}

func (s *TokenService) issueRefreshTokenWithID(ctx context.Context, id, grantID string, now time.Time) (string, error) {
	raw, err := generateOpaqueSecret(refreshTokenLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate refresh token: %w", err)
	}
	record := &domain.RefreshToken{
		ID:        id,
		TokenHash: HashSecret(raw),
		GrantID:   grantID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTokenTTL),
	}
	if err := s.refreshTokens.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save refresh token: %w", err)
	}
	return raw, nil
}

// tokenResponse signs the access token for the grant and assembles the
// OAuth2-shaped response.
func (s *TokenService) tokenResponse(ctx context.Context, grant *domain.Grant, publicClientID, refreshToken string) (*api.TokenResponse, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.accessTokenTTL)

	var name string
	var roles []string
	subject, err := s.subjects.GetSubjectByID(ctx, grant.SubjectID)
	if err != nil {
		log.Warn().Err(err).Str("subject_id", grant.SubjectID).Msg("subject lookup failed, minting token without name and roles")
	} else {
		name = subject.Name
		roles = subject.Roles
	}

	claims := &AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   grant.SubjectID,
			Audience:  jwt.ClaimStrings{publicClientID},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Name:  name,
		Roles: roles,
		Scope: strings.Join(grant.Scopes, " "),
	}
	accessToken, err := s.signer.Sign(claims, "")
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	return &api.TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.accessTokenTTL.Seconds()),
		RefreshToken: refreshToken,
		Scope:        strings.Join(grant.Scopes, " "),
	}, nil
}
