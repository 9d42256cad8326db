package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nocturne-dev/nocturne-auth/domain"
	serrors "github.com/nocturne-dev/nocturne-auth/errors"
	"github.com/nocturne-dev/nocturne-auth/pkce"
)

const (
	testIssuer    = "https://auth.test"
	testClientID  = "loop-uploader"
	testSubjectID = "subject-1"
)

type tokenServiceFixture struct {
	tokens        *TokenService
	devices       *DeviceCodeService
	grants        *GrantService
	clients       *ClientService
	authCodes     *fakeAuthCodeRepo
	refreshTokens *fakeRefreshTokenRepo
	deviceCodes   *fakeDeviceCodeRepo
	grantRepo     *fakeGrantRepo
	revocations   *fakeRevocationStore
	signer        *TokenSigner
}

func newTokenServiceFixture(t *testing.T) *tokenServiceFixture {
	t.Helper()

	authCodes := newFakeAuthCodeRepo()
	refreshTokens := newFakeRefreshTokenRepo()
	deviceCodes := newFakeDeviceCodeRepo()
	grantRepo := newFakeGrantRepo()
	revocations := newFakeRevocationStore()
	tx := fakeTransactor{}

	signer := NewTokenSigner()
	signer.AddKeySigner("test-secret")

	subjects := &fakeSubjectReader{subjects: map[string]*domain.Subject{
		testSubjectID: {ID: testSubjectID, Name: "Alice", Roles: []string{"owner"}},
	}}

	clients := NewClientService(newFakeClientRepo(), []string{testClientID})
	grants := NewGrantService(grantRepo, refreshTokens, tx)
	devices := NewDeviceCodeService(deviceCodes, clients, grants, tx, testIssuer+"/oauth2/device")
	tokens := NewTokenService(
		authCodes, refreshTokens, deviceCodes,
		grants, clients, subjects, revocations, signer, tx,
		testIssuer, time.Hour, 30*24*time.Hour,
	)

	return &tokenServiceFixture{
		tokens:        tokens,
		devices:       devices,
		grants:        grants,
		clients:       clients,
		authCodes:     authCodes,
		refreshTokens: refreshTokens,
		deviceCodes:   deviceCodes,
		grantRepo:     grantRepo,
		revocations:   revocations,
		signer:        signer,
	}
}

// issueAndExchange runs the full authorization-code flow and returns the
// token response.
func (f *tokenServiceFixture) issueAndExchange(t *testing.T, ctx context.Context, requested []string) (string, string) {
	t.Helper()

	verifier, err := pkce.GenerateCodeVerifier()
	require.NoError(t, err)
	challenge := pkce.ComputeCodeChallenge(verifier)

	code, err := f.tokens.IssueAuthorizationCode(ctx, testClientID, "Loop Uploader", testSubjectID,
		"https://app.example/callback", challenge, requested)
	require.NoError(t, err)

	resp, err := f.tokens.ExchangeAuthorizationCode(ctx, code, verifier, "https://app.example/callback", testClientID)
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	return resp.AccessToken, resp.RefreshToken
}

func TestIssueAuthorizationCodeRequiresChallenge(t *testing.T) {
	f := newTokenServiceFixture(t)
	ctx := context.Background()

	_, err := f.tokens.IssueAuthorizationCode(ctx, testClientID, "Loop", testSubjectID, "https://cb", "", []string{"entries.read"})
	assert.ErrorIs(t, err, serrors.ErrInvalidInput)

	_, err = f.tokens.IssueAuthorizationCode(ctx, testClientID, "Loop", "", "https://cb", "challenge", []string{"entries.read"})
	assert.ErrorIs(t, err, serrors.ErrInvalidInput)
}

func TestExchangeAuthorizationCode(t *testing.T) {
	f := newTokenServiceFixture(t)
	ctx := context.Background()

	access, refresh := f.issueAndExchange(t, ctx, []string{"entries.read", "treatments.readwrite"})

	claims := &AccessTokenClaims{}
	require.NoError(t, f.signer.Parse(access, claims))
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.Equal(t, testSubjectID, claims.Subject)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, []string{"owner"}, claims.Roles)
	assert.Equal(t, "entries.read treatments.readwrite", claims.Scope)
	assert.NotEmpty(t, claims.ID)

	// The refresh token is stored hashed, never in plaintext.
	record, err := f.refreshTokens.FindByHash(ctx, HashSecret(refresh))
	require.NoError(t, err)
	assert.NotEqual(t, refresh, record.TokenHash)
}

func TestExchangeAuthorizationCodeFailures(t *testing.T) {
	ctx := context.Background()

	verifier, err := pkce.GenerateCodeVerifier()
	require.NoError(t, err)
	challenge := pkce.ComputeCodeChallenge(verifier)

	issue := func(t *testing.T, f *tokenServiceFixture) string {
		code, err := f.tokens.IssueAuthorizationCode(ctx, testClientID, "Loop", testSubjectID,
			"https://app.example/callback", challenge, []string{"entries.read"})
		require.NoError(t, err)
		return code
	}

	t.Run("unknown code", func(t *testing.T) {
		f := newTokenServiceFixture(t)
		_, err := f.tokens.ExchangeAuthorizationCode(ctx, "no-such-code", verifier, "https://app.example/callback", testClientID)
		assertInvalidGrant(t, err, "Authorization code is invalid.")
	})

	t.Run("second exchange of the same code", func(t *testing.T) {
		f := newTokenServiceFixture(t)
		code := issue(t, f)
		_, err := f.tokens.ExchangeAuthorizationCode(ctx, code, verifier, "https://app.example/callback", testClientID)
		require.NoError(t, err)
		_, err = f.tokens.ExchangeAuthorizationCode(ctx, code, verifier, "https://app.example/callback", testClientID)
		assertInvalidGrant(t, err, "Authorization code has already been used.")
	})

	t.Run("wrong verifier", func(t *testing.T) {
		f := newTokenServiceFixture(t)
		code := issue(t, f)
		_, err := f.tokens.ExchangeAuthorizationCode(ctx, code, "wrong-verifier", "https://app.example/callback", testClientID)
		assertInvalidGrant(t, err, "PKCE verification failed.")
	})

	t.Run("wrong redirect uri", func(t *testing.T) {
		f := newTokenServiceFixture(t)
		code := issue(t, f)
		_, err := f.tokens.ExchangeAuthorizationCode(ctx, code, verifier, "https://evil.example/callback", testClientID)
		assertInvalidGrant(t, err, "Redirect URI does not match the authorization request.")
	})

	t.Run("wrong client id", func(t *testing.T) {
		f := newTokenServiceFixture(t)
		code := issue(t, f)
		_, err := f.tokens.ExchangeAuthorizationCode(ctx, code, verifier, "https://app.example/callback", "other-client")
		assertInvalidGrant(t, err, "Client ID does not match the authorization request.")
	})

	t.Run("expired code", func(t *testing.T) {
		f := newTokenServiceFixture(t)
		code := issue(t, f)
		record, err := f.authCodes.FindByHash(ctx, HashSecret(code))
		require.NoError(t, err)
		record.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		_, err = f.tokens.ExchangeAuthorizationCode(ctx, code, verifier, "https://app.example/callback", testClientID)
		assertInvalidGrant(t, err, "Authorization code has expired.")
	})
}

func TestRefreshRotation(t *testing.T) {
	f := newTokenServiceFixture(t)
	ctx := context.Background()

	_, refresh1 := f.issueAndExchange(t, ctx, []string{"entries.read"})

	resp, err := f.tokens.RefreshAccessToken(ctx, refresh1, testClientID)
	require.NoError(t, err)
	refresh2 := resp.RefreshToken
	assert.NotEqual(t, refresh1, refresh2)

	// The presented token is revoked and points at its successor.
	old, err := f.refreshTokens.FindByHash(ctx, HashSecret(refresh1))
	require.NoError(t, err)
	assert.True(t, old.Revoked())
	assert.NotEmpty(t, old.ReplacedByID)

	successor, err := f.refreshTokens.FindByHash(ctx, HashSecret(refresh2))
	require.NoError(t, err)
	assert.Equal(t, old.ReplacedByID, successor.ID)
	assert.False(t, successor.Revoked())

	// Exactly one live token remains for the grant after rotation.
	assert.Equal(t, 1, f.refreshTokens.activeCountForGrant(old.GrantID))
}

func TestRefreshReuseRevokesGrant(t *testing.T) {
	f := newTokenServiceFixture(t)
	ctx := context.Background()

	_, refresh1 := f.issueAndExchange(t, ctx, []string{"entries.read"})

	resp, err := f.tokens.RefreshAccessToken(ctx, refresh1, testClientID)
	require.NoError(t, err)
	refresh2 := resp.RefreshToken

	// Presenting the rotated token again is the reuse signal. The client
	// sees a plain invalid_grant, not a special reuse error.
	_, err = f.tokens.RefreshAccessToken(ctx, refresh1, testClientID)
	assertInvalidGrant(t, err, "Refresh token has been revoked.")

	// The whole grant is gone: the legitimate successor is dead too.
	old, err := f.refreshTokens.FindByHash(ctx, HashSecret(refresh1))
	require.NoError(t, err)
	grant, err := f.grants.GetGrantByID(ctx, old.GrantID)
	require.NoError(t, err)
	assert.False(t, grant.Active())

	_, err = f.tokens.RefreshAccessToken(ctx, refresh2, testClientID)
	assertInvalidGrant(t, err, "Refresh token has been revoked.")
	assert.Equal(t, 0, f.refreshTokens.activeCountForGrant(old.GrantID))
}

func TestRefreshAccessTokenFailures(t *testing.T) {
	f := newTokenServiceFixture(t)
	ctx := context.Background()

	t.Run("unknown token", func(t *testing.T) {
		_, err := f.tokens.RefreshAccessToken(ctx, "no-such-token", testClientID)
		assertInvalidGrant(t, err, "Refresh token is invalid.")
	})

	t.Run("client mismatch", func(t *testing.T) {
		_, refresh := f.issueAndExchange(t, ctx, []string{"entries.read"})
		_, err := f.tokens.RefreshAccessToken(ctx, refresh, "other-client")
		assertInvalidGrant(t, err, "Client ID does not match the grant.")
	})

	t.Run("expired token", func(t *testing.T) {
		_, refresh := f.issueAndExchange(t, ctx, []string{"entries.read"})
		record, err := f.refreshTokens.FindByHash(ctx, HashSecret(refresh))
		require.NoError(t, err)
		record.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		_, err = f.tokens.RefreshAccessToken(ctx, refresh, testClientID)
		assertInvalidGrant(t, err, "Refresh token has expired.")
	})
}

// Ordinary revocation (logout) must not be mistaken for reuse: no successor
// is stamped, so presenting the token again only fails, it does not cascade.
func TestRevokeRefreshTokenIsNotReuse(t *testing.T) {
	f := newTokenServiceFixture(t)
	ctx := context.Background()

	_, refresh := f.issueAndExchange(t, ctx, []string{"entries.read"})
	require.NoError(t, f.tokens.RevokeRefreshToken(ctx, refresh))

	record, err := f.refreshTokens.FindByHash(ctx, HashSecret(refresh))
	require.NoError(t, err)
	assert.True(t, record.Revoked())
	assert.Empty(t, record.ReplacedByID)

	_, err = f.tokens.RefreshAccessToken(ctx, refresh, testClientID)
	assertInvalidGrant(t, err, "Refresh token has been revoked.")

	grant, err := f.grants.GetGrantByID(ctx, record.GrantID)
	require.NoError(t, err)
	assert.True(t, grant.Active(), "logout must not revoke the grant")

	// Revoking twice and revoking an unknown token are both no-ops.
	assert.NoError(t, f.tokens.RevokeRefreshToken(ctx, refresh))
	assert.NoError(t, f.tokens.RevokeRefreshToken(ctx, "never-issued"))
}

func TestRevokeAndValidateAccessToken(t *testing.T) {
	f := newTokenServiceFixture(t)
	ctx := context.Background()

	access, _ := f.issueAndExchange(t, ctx, []string{"entries.read"})

	claims, err := f.tokens.ValidateAccessToken(ctx, access)
	require.NoError(t, err)
	assert.Equal(t, testSubjectID, claims.Subject)

	require.NoError(t, f.tokens.RevokeAccessToken(ctx, access))

	_, err = f.tokens.ValidateAccessToken(ctx, access)
	assertInvalidGrant(t, err, "Access token has been revoked.")

	// Garbage tokens revoke to a no-op.
	assert.NoError(t, f.tokens.RevokeAccessToken(ctx, "not-a-jwt"))
}

func TestExchangeDeviceCode(t *testing.T) {
	f := newTokenServiceFixture(t)
	ctx := context.Background()

	resp, err := f.devices.CreateDeviceCode(ctx, testClientID, "Bedside Display", []string{"entries.read"})
	require.NoError(t, err)

	t.Run("pending before approval", func(t *testing.T) {
		_, err := f.tokens.ExchangeDeviceCode(ctx, resp.DeviceCode, testClientID)
		assert.ErrorIs(t, err, serrors.ErrAuthorizationPending)
	})

	t.Run("polling again inside the interval slows down", func(t *testing.T) {
		_, err := f.tokens.ExchangeDeviceCode(ctx, resp.DeviceCode, testClientID)
		assert.ErrorIs(t, err, serrors.ErrSlowDown)

		record, err := f.deviceCodes.FindByDeviceCodeHash(ctx, HashSecret(resp.DeviceCode))
		require.NoError(t, err)
		assert.Equal(t, 10, record.Interval)

		// Every premature poll backs off further.
		_, err = f.tokens.ExchangeDeviceCode(ctx, resp.DeviceCode, testClientID)
		assert.ErrorIs(t, err, serrors.ErrSlowDown)
		record, err = f.deviceCodes.FindByDeviceCodeHash(ctx, HashSecret(resp.DeviceCode))
		require.NoError(t, err)
		assert.Equal(t, 15, record.Interval)
	})

	t.Run("approved code yields tokens bound to the approver", func(t *testing.T) {
		record, err := f.deviceCodes.FindByDeviceCodeHash(ctx, HashSecret(resp.DeviceCode))
		require.NoError(t, err)
		record.LastPolledAt = time.Time{} // outside the polling window again

		require.NoError(t, f.devices.ApproveDeviceCode(ctx, resp.UserCode, testSubjectID))

		tokenResp, err := f.tokens.ExchangeDeviceCode(ctx, resp.DeviceCode, testClientID)
		require.NoError(t, err)

		claims := &AccessTokenClaims{}
		require.NoError(t, f.signer.Parse(tokenResp.AccessToken, claims))
		assert.Equal(t, testSubjectID, claims.Subject)
		assert.Equal(t, "entries.read", claims.Scope)
		assert.NotEmpty(t, tokenResp.RefreshToken)
	})
}

func TestExchangeDeviceCodeFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown device code", func(t *testing.T) {
		f := newTokenServiceFixture(t)
		_, err := f.tokens.ExchangeDeviceCode(ctx, "no-such-code", testClientID)
		assertInvalidGrant(t, err, "Device code is invalid.")
	})

	t.Run("client mismatch", func(t *testing.T) {
		f := newTokenServiceFixture(t)
		resp, err := f.devices.CreateDeviceCode(ctx, testClientID, "Display", []string{"entries.read"})
		require.NoError(t, err)
		_, err = f.tokens.ExchangeDeviceCode(ctx, resp.DeviceCode, "other-client")
		assertInvalidGrant(t, err, "Client ID does not match the device authorization request.")
	})

	t.Run("denied code", func(t *testing.T) {
		f := newTokenServiceFixture(t)
		resp, err := f.devices.CreateDeviceCode(ctx, testClientID, "Display", []string{"entries.read"})
		require.NoError(t, err)
		require.NoError(t, f.devices.DenyDeviceCode(ctx, resp.UserCode))
		_, err = f.tokens.ExchangeDeviceCode(ctx, resp.DeviceCode, testClientID)
		assert.ErrorIs(t, err, serrors.ErrDeviceAccessDenied)
	})

	t.Run("expired code", func(t *testing.T) {
		f := newTokenServiceFixture(t)
		resp, err := f.devices.CreateDeviceCode(ctx, testClientID, "Display", []string{"entries.read"})
		require.NoError(t, err)
		record, err := f.deviceCodes.FindByDeviceCodeHash(ctx, HashSecret(resp.DeviceCode))
		require.NoError(t, err)
		record.ExpiresAt = time.Now().UTC().Add(-time.Minute)
		_, err = f.tokens.ExchangeDeviceCode(ctx, resp.DeviceCode, testClientID)
		assert.ErrorIs(t, err, serrors.ErrDeviceTokenExpired)
	})
}

// assertInvalidGrant asserts that err is an invalid_grant OAuth2 error (or
// the named device-flow code) with the expected description.
func assertInvalidGrant(t *testing.T, err error, description string) {
	t.Helper()
	var oauthErr *serrors.OAuth2Error
	require.ErrorAs(t, err, &oauthErr)
	assert.Equal(t, serrors.InvalidGrant, oauthErr.Code)
	assert.Equal(t, description, oauthErr.Description)
}
