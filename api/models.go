// Package api holds the wire-level request and response shapes of the
// authorization endpoints.
package api

// TokenResponse is the OAuth2-shaped success body of the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"` // seconds
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"` // space-joined
}

// DeviceAuthorizationResponse is the body of a device authorization request
// (RFC 8628, Section 3.2).
type DeviceAuthorizationResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"` // display form, XXXX-XXXX
	VerificationURI string `json:"verification_uri,omitempty"`
	ExpiresIn       int    `json:"expires_in"` // seconds
	Interval        int    `json:"interval"`   // seconds
}

// DeviceCodeInfo is the consent-page view of a pending device authorization.
type DeviceCodeInfo struct {
	ClientName string   `json:"client_name"`
	Scopes     []string `json:"scopes"`
	Expired    bool     `json:"expired"`
	Approved   bool     `json:"approved"`
	Denied     bool     `json:"denied"`
}

// GrantUpdateRequest is the body of the grant-management PATCH endpoint.
type GrantUpdateRequest struct {
	Label  *string  `json:"label,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// FollowerGrantRequest creates a delegated read-only grant for a follower.
type FollowerGrantRequest struct {
	FollowerID string   `json:"follower_id"`
	Scopes     []string `json:"scopes"`
	Label      string   `json:"label,omitempty"`
}

// AuthorizeCodeRequest is the consent-completion request that mints an
// authorization code for a client.
type AuthorizeCodeRequest struct {
	ClientID      string   `json:"client_id"`
	ClientName    string   `json:"client_name,omitempty"`
	RedirectURI   string   `json:"redirect_uri"`
	Scopes        []string `json:"scopes"`
	CodeChallenge string   `json:"code_challenge"`
}
