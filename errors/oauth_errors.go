package errors

import (
	"errors"
	"fmt"
)

// OAuth2Error represents a standardized OAuth 2.0 error response body.
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Error codes returned by the token and device endpoints. The vocabulary is
// deliberately restricted: clients only ever see these strings.
const (
	InvalidRequest       = "invalid_request"
	InvalidGrant         = "invalid_grant"
	AuthorizationPending = "authorization_pending"
	SlowDown             = "slow_down"
	AccessDenied         = "access_denied"
	ExpiredToken         = "expired_token"
	ServerError          = "server_error"
)

func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{Code: InvalidRequest, Description: description}
}

func NewInvalidGrant(description string) *OAuth2Error {
	return &OAuth2Error{Code: InvalidGrant, Description: description}
}

func NewServerError(description string) *OAuth2Error {
	return &OAuth2Error{Code: ServerError, Description: description}
}

// Device flow states (RFC 8628, Section 3.5). These are returned as-is so
// callers can compare with errors.Is.
var (
	ErrAuthorizationPending = &OAuth2Error{Code: AuthorizationPending, Description: "The authorization request is still pending."}
	ErrSlowDown             = &OAuth2Error{Code: SlowDown, Description: "Polling too frequently, increase your polling interval."}
	ErrDeviceAccessDenied   = &OAuth2Error{Code: AccessDenied, Description: "The authorization request was denied."}
	ErrDeviceTokenExpired   = &OAuth2Error{Code: ExpiredToken, Description: "The device code has expired."}
)

// ErrInvalidInput marks a programming/integrity failure: the calling code
// passed arguments the service contract forbids (self-follow, write scope on
// a follower grant, malformed identifiers). These are never translated into
// an OAuth2 response body.
var ErrInvalidInput = errors.New("invalid input")

// NewValidationError wraps ErrInvalidInput with a human-readable reason.
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// ErrNotFound is the storage-agnostic "no such record" sentinel used by all
// repositories.
var ErrNotFound = errors.New("not found")
