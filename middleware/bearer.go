// Package middleware provides the request-time stages of the authorization
// core: bearer-token resolution, scope checks, and follower delegation.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	serrors "github.com/nocturne-dev/nocturne-auth/errors"
	"github.com/nocturne-dev/nocturne-auth/services"
)

// Context keys populated by BearerAuth and rewritten by ActingAs.
const (
	ContextKeySubjectID   = "auth.subject_id"
	ContextKeySubjectName = "auth.subject_name"
	ContextKeyRoles       = "auth.roles"
	ContextKeyScopes      = "auth.scopes"
	ContextKeyActingAsID  = "auth.acting_as_id"
	ContextKeyActingAsName = "auth.acting_as_name"
)

// SubjectID returns the authenticated caller's subject id, or "".
func SubjectID(c echo.Context) string {
	id, _ := c.Get(ContextKeySubjectID).(string)
	return id
}

// EffectiveSubjectID returns the acting-as subject when a delegation is in
// effect, otherwise the caller's own id.
func EffectiveSubjectID(c echo.Context) string {
	if id, ok := c.Get(ContextKeyActingAsID).(string); ok && id != "" {
		return id
	}
	return SubjectID(c)
}

// GrantedScopes returns the request's resolved scope set.
func GrantedScopes(c echo.Context) []string {
	s, _ := c.Get(ContextKeyScopes).([]string)
	return s
}

// BearerAuth resolves the Authorization header into the caller's identity
// and granted scope set: it verifies the access token's signature and
// expiry, and short-circuits tokens known to the revocation cache.
func BearerAuth(tokens *services.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return c.JSON(http.StatusUnauthorized, serrors.NewInvalidRequest("Missing Authorization header."))
			}
			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") {
				return c.JSON(http.StatusUnauthorized, serrors.NewInvalidRequest("Authorization header must be a Bearer token."))
			}

			claims, err := tokens.ValidateAccessToken(c.Request().Context(), token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, serrors.NewInvalidGrant("Access token is invalid, expired or revoked."))
			}

			c.Set(ContextKeySubjectID, claims.Subject)
			c.Set(ContextKeySubjectName, claims.Name)
			c.Set(ContextKeyRoles, claims.Roles)
			c.Set(ContextKeyScopes, strings.Fields(claims.Scope))

			return next(c)
		}
	}
}
