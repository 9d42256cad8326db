package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nocturne-dev/nocturne-auth/scopes"
)

// RequireScope rejects requests whose resolved scope set does not satisfy
// the required scope under the implication relation.
func RequireScope(required string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !scopes.Satisfies(GrantedScopes(c), required) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient scope: "+required)
			}
			return next(c)
		}
	}
}
