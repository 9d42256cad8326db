package middleware

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/nocturne-dev/nocturne-auth/domain"
	serrors "github.com/nocturne-dev/nocturne-auth/errors"
	"github.com/nocturne-dev/nocturne-auth/scopes"
	"github.com/nocturne-dev/nocturne-auth/services"
)

// ActingAsHeader names the owner subject a follower wants to act for.
const ActingAsHeader = "X-Acting-As"

// ActingAs resolves follower delegation. When the header names another
// subject, the request continues with that subject as the effective identity
// and the scope set shrunk to the intersection of the caller's own scopes
// and the follower grant, under the implication relation. Without the header
// (or when it names the caller) the request passes through unchanged.
func ActingAs(grants *services.GrantService, subjects domain.SubjectReader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ownerID := c.Request().Header.Get(ActingAsHeader)
			if ownerID == "" {
				return next(c)
			}

			callerID := SubjectID(c)
			if callerID == "" {
				return c.JSON(http.StatusUnauthorized, serrors.NewInvalidRequest("Delegation requires an authenticated caller."))
			}
			if _, err := uuid.Parse(ownerID); err != nil {
				return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("X-Acting-As must be a valid subject identifier."))
			}
			if ownerID == callerID {
				// Acting as oneself is not a delegation.
				return next(c)
			}

			grant, err := grants.GetActiveFollowerGrant(c.Request().Context(), ownerID, callerID)
			if err != nil {
				if errors.Is(err, serrors.ErrNotFound) {
					return echo.NewHTTPError(http.StatusForbidden, "no follower access to the requested subject")
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve follower access")
			}

			// Name lookup is best-effort: a missing owner record leaves the
			// name empty but never fails the request.
			var ownerName string
			if owner, err := subjects.GetSubjectByID(c.Request().Context(), ownerID); err != nil {
				log.Warn().Err(err).Str("owner_id", ownerID).Msg("owner name lookup failed during delegation")
			} else {
				ownerName = owner.Name
			}

			c.Set(ContextKeyActingAsID, ownerID)
			c.Set(ContextKeyActingAsName, ownerName)
			c.Set(ContextKeyScopes, scopes.Intersect(GrantedScopes(c), grant.Scopes))

			return next(c)
		}
	}
}
