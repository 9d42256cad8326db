package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nocturne-dev/nocturne-auth/api"
	serrors "github.com/nocturne-dev/nocturne-auth/errors"
	"github.com/nocturne-dev/nocturne-auth/middleware"
)

// AuthorizeCodeHandler completes consent for an authenticated subject and
// mints the single-use authorization code the client will exchange.
func (a *AuthAPI) AuthorizeCodeHandler(c echo.Context) error {
	var req api.AuthorizeCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("Malformed request body."))
	}

	code, err := a.tokens.IssueAuthorizationCode(
		c.Request().Context(),
		req.ClientID,
		req.ClientName,
		middleware.SubjectID(c),
		req.RedirectURI,
		req.CodeChallenge,
		req.Scopes,
	)
	if err != nil {
		return oauthError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"code": code})
}

// ListGrantsHandler lists the authenticated subject's grants.
func (a *AuthAPI) ListGrantsHandler(c echo.Context) error {
	grants, err := a.grants.ListGrantsForSubject(c.Request().Context(), middleware.SubjectID(c))
	if err != nil {
		return oauthError(c, err)
	}
	return c.JSON(http.StatusOK, grants)
}

// UpdateGrantHandler updates label and/or scopes of one of the subject's
// grants. Foreign grants look exactly like missing ones.
func (a *AuthAPI) UpdateGrantHandler(c echo.Context) error {
	var req api.GrantUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("Malformed request body."))
	}

	grant, err := a.grants.UpdateGrant(c.Request().Context(), c.Param("id"), middleware.SubjectID(c), req.Label, req.Scopes)
	if err != nil {
		return oauthError(c, err)
	}
	return c.JSON(http.StatusOK, grant)
}

// RevokeGrantHandler revokes one of the subject's grants, cascading to its
// refresh tokens.
func (a *AuthAPI) RevokeGrantHandler(c echo.Context) error {
	grantID := c.Param("id")

	grant, err := a.grants.GetGrantByID(c.Request().Context(), grantID)
	if err != nil || grant.SubjectID != middleware.SubjectID(c) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}

	if err := a.grants.RevokeGrant(c.Request().Context(), grantID); err != nil {
		if errors.Is(err, serrors.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		return oauthError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateFollowerGrantHandler creates (or merges) the read-only delegation
// for a follower of the authenticated owner.
func (a *AuthAPI) CreateFollowerGrantHandler(c echo.Context) error {
	var req api.FollowerGrantRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("Malformed request body."))
	}

	grant, err := a.grants.CreateFollowerGrant(c.Request().Context(), middleware.SubjectID(c), req.FollowerID, req.Scopes, req.Label)
	if err != nil {
		return oauthError(c, err)
	}
	return c.JSON(http.StatusCreated, grant)
}
