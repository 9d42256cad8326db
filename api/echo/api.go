// Package echo exposes the authorization core over HTTP with OAuth2-shaped
// request and response bodies.
package echo

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/nocturne-dev/nocturne-auth/domain"
	serrors "github.com/nocturne-dev/nocturne-auth/errors"
	"github.com/nocturne-dev/nocturne-auth/middleware"
	"github.com/nocturne-dev/nocturne-auth/services"
)

// grantTypeDeviceCode is the RFC 8628 grant type URN.
const grantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"

// AuthAPI holds the handler dependencies.
type AuthAPI struct {
	tokens   *services.TokenService
	devices  *services.DeviceCodeService
	grants   *services.GrantService
	subjects domain.SubjectReader
}

// NewAuthAPI initializes the authorization API.
func NewAuthAPI(tokens *services.TokenService, devices *services.DeviceCodeService, grants *services.GrantService, subjects domain.SubjectReader) *AuthAPI {
	return &AuthAPI{tokens: tokens, devices: devices, grants: grants, subjects: subjects}
}

// RegisterRoutes registers the OAuth2 routes.
func (a *AuthAPI) RegisterRoutes(e *echo.Echo) {
	limited := middleware.RateLimit(rate.Limit(5), 10)
	authed := middleware.BearerAuth(a.tokens)

	e.POST("/oauth2/token", a.TokenHandler, limited)
	e.POST("/oauth2/device/code", a.DeviceCodeHandler, limited)
	e.GET("/oauth2/device", a.DeviceLookupHandler)
	e.POST("/oauth2/device/approve", a.DeviceApproveHandler, authed)
	e.POST("/oauth2/device/deny", a.DeviceDenyHandler, authed)
	e.POST("/oauth2/authorize/code", a.AuthorizeCodeHandler, authed)
	e.POST("/oauth2/revoke", a.RevokeHandler)

	e.GET("/oauth2/grants", a.ListGrantsHandler, authed)
	e.PATCH("/oauth2/grants/:id", a.UpdateGrantHandler, authed)
	e.DELETE("/oauth2/grants/:id", a.RevokeGrantHandler, authed)
	e.POST("/oauth2/followers", a.CreateFollowerGrantHandler, authed)
}

// TokenHandler dispatches the token endpoint by grant_type. Success bodies
// are OAuth2-shaped token responses; failures carry the restricted error
// vocabulary.
func (a *AuthAPI) TokenHandler(c echo.Context) error {
	ctx := c.Request().Context()

	switch c.FormValue("grant_type") {
	case "authorization_code":
		resp, err := a.tokens.ExchangeAuthorizationCode(ctx,
			c.FormValue("code"),
			c.FormValue("code_verifier"),
			c.FormValue("redirect_uri"),
			c.FormValue("client_id"),
		)
		if err != nil {
			return oauthError(c, err)
		}
		return c.JSON(http.StatusOK, resp)

	case "refresh_token":
		resp, err := a.tokens.RefreshAccessToken(ctx,
			c.FormValue("refresh_token"),
			c.FormValue("client_id"),
		)
		if err != nil {
			return oauthError(c, err)
		}
		return c.JSON(http.StatusOK, resp)

	case grantTypeDeviceCode:
		resp, err := a.tokens.ExchangeDeviceCode(ctx,
			c.FormValue("device_code"),
			c.FormValue("client_id"),
		)
		if err != nil {
			return oauthError(c, err)
		}
		return c.JSON(http.StatusOK, resp)

	default:
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("Unsupported grant_type."))
	}
}

// RevokeHandler revokes a presented token. Per RFC 7009 the endpoint
// succeeds even when the token is unknown.
func (a *AuthAPI) RevokeHandler(c echo.Context) error {
	ctx := c.Request().Context()
	token := c.FormValue("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("Missing token."))
	}

	var err error
	switch c.FormValue("token_type_hint") {
	case "refresh_token":
		err = a.tokens.RevokeRefreshToken(ctx, token)
	case "access_token":
		err = a.tokens.RevokeAccessToken(ctx, token)
	default:
		// No hint: an opaque value can only be a refresh token, a JWT only
		// an access token. Trying both is cheap.
		if err = a.tokens.RevokeRefreshToken(ctx, token); err == nil {
			err = a.tokens.RevokeAccessToken(ctx, token)
		}
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, serrors.NewServerError("Failed to revoke token."))
	}
	return c.NoContent(http.StatusOK)
}

// oauthError maps service failures onto the wire: structured OAuth2 errors
// pass through as 400s, validation faults become 400 invalid_request,
// anything else is a 500 server_error with no internals leaked.
func oauthError(c echo.Context, err error) error {
	var oauthErr *serrors.OAuth2Error
	if errors.As(err, &oauthErr) {
		return c.JSON(http.StatusBadRequest, oauthErr)
	}
	if errors.Is(err, serrors.ErrInvalidInput) {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest(err.Error()))
	}
	if errors.Is(err, serrors.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return c.JSON(http.StatusInternalServerError, serrors.NewServerError("Internal error."))
}
