package echo

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	serrors "github.com/nocturne-dev/nocturne-auth/errors"
	"github.com/nocturne-dev/nocturne-auth/middleware"
	"github.com/nocturne-dev/nocturne-auth/services"
)

// DeviceCodeHandler starts a device authorization request (RFC 8628,
// Section 3.1).
func (a *AuthAPI) DeviceCodeHandler(c echo.Context) error {
	clientID := c.FormValue("client_id")
	if clientID == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("Missing client_id."))
	}

	resp, err := a.devices.CreateDeviceCode(
		c.Request().Context(),
		clientID,
		c.FormValue("client_name"),
		strings.Fields(c.FormValue("scope")),
	)
	if err != nil {
		return oauthError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// DeviceLookupHandler shows the consent-page view for a user code.
func (a *AuthAPI) DeviceLookupHandler(c echo.Context) error {
	userCode := c.QueryParam("user_code")
	if userCode == "" {
		return c.JSON(http.StatusBadRequest, serrors.NewInvalidRequest("Missing user_code."))
	}

	info, err := a.devices.GetByUserCode(c.Request().Context(), userCode)
	if err != nil {
		if errors.Is(err, serrors.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "unknown user code")
		}
		return oauthError(c, err)
	}
	return c.JSON(http.StatusOK, info)
}

// DeviceApproveHandler approves a pending device authorization on behalf of
// the authenticated subject.
func (a *AuthAPI) DeviceApproveHandler(c echo.Context) error {
	err := a.devices.ApproveDeviceCode(
		c.Request().Context(),
		c.FormValue("user_code"),
		middleware.SubjectID(c),
	)
	return deviceDecisionResult(c, err)
}

// DeviceDenyHandler denies a pending device authorization.
func (a *AuthAPI) DeviceDenyHandler(c echo.Context) error {
	err := a.devices.DenyDeviceCode(c.Request().Context(), c.FormValue("user_code"))
	return deviceDecisionResult(c, err)
}

func deviceDecisionResult(c echo.Context, err error) error {
	switch {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, serrors.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "unknown user code")
	case errors.Is(err, services.ErrDeviceCodeProcessed):
		return echo.NewHTTPError(http.StatusConflict, "device code already processed or expired")
	default:
		return oauthError(c, err)
	}
}
