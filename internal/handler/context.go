package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"biblioteca/internal/auth"
	"biblioteca/internal/authz"
	"biblioteca/internal/errors"
)

const (
	// ClaimsContextKey is where the JWT middleware stores validated claims.
	ClaimsContextKey = "user"
	// PrincipalContextKey is where Authenticate stores the caller.
	PrincipalContextKey = "principal"
)

// CurrentClaims returns the caller's access token claims, or nil.
func CurrentClaims(c echo.Context) *auth.Claims {
	claims, _ := c.Get(ClaimsContextKey).(*auth.Claims)
	return claims
}

// CurrentPrincipal returns the caller, anonymous when no session is present.
func CurrentPrincipal(c echo.Context) authz.Principal {
	if p, ok := c.Get(PrincipalContextKey).(authz.Principal); ok {
		return p
	}
	return authz.Anonymous
}

// respondError maps a service error onto the standard error body.
func respondError(c echo.Context, err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	if httpErr.StatusCode == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

// idParam parses a positive numeric path parameter. Anything else is a
// not-found, the same as an id that matches no row.
func idParam(c echo.Context, name string, notFound error) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, respondError(c, notFound)
	}
	return uint(id), nil
}

func badRequest() error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: "invalid request body",
		Code:  "INVALID_REQUEST",
	})
}
