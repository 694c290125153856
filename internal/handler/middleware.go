package handler

import (
	"github.com/labstack/echo/v4"

	"biblioteca/internal/authz"
	"biblioteca/internal/model"
	"biblioteca/internal/service"
)

// PermissionDeniedNotice is shown when a role-gated route turns the caller away.
const PermissionDeniedNotice = "You do not have permission to access this page."

// Authenticate resolves the caller's profile from the validated token claims.
// Requests without claims, or whose profile cannot be loaded, continue as
// anonymous.
func Authenticate(authService service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := CurrentClaims(c)
			if claims == nil {
				c.Set(PrincipalContextKey, authz.Anonymous)
				return next(c)
			}

			principal, err := authService.Principal(c.Request().Context(), claims.UserID)
			if err != nil {
				c.Logger().Errorf("load principal for user %d: %v", claims.UserID, err)
				principal = authz.Anonymous
			}
			c.Set(PrincipalContextKey, principal)
			return next(c)
		}
	}
}

// RequireRole lets the request through only when the caller holds role.
// Everyone else is sent home with a notice.
func RequireRole(role model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := authz.Authorize(CurrentPrincipal(c), role); err != nil {
				return redirectWithNotice(c, "/", NoticeError, PermissionDeniedNotice)
			}
			return next(c)
		}
	}
}
