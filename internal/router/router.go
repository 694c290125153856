package router

import (
	"errors"
	"net/http"
	"strings"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"biblioteca/docs"
	"biblioteca/internal/auth"
	"biblioteca/internal/config"
	apperrors "biblioteca/internal/errors"
	"biblioteca/internal/handler"
	"biblioteca/internal/model"
	"biblioteca/internal/service"
	"biblioteca/internal/validation"
)

var errTokenRevoked = errors.New("token has been revoked")

// Handlers groups the request handlers wired by Register.
type Handlers struct {
	Home *handler.HomeHandler
	Book *handler.BookHandler
	Loan *handler.LoanHandler
	Auth *handler.AuthHandler
	User *handler.UserHandler
}

// Deps are the services the middleware chain needs.
type Deps struct {
	AuthService  service.AuthService
	JWTService   *auth.JWTService
	TokenStore   auth.TokenStoreInterface
	LoginLimiter middleware.RateLimiterStore
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, h Handlers, deps Deps) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Validator = &CustomValidator{validator: validation.New()}

	// Every route sees the caller when a valid token is present; routes that
	// need a role enforce it with RequireRole.
	e.Use(echojwt.WithConfig(echojwt.Config{
		TokenLookup:            "header:" + echo.HeaderAuthorization + ":Bearer ,cookie:access_token",
		ContextKey:             handler.ClaimsContextKey,
		ParseTokenFunc:         parseAccessToken(deps.JWTService, deps.TokenStore),
		ContinueOnIgnoredError: true,
		ErrorHandler: func(c echo.Context, err error) error {
			return nil
		},
	}))
	e.Use(handler.Authenticate(deps.AuthService))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	if cfg.SwaggerHost != "" {
		host := strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
		docs.SwaggerInfo.Host = strings.TrimSuffix(host, "/")
	}
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	admin := handler.RequireRole(model.RoleAdministrator)
	regular := handler.RequireRole(model.RoleRegular)
	throttled := loginRateLimiter(deps.LoginLimiter)

	// Catalog
	e.GET("/", h.Home.Index)
	e.GET("/libros/", h.Book.List)
	e.GET("/libros/crear/", h.Book.CreateForm, admin)
	e.POST("/libros/crear/", h.Book.Create, admin)
	e.GET("/libros/:id/", h.Book.Detail)
	e.GET("/libros/:id/editar/", h.Book.EditForm, admin)
	e.POST("/libros/:id/editar/", h.Book.Update, admin)
	e.GET("/libros/:id/eliminar/", h.Book.DeleteConfirm, admin)
	e.POST("/libros/:id/eliminar/", h.Book.Delete, admin)

	// Loans
	e.POST("/prestar/:book_id/", h.Loan.Borrow, regular)
	e.POST("/devolver/:loan_id/", h.Loan.Return, regular)
	e.GET("/mis-prestamos/", h.Loan.MyLoans, regular)

	// Accounts
	accounts := e.Group("/accounts")
	accounts.GET("/register/", h.Auth.RegisterForm)
	accounts.POST("/register/", h.Auth.Register, throttled)
	accounts.POST("/login/", h.Auth.Login, throttled)
	accounts.POST("/logout/", h.Auth.Logout)
	accounts.POST("/refresh/", h.Auth.Refresh)
	accounts.GET("/me/", h.User.Me)
	accounts.POST("/me/", h.User.UpdateMe)
}

// parseAccessToken validates the token and rejects blacklisted ones.
func parseAccessToken(jwtService *auth.JWTService, tokens auth.TokenStoreInterface) func(echo.Context, string) (interface{}, error) {
	return func(c echo.Context, token string) (interface{}, error) {
		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			return nil, err
		}
		revoked, err := tokens.IsAccessTokenBlacklisted(c.Request().Context(), claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, errTokenRevoked
		}
		return claims, nil
	}
}

func loginRateLimiter(store middleware.RateLimiterStore) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, apperrors.ErrorResponse{
				Error: "too many attempts, try again later",
				Code:  "RATE_LIMITED",
			})
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validation.Validator
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
