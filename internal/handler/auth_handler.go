package handler

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"biblioteca/internal/auth"
	"biblioteca/internal/errors"
	"biblioteca/internal/model"
	"biblioteca/internal/service"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService  service.AuthService
	cookieSecure bool
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		cookieSecure: cookieSecure,
	}
}

// RefreshRequest represents a token refresh request. The refresh_token
// cookie is used when the body leaves it empty.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

// LogoutRequest represents a logout request.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

// AuthResponse represents an authentication response.
type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	User         *model.User `json:"user,omitempty"`
}

// RegisterForm godoc
// @Summary Registration form
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /accounts/register/ [get]
func (h *AuthHandler) RegisterForm(c echo.Context) error {
	roles := make([]map[string]string, 0, len(model.Roles))
	for _, r := range model.Roles {
		roles = append(roles, map[string]string{"value": string(r), "label": r.Label()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"action":   "/accounts/register/",
		"fields":   []string{"username", "first_name", "last_name", "email", "password1", "password2", "role"},
		"roles":    roles,
		"messages": DrainNotices(c),
	})
}

// Register godoc
// @Summary Register a new user
// @Description Creates the account and its profile, then logs the user in.
// @Tags auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body service.RegisterInput true "Registration data"
// @Success 303 "Redirect home, logged in"
// @Failure 400 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /accounts/register/ [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	ctx := c.Request().Context()
	user, err := h.authService.Register(ctx, req)
	if err != nil {
		if stderrors.Is(err, service.ErrUserAlreadyExists) {
			verr := errors.NewValidationError()
			verr.Add("username", err.Error())
			return respondError(c, verr)
		}
		return respondError(c, err)
	}

	session, err := h.authService.IssueSession(ctx, user)
	if err != nil {
		return respondError(c, err)
	}
	h.setSessionCookies(c, session)

	c.Logger().Infof("user %d registered as %s", user.ID, req.Role)
	return redirectWithNotice(c, "/", NoticeSuccess, "You have registered successfully.")
}

// Login godoc
// @Summary Login user
// @Tags auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Param request body service.LoginInput true "Login credentials"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /accounts/login/ [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req service.LoginInput
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	session, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if stderrors.Is(err, service.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_CREDENTIALS",
			})
		}
		return respondError(c, err)
	}
	h.setSessionCookies(c, session)

	return c.JSON(http.StatusOK, AuthResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User:         session.User,
	})
}

// Refresh godoc
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest false "Refresh token"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /accounts/refresh/ [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	refreshToken := h.tokenFromRequest(c, req.RefreshToken)
	if refreshToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "refresh_token is required",
			Code:  "INVALID_REQUEST",
		})
	}

	accessToken, err := h.authService.RefreshToken(c.Request().Context(), refreshToken)
	if err != nil {
		if stderrors.Is(err, service.ErrInvalidRefreshToken) {
			return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_REFRESH_TOKEN",
			})
		}
		return respondError(c, err)
	}
	h.setCookie(c, accessTokenCookie, accessToken, auth.AccessTokenExpiry)

	return c.JSON(http.StatusOK, AuthResponse{
		AccessToken: accessToken,
	})
}

// Logout godoc
// @Summary Logout user
// @Description Revokes the refresh token, blacklists the access token, and clears the session cookies.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LogoutRequest false "Refresh token"
// @Success 303 "Redirect home"
// @Router /accounts/logout/ [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	var req LogoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	refreshToken := h.tokenFromRequest(c, req.RefreshToken)
	if err := h.authService.Logout(c.Request().Context(), refreshToken, CurrentClaims(c)); err != nil {
		if !stderrors.Is(err, service.ErrInvalidRefreshToken) {
			return respondError(c, err)
		}
		c.Logger().Warnf("logout with unusable refresh token: %v", err)
	}

	h.clearCookie(c, accessTokenCookie)
	h.clearCookie(c, refreshTokenCookie)
	return redirectWithNotice(c, "/", NoticeInfo, "You have been logged out.")
}

func (h *AuthHandler) tokenFromRequest(c echo.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if cookie, err := c.Cookie(refreshTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func (h *AuthHandler) setSessionCookies(c echo.Context, session *service.Session) {
	h.setCookie(c, accessTokenCookie, session.AccessToken, auth.AccessTokenExpiry)
	h.setCookie(c, refreshTokenCookie, session.RefreshToken, auth.RefreshTokenExpiry)
}

func (h *AuthHandler) setCookie(c echo.Context, name, value string, ttl time.Duration) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(c echo.Context, name string) {
	c.SetCookie(&http.Cookie{
		Name:     name,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
	})
}
