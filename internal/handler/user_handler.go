package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"biblioteca/internal/errors"
	"biblioteca/internal/model"
	"biblioteca/internal/service"
)

// UserHandler serves the caller's own account.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// AccountResponse is the caller's account and role.
type AccountResponse struct {
	User      *model.User `json:"user"`
	FullName  string      `json:"full_name"`
	Role      model.Role  `json:"role,omitempty"`
	RoleLabel string      `json:"role_label,omitempty"`
	Messages  []Notice    `json:"messages"`
}

func newAccountResponse(user *model.User) AccountResponse {
	resp := AccountResponse{User: user, FullName: user.FullName()}
	if user.Profile != nil {
		resp.Role = user.Profile.Role
		resp.RoleLabel = user.Profile.Role.Label()
	}
	return resp
}

// Me godoc
// @Summary The caller's account
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} AccountResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /accounts/me/ [get]
func (h *UserHandler) Me(c echo.Context) error {
	principal := CurrentPrincipal(c)
	if !principal.Authenticated() {
		return respondError(c, errors.ErrUnauthenticated)
	}

	user, err := h.svc.GetUser(c.Request().Context(), principal.UserID)
	if err != nil {
		return respondError(c, err)
	}

	resp := newAccountResponse(user)
	resp.Messages = DrainNotices(c)
	return c.JSON(http.StatusOK, resp)
}

// UpdateMe godoc
// @Summary Update the caller's account
// @Tags auth
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param request body service.AccountInput true "Account"
// @Success 303 "Redirect to the account page"
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /accounts/me/ [post]
func (h *UserHandler) UpdateMe(c echo.Context) error {
	principal := CurrentPrincipal(c)
	if !principal.Authenticated() {
		return respondError(c, errors.ErrUnauthenticated)
	}

	var req service.AccountInput
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	if _, err := h.svc.UpdateAccount(c.Request().Context(), principal.UserID, req); err != nil {
		return respondError(c, err)
	}

	return redirectWithNotice(c, "/accounts/me/", NoticeSuccess, "Your account has been updated.")
}
