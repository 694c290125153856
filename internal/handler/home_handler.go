package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"biblioteca/internal/service"
)

// HomeHandler serves the landing page.
type HomeHandler struct {
	catalogService service.CatalogService
}

// NewHomeHandler creates a new home handler.
func NewHomeHandler(catalogService service.CatalogService) *HomeHandler {
	return &HomeHandler{catalogService: catalogService}
}

// HomeResponse is the dashboard plus any pending notices.
type HomeResponse struct {
	*service.Dashboard
	Authenticated bool     `json:"authenticated"`
	Messages      []Notice `json:"messages"`
}

// Index godoc
// @Summary Library dashboard
// @Tags catalog
// @Produce json
// @Success 200 {object} HomeResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router / [get]
func (h *HomeHandler) Index(c echo.Context) error {
	dashboard, err := h.catalogService.Dashboard(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, HomeResponse{
		Dashboard:     dashboard,
		Authenticated: CurrentPrincipal(c).Authenticated(),
		Messages:      DrainNotices(c),
	})
}
