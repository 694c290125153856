package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"biblioteca/internal/errors"
	"biblioteca/internal/model"
	"biblioteca/internal/pagination"
	"biblioteca/internal/service"
)

const bookListPath = "/libros/"

// BookHandler handles catalog endpoints.
type BookHandler struct {
	catalogService service.CatalogService
	loanService    service.LoanService
}

// NewBookHandler creates a new book handler.
func NewBookHandler(catalogService service.CatalogService, loanService service.LoanService) *BookHandler {
	return &BookHandler{
		catalogService: catalogService,
		loanService:    loanService,
	}
}

// BookListResponse is one page of the catalog.
type BookListResponse struct {
	*service.BookPage
	Messages []Notice `json:"messages"`
}

// BookDetailResponse is a single book. AlreadyBorrowed is only set for
// logged-in callers.
type BookDetailResponse struct {
	Book            *service.BookView `json:"book"`
	AlreadyBorrowed *bool             `json:"already_borrowed,omitempty"`
	Messages        []Notice          `json:"messages"`
}

// BookFormResponse describes the book form: where to post it and its
// initial values.
type BookFormResponse struct {
	Action  string            `json:"action"`
	Initial service.BookInput `json:"initial"`
	MinYear int               `json:"min_year"`
	MaxYear int               `json:"max_year"`
}

// BookDeleteResponse asks the caller to confirm a deletion.
type BookDeleteResponse struct {
	Action string      `json:"action"`
	Book   *model.Book `json:"book"`
}

// List godoc
// @Summary List books
// @Tags catalog
// @Produce json
// @Param search query string false "Title or author fragment"
// @Param page query int false "Page number"
// @Success 200 {object} BookListResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /libros/ [get]
func (h *BookHandler) List(c echo.Context) error {
	page := pagination.New(c.QueryParam("page"), pagination.BooksPerPage)
	result, err := h.catalogService.List(c.Request().Context(), c.QueryParam("search"), page)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, BookListResponse{
		BookPage: result,
		Messages: DrainNotices(c),
	})
}

// Detail godoc
// @Summary Get a book
// @Tags catalog
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} BookDetailResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /libros/{id}/ [get]
func (h *BookHandler) Detail(c echo.Context) error {
	id, err := idParam(c, "id", errors.ErrBookNotFound)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	book, err := h.catalogService.Get(ctx, id)
	if err != nil {
		return respondError(c, err)
	}

	resp := BookDetailResponse{Book: book}
	if p := CurrentPrincipal(c); p.Authenticated() {
		held, err := h.loanService.HasActiveLoan(ctx, p.UserID, id)
		if err != nil {
			return respondError(c, err)
		}
		resp.AlreadyBorrowed = &held
	}
	resp.Messages = DrainNotices(c)

	return c.JSON(http.StatusOK, resp)
}

// CreateForm godoc
// @Summary Book creation form
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} BookFormResponse
// @Success 303 "Redirect home when not an administrator"
// @Router /libros/crear/ [get]
func (h *BookHandler) CreateForm(c echo.Context) error {
	return c.JSON(http.StatusOK, BookFormResponse{
		Action:  "/libros/crear/",
		Initial: service.BookInput{Stock: 1},
		MinYear: model.MinPublicationYear,
		MaxYear: model.MaxPublicationYear,
	})
}

// Create godoc
// @Summary Create a book
// @Tags catalog
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param request body service.BookInput true "Book"
// @Success 303 "Redirect to the book list"
// @Failure 400 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /libros/crear/ [post]
func (h *BookHandler) Create(c echo.Context) error {
	var req service.BookInput
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	book, err := h.catalogService.Create(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}

	c.Logger().Infof("book %d created: %s", book.ID, book)
	return redirectWithNotice(c, bookListPath, NoticeSuccess, "Book created successfully.")
}

// EditForm godoc
// @Summary Book edit form
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} BookFormResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /libros/{id}/editar/ [get]
func (h *BookHandler) EditForm(c echo.Context) error {
	id, err := idParam(c, "id", errors.ErrBookNotFound)
	if err != nil {
		return err
	}

	book, err := h.catalogService.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, BookFormResponse{
		Action: fmt.Sprintf("/libros/%d/editar/", id),
		Initial: service.BookInput{
			Title:           book.Title,
			Author:          book.Author,
			PublicationYear: book.PublicationYear,
			Stock:           int(book.Stock),
		},
		MinYear: model.MinPublicationYear,
		MaxYear: model.MaxPublicationYear,
	})
}

// Update godoc
// @Summary Update a book
// @Tags catalog
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param request body service.BookInput true "Book"
// @Success 303 "Redirect to the book list"
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /libros/{id}/editar/ [post]
func (h *BookHandler) Update(c echo.Context) error {
	id, err := idParam(c, "id", errors.ErrBookNotFound)
	if err != nil {
		return err
	}

	var req service.BookInput
	if err := c.Bind(&req); err != nil {
		return badRequest()
	}

	if _, err := h.catalogService.Update(c.Request().Context(), id, req); err != nil {
		return respondError(c, err)
	}

	return redirectWithNotice(c, bookListPath, NoticeSuccess, "Book updated successfully.")
}

// DeleteConfirm godoc
// @Summary Book deletion confirmation
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} BookDeleteResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /libros/{id}/eliminar/ [get]
func (h *BookHandler) DeleteConfirm(c echo.Context) error {
	id, err := idParam(c, "id", errors.ErrBookNotFound)
	if err != nil {
		return err
	}

	book, err := h.catalogService.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, BookDeleteResponse{
		Action: fmt.Sprintf("/libros/%d/eliminar/", id),
		Book:   &book.Book,
	})
}

// Delete godoc
// @Summary Delete a book
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 303 "Redirect to the book list"
// @Failure 404 {object} errors.ErrorResponse
// @Router /libros/{id}/eliminar/ [post]
func (h *BookHandler) Delete(c echo.Context) error {
	id, err := idParam(c, "id", errors.ErrBookNotFound)
	if err != nil {
		return err
	}

	book, err := h.catalogService.Delete(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	c.Logger().Infof("book %d deleted: %s", book.ID, book)
	return redirectWithNotice(c, bookListPath, NoticeSuccess, "Book deleted successfully.")
}
