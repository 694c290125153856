package handler

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"biblioteca/internal/errors"
	"biblioteca/internal/pagination"
	"biblioteca/internal/service"
)

const myLoansPath = "/mis-prestamos/"

// LoanHandler handles borrowing, returning, and loan history.
type LoanHandler struct {
	loanService service.LoanService
}

// NewLoanHandler creates a new loan handler.
func NewLoanHandler(loanService service.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// MyLoansResponse is the caller's loan history.
type MyLoansResponse struct {
	*service.LoanHistory
	Messages []Notice `json:"messages"`
}

// Borrow godoc
// @Summary Borrow a book
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param book_id path int true "Book ID"
// @Success 303 "Redirect to the caller's loans with a notice"
// @Failure 404 {object} errors.ErrorResponse
// @Router /prestar/{book_id}/ [post]
func (h *LoanHandler) Borrow(c echo.Context) error {
	bookID, err := idParam(c, "book_id", errors.ErrBookNotFound)
	if err != nil {
		return err
	}

	principal := CurrentPrincipal(c)
	loan, err := h.loanService.Borrow(c.Request().Context(), principal.UserID, bookID)
	if err != nil {
		if errors.IsBusinessRule(err) {
			return redirectWithNotice(c, myLoansPath, NoticeError, ruleNotice(err))
		}
		return respondError(c, err)
	}

	return redirectWithNotice(c, myLoansPath, NoticeSuccess,
		fmt.Sprintf("You have borrowed %q successfully.", loan.Book.Title))
}

// Return godoc
// @Summary Return a borrowed book
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param loan_id path int true "Loan ID"
// @Success 303 "Redirect to the caller's loans with a notice"
// @Failure 404 {object} errors.ErrorResponse
// @Router /devolver/{loan_id}/ [post]
func (h *LoanHandler) Return(c echo.Context) error {
	loanID, err := idParam(c, "loan_id", errors.ErrLoanNotFound)
	if err != nil {
		return err
	}

	principal := CurrentPrincipal(c)
	loan, changed, err := h.loanService.Return(c.Request().Context(), principal.UserID, loanID)
	if err != nil {
		return respondError(c, err)
	}
	if !changed {
		c.Logger().Warnf("loan %d was already returned", loan.ID)
	}

	title := ""
	if loan.Book != nil {
		title = loan.Book.Title
	}
	return redirectWithNotice(c, myLoansPath, NoticeSuccess,
		fmt.Sprintf("You have returned %q successfully.", title))
}

// MyLoans godoc
// @Summary The caller's loans
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Success 200 {object} MyLoansResponse
// @Router /mis-prestamos/ [get]
func (h *LoanHandler) MyLoans(c echo.Context) error {
	principal := CurrentPrincipal(c)
	page := pagination.New(c.QueryParam("page"), pagination.LoansPerPage)

	history, err := h.loanService.ListForUser(c.Request().Context(), principal.UserID, page)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, MyLoansResponse{
		LoanHistory: history,
		Messages:    DrainNotices(c),
	})
}

// ruleNotice turns a loan rule violation into a sentence for the caller.
func ruleNotice(err error) string {
	if stderrors.Is(err, errors.ErrAlreadyBorrowed) {
		return "You already have this book on loan."
	}
	return "This book is not available."
}
