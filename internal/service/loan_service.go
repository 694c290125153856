package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "biblioteca/internal/errors"
	"biblioteca/internal/model"
	"biblioteca/internal/pagination"
	"biblioteca/internal/repository"
)

// LoanView is a loan with its derived state for display.
type LoanView struct {
	model.Loan
	Status     model.LoanStatus `json:"status"`
	DaysOnLoan int              `json:"days_on_loan"`
}

func newLoanView(loan model.Loan, now time.Time) LoanView {
	return LoanView{
		Loan:       loan,
		Status:     loan.Status(),
		DaysOnLoan: loan.DaysOnLoan(now),
	}
}

func newLoanViews(loans []model.Loan, now time.Time) []LoanView {
	views := make([]LoanView, 0, len(loans))
	for _, l := range loans {
		views = append(views, newLoanView(l, now))
	}
	return views
}

// LoanHistory is a user's paginated loan list plus its active/returned split.
type LoanHistory struct {
	Loans    []LoanView      `json:"loans"`
	Meta     pagination.Meta `json:"meta"`
	Active   []LoanView      `json:"active"`
	Returned []LoanView      `json:"returned"`
}

// LoanService handles borrowing and returning books.
type LoanService interface {
	Borrow(ctx context.Context, userID, bookID uint) (*model.Loan, error)
	Return(ctx context.Context, userID, loanID uint) (loan *model.Loan, changed bool, err error)
	ListForUser(ctx context.Context, userID uint, page pagination.Params) (*LoanHistory, error)
	HasActiveLoan(ctx context.Context, userID, bookID uint) (bool, error)
}

type loanService struct {
	loanRepo repository.LoanRepository
	now      func() time.Time
}

// NewLoanService creates a new loan service.
func NewLoanService(loanRepo repository.LoanRepository) LoanService {
	return &loanService{
		loanRepo: loanRepo,
		now:      time.Now,
	}
}

// Borrow lends a copy of the book to the user.
//
// The book row is locked for the duration of the transaction so the
// duplicate and stock checks cannot interleave with another borrow of the
// same book. The (user, book, loaned_at) unique index remains as a backstop.
func (s *loanService) Borrow(ctx context.Context, userID, bookID uint) (*model.Loan, error) {
	var loan *model.Loan

	err := s.loanRepo.WithTransaction(ctx, func(ctx context.Context, txRepo repository.LoanRepository) error {
		book, err := txRepo.FindBookForUpdate(ctx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrBookNotFound
			}
			return fmt.Errorf("lock book: %w", err)
		}

		held, err := txRepo.ExistsActive(ctx, userID, bookID)
		if err != nil {
			return fmt.Errorf("check active loan: %w", err)
		}
		if held {
			return apperrors.ErrAlreadyBorrowed
		}

		borrowed, err := txRepo.CountActiveByBook(ctx, bookID)
		if err != nil {
			return fmt.Errorf("count active loans: %w", err)
		}
		if !model.NewAvailability(book.Stock, borrowed).CanLend() {
			return apperrors.ErrBookUnavailable
		}

		loan = &model.Loan{
			UserID:   userID,
			BookID:   bookID,
			LoanedAt: s.now(),
		}
		if err := txRepo.Create(ctx, loan); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.ErrAlreadyBorrowed
			}
			return fmt.Errorf("create loan: %w", err)
		}
		loan.Book = book
		return nil
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// Return closes an active loan owned by the user. Loans that do not exist,
// belong to someone else, or are already returned yield ErrLoanNotFound.
// changed is false when a concurrent return got there first.
func (s *loanService) Return(ctx context.Context, userID, loanID uint) (*model.Loan, bool, error) {
	owned, err := s.loanRepo.FindActiveOwned(ctx, loanID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, apperrors.ErrLoanNotFound
		}
		return nil, false, fmt.Errorf("find loan: %w", err)
	}

	var (
		loan    *model.Loan
		changed bool
	)
	err = s.loanRepo.WithTransaction(ctx, func(ctx context.Context, txRepo repository.LoanRepository) error {
		locked, err := txRepo.FindForUpdate(ctx, owned.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrLoanNotFound
			}
			return fmt.Errorf("lock loan: %w", err)
		}

		loan = locked
		if changed = locked.Return(s.now()); !changed {
			return nil
		}
		if err := txRepo.Save(ctx, locked); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	loan.Book = owned.Book
	return loan, changed, nil
}

// ListForUser returns the user's loans newest first, paginated, with the
// full active and returned partitions.
func (s *loanService) ListForUser(ctx context.Context, userID uint, page pagination.Params) (*LoanHistory, error) {
	loans, total, err := s.loanRepo.ListByUser(ctx, userID, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}
	active, err := s.loanRepo.ListByUserAndStatus(ctx, userID, model.LoanStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}
	returned, err := s.loanRepo.ListByUserAndStatus(ctx, userID, model.LoanStatusReturned)
	if err != nil {
		return nil, fmt.Errorf("list returned loans: %w", err)
	}

	now := s.now()
	return &LoanHistory{
		Loans:    newLoanViews(loans, now),
		Meta:     pagination.BuildMeta(total, page),
		Active:   newLoanViews(active, now),
		Returned: newLoanViews(returned, now),
	}, nil
}

// HasActiveLoan reports whether the user currently holds the book.
func (s *loanService) HasActiveLoan(ctx context.Context, userID, bookID uint) (bool, error) {
	held, err := s.loanRepo.ExistsActive(ctx, userID, bookID)
	if err != nil {
		return false, fmt.Errorf("check active loan: %w", err)
	}
	return held, nil
}
