package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"biblioteca/internal/model"
)

// LoanRepository defines loan persistence operations.
type LoanRepository interface {
	Create(ctx context.Context, loan *model.Loan) error
	Save(ctx context.Context, loan *model.Loan) error
	ExistsActive(ctx context.Context, userID, bookID uint) (bool, error)
	CountActive(ctx context.Context) (int64, error)
	CountActiveByBook(ctx context.Context, bookID uint) (int64, error)
	CountActiveByBooks(ctx context.Context, bookIDs []uint) (map[uint]int64, error)
	FindActiveOwned(ctx context.Context, loanID, userID uint) (*model.Loan, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]model.Loan, int64, error)
	ListByUserAndStatus(ctx context.Context, userID uint, status model.LoanStatus) ([]model.Loan, error)
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo LoanRepository) error) error
	FindBookForUpdate(ctx context.Context, bookID uint) (*model.Book, error)
	FindForUpdate(ctx context.Context, loanID uint) (*model.Loan, error)
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository.
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

// Create inserts a new loan.
func (r *loanRepository) Create(ctx context.Context, loan *model.Loan) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(loan).Error
}

// Save persists changes to an existing loan.
func (r *loanRepository) Save(ctx context.Context, loan *model.Loan) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(loan).Error
}

// ExistsActive reports whether the user holds an active loan for the book.
func (r *loanRepository) ExistsActive(ctx context.Context, userID, bookID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Loan{}).
		Where("user_id = ? AND book_id = ? AND returned_at IS NULL", userID, bookID).
		Count(&n).Error
	return n > 0, err
}

// CountActive returns the number of loans not yet returned.
func (r *loanRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Loan{}).Where("returned_at IS NULL").Count(&n).Error
	return n, err
}

// CountActiveByBook returns the number of active loans on a book.
func (r *loanRepository) CountActiveByBook(ctx context.Context, bookID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Loan{}).
		Where("book_id = ? AND returned_at IS NULL", bookID).
		Count(&n).Error
	return n, err
}

// CountActiveByBooks returns active loan counts keyed by book ID. Books
// without active loans are absent from the map.
func (r *loanRepository) CountActiveByBooks(ctx context.Context, bookIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(bookIDs))
	if len(bookIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		BookID uint
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&model.Loan{}).
		Select("book_id, COUNT(*) AS total").
		Where("book_id IN ? AND returned_at IS NULL", bookIDs).
		Group("book_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.BookID] = row.Total
	}
	return counts, nil
}

// FindActiveOwned finds an active loan by ID that belongs to the user.
func (r *loanRepository) FindActiveOwned(ctx context.Context, loanID, userID uint) (*model.Loan, error) {
	var loan model.Loan
	err := r.db.WithContext(ctx).Preload("Book").
		Where("id = ? AND user_id = ? AND returned_at IS NULL", loanID, userID).
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// ListByUser returns one page of the user's loans, newest first, and the total.
func (r *loanRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]model.Loan, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Loan{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var loans []model.Loan
	err := r.db.WithContext(ctx).Preload("Book").
		Where("user_id = ?", userID).
		Order("loaned_at DESC").Order("id DESC").
		Limit(limit).Offset(offset).
		Find(&loans).Error
	if err != nil {
		return nil, 0, err
	}
	return loans, total, nil
}

// ListByUserAndStatus returns every active or every returned loan of the user, newest first.
func (r *loanRepository) ListByUserAndStatus(ctx context.Context, userID uint, status model.LoanStatus) ([]model.Loan, error) {
	q := r.db.WithContext(ctx).Preload("Book").Where("user_id = ?", userID)
	if status == model.LoanStatusActive {
		q = q.Where("returned_at IS NULL")
	} else {
		q = q.Where("returned_at IS NOT NULL")
	}

	var loans []model.Loan
	if err := q.Order("loaned_at DESC").Order("id DESC").Find(&loans).Error; err != nil {
		return nil, err
	}
	return loans, nil
}

// WithTransaction executes a function within a database transaction.
func (r *loanRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo LoanRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &loanRepository{db: tx}
		return fn(ctx, txRepo)
	})
}

// FindBookForUpdate loads a book with a row-level lock so concurrent borrows
// of the same title serialize on it.
func (r *loanRepository) FindBookForUpdate(ctx context.Context, bookID uint) (*model.Book, error) {
	var book model.Book
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&book, bookID).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// FindForUpdate loads a loan with a row-level lock.
func (r *loanRepository) FindForUpdate(ctx context.Context, loanID uint) (*model.Loan, error) {
	var loan model.Loan
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&loan, loanID).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}
