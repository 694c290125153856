package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "biblioteca/internal/errors"
	"biblioteca/internal/model"
	"biblioteca/internal/pagination"
	"biblioteca/internal/validation"
)

const (
	userA uint = 1
	userB uint = 2
)

type ledgerFixture struct {
	store   *memStore
	catalog CatalogService
	loans   *loanService
}

func newLedgerFixture() *ledgerFixture {
	store := newMemStore()
	loans := NewLoanService(fakeLoanRepo{store}).(*loanService)
	loans.now = stepClock(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	return &ledgerFixture{
		store:   store,
		catalog: NewCatalogService(fakeBookRepo{store}, fakeLoanRepo{store}, validation.New()),
		loans:   loans,
	}
}

func (f *ledgerFixture) addBook(t *testing.T, title string, stock int) *model.Book {
	t.Helper()
	book, err := f.catalog.Create(context.Background(), BookInput{
		Title:           title,
		Author:          "Author of " + title,
		PublicationYear: 1990,
		Stock:           stock,
	})
	require.NoError(t, err)
	return book
}

func (f *ledgerFixture) availableCount(t *testing.T, bookID uint) int64 {
	t.Helper()
	view, err := f.catalog.Get(context.Background(), bookID)
	require.NoError(t, err)
	return view.AvailableCount
}

func TestLoanService_SingleCopyScenario(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	book := f.addBook(t, "Pedro Páramo", 1)

	loanA, err := f.loans.Borrow(ctx, userA, book.ID)
	require.NoError(t, err)
	assert.True(t, loanA.IsActive())
	assert.Equal(t, book.ID, loanA.Book.ID)
	assert.Equal(t, int64(0), f.availableCount(t, book.ID))

	_, err = f.loans.Borrow(ctx, userB, book.ID)
	assert.ErrorIs(t, err, apperrors.ErrBookUnavailable)

	returned, changed, err := f.loans.Return(ctx, userA, loanA.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, returned.IsActive())
	assert.Equal(t, int64(1), f.availableCount(t, book.ID))

	loanB, err := f.loans.Borrow(ctx, userB, book.ID)
	require.NoError(t, err)
	assert.Equal(t, userB, loanB.UserID)
	assert.Equal(t, int64(0), f.availableCount(t, book.ID))
}

func TestLoanService_BorrowTwiceRejected(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	book := f.addBook(t, "Ficciones", 3)

	_, err := f.loans.Borrow(ctx, userA, book.ID)
	require.NoError(t, err)

	_, err = f.loans.Borrow(ctx, userA, book.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyBorrowed)
	assert.True(t, apperrors.IsBusinessRule(err))

	history, err := f.loans.ListForUser(ctx, userA, pagination.New("", pagination.LoansPerPage))
	require.NoError(t, err)
	assert.Len(t, history.Loans, 1)
	assert.Equal(t, int64(2), f.availableCount(t, book.ID))
}

func TestLoanService_BorrowUnknownBook(t *testing.T) {
	f := newLedgerFixture()
	_, err := f.loans.Borrow(context.Background(), userA, 404)
	assert.ErrorIs(t, err, apperrors.ErrBookNotFound)
}

func TestLoanService_DuplicateTimestampMapsToAlreadyBorrowed(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	book := f.addBook(t, "Aura", 2)

	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	f.loans.now = func() time.Time { return fixed }

	first, err := f.loans.Borrow(ctx, userA, book.ID)
	require.NoError(t, err)

	// Simulate a racing request that passed the checks before the first commit:
	// mark the first loan returned so the checks pass, then collide on the key.
	f.store.loans[first.ID].ReturnedAt = &fixed
	_, err = f.loans.Borrow(ctx, userA, book.ID)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyBorrowed)
}

func TestLoanService_ReturnScopedToOwnerAndActive(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	book := f.addBook(t, "Cien años de soledad", 2)

	loan, err := f.loans.Borrow(ctx, userA, book.ID)
	require.NoError(t, err)

	_, _, err = f.loans.Return(ctx, userB, loan.ID)
	assert.ErrorIs(t, err, apperrors.ErrLoanNotFound)

	_, _, err = f.loans.Return(ctx, userA, 999)
	assert.ErrorIs(t, err, apperrors.ErrLoanNotFound)

	_, changed, err := f.loans.Return(ctx, userA, loan.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	// Already returned loans are no longer found by the scoped lookup.
	_, _, err = f.loans.Return(ctx, userA, loan.ID)
	assert.ErrorIs(t, err, apperrors.ErrLoanNotFound)
}

func TestLoanService_ReturnRaceIsNoop(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	book := f.addBook(t, "La tregua", 1)

	loan, err := f.loans.Borrow(ctx, userA, book.ID)
	require.NoError(t, err)

	// A concurrent request returns the loan between lookup and lock.
	repo := racingLoanRepo{fakeLoanRepo: fakeLoanRepo{f.store}}
	svc := &loanService{loanRepo: repo, now: f.loans.now}

	returned, changed, err := svc.Return(ctx, userA, loan.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, *repo.returnedAt(loan.ID), *returned.ReturnedAt)
}

// racingLoanRepo returns the loan right after the owner lookup succeeds.
type racingLoanRepo struct {
	fakeLoanRepo
}

func (r racingLoanRepo) FindActiveOwned(ctx context.Context, loanID, userID uint) (*model.Loan, error) {
	loan, err := r.fakeLoanRepo.FindActiveOwned(ctx, loanID, userID)
	if err != nil {
		return nil, err
	}
	earlier := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)
	r.s.mu.Lock()
	r.s.loans[loanID].ReturnedAt = &earlier
	r.s.mu.Unlock()
	return loan, nil
}

func (r racingLoanRepo) returnedAt(loanID uint) *time.Time {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.loans[loanID].ReturnedAt
}

func TestLoanService_ListForUser(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()

	var loans []*model.Loan
	for i := 0; i < 12; i++ {
		book := f.addBook(t, string(rune('A'+i))+" title", 1)
		loan, err := f.loans.Borrow(ctx, userA, book.ID)
		require.NoError(t, err)
		loans = append(loans, loan)
	}
	other := f.addBook(t, "Other", 1)
	_, err := f.loans.Borrow(ctx, userB, other.ID)
	require.NoError(t, err)

	for _, l := range loans[:3] {
		_, _, err := f.loans.Return(ctx, userA, l.ID)
		require.NoError(t, err)
	}

	history, err := f.loans.ListForUser(ctx, userA, pagination.New("1", pagination.LoansPerPage))
	require.NoError(t, err)
	assert.Len(t, history.Loans, 10)
	assert.Equal(t, int64(12), history.Meta.Total)
	assert.True(t, history.Meta.HasNext)
	assert.Len(t, history.Active, 9)
	assert.Len(t, history.Returned, 3)

	// Newest first.
	assert.Equal(t, loans[11].ID, history.Loans[0].ID)
	for i := 1; i < len(history.Loans); i++ {
		assert.False(t, history.Loans[i].LoanedAt.After(history.Loans[i-1].LoanedAt))
	}
	for _, v := range history.Returned {
		assert.Equal(t, model.LoanStatusReturned, v.Status)
	}

	page2, err := f.loans.ListForUser(ctx, userA, pagination.New("2", pagination.LoansPerPage))
	require.NoError(t, err)
	assert.Len(t, page2.Loans, 2)
}

func TestLoanService_HasActiveLoan(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	book := f.addBook(t, "Rayuela", 1)

	held, err := f.loans.HasActiveLoan(ctx, userA, book.ID)
	require.NoError(t, err)
	assert.False(t, held)

	_, err = f.loans.Borrow(ctx, userA, book.ID)
	require.NoError(t, err)

	held, err = f.loans.HasActiveLoan(ctx, userA, book.ID)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestAvailableCountInvariant(t *testing.T) {
	f := newLedgerFixture()
	ctx := context.Background()
	book := f.addBook(t, "Don Quijote", 3)

	users := []uint{10, 11, 12, 13, 14}
	lent := 0
	for _, u := range users {
		_, err := f.loans.Borrow(ctx, u, book.ID)
		if err == nil {
			lent++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrBookUnavailable)
		}
		active, _ := fakeLoanRepo{f.store}.CountActiveByBook(ctx, book.ID)
		assert.Equal(t, int64(3)-active, f.availableCount(t, book.ID))
		assert.GreaterOrEqual(t, f.availableCount(t, book.ID), int64(0))
	}
	assert.Equal(t, 3, lent)
}
