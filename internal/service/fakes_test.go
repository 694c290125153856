package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"biblioteca/internal/model"
	"biblioteca/internal/repository"
)

// memStore is an in-memory stand-in for the books and loans tables.
type memStore struct {
	mu       sync.Mutex
	books    map[uint]*model.Book
	loans    map[uint]*model.Loan
	nextBook uint
	nextLoan uint
}

func newMemStore() *memStore {
	return &memStore{
		books: map[uint]*model.Book{},
		loans: map[uint]*model.Loan{},
	}
}

type fakeBookRepo struct{ s *memStore }
type fakeLoanRepo struct{ s *memStore }

var (
	_ repository.BookRepository = fakeBookRepo{}
	_ repository.LoanRepository = fakeLoanRepo{}
)

func (r fakeBookRepo) Create(_ context.Context, book *model.Book) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nextBook++
	book.ID = r.s.nextBook
	book.CreatedAt = time.Now().Add(time.Duration(book.ID) * time.Millisecond)
	cp := *book
	r.s.books[book.ID] = &cp
	return nil
}

func (r fakeBookRepo) Update(_ context.Context, book *model.Book) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.books[book.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *book
	r.s.books[book.ID] = &cp
	return nil
}

func (r fakeBookRepo) Delete(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.books[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.s.books, id)
	for lid, l := range r.s.loans {
		if l.BookID == id {
			delete(r.s.loans, lid)
		}
	}
	return nil
}

func (r fakeBookRepo) FindByID(_ context.Context, id uint) (*model.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.books[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

func (r fakeBookRepo) FindByTitleAndAuthor(_ context.Context, title, author string) (*model.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *model.Book
	for _, b := range r.s.books {
		if strings.EqualFold(b.Title, strings.TrimSpace(title)) && strings.EqualFold(b.Author, strings.TrimSpace(author)) {
			if found == nil || b.ID < found.ID {
				found = b
			}
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *found
	return &cp, nil
}

func (r fakeBookRepo) Search(_ context.Context, query string, limit, offset int) ([]model.Book, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q := strings.ToLower(query)
	var matched []model.Book
	for _, b := range r.s.books {
		if q == "" || strings.Contains(strings.ToLower(b.Title), q) || strings.Contains(strings.ToLower(b.Author), q) {
			matched = append(matched, *b)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Title < matched[j].Title })
	total := int64(len(matched))
	if offset > len(matched) {
		offset = len(matched)
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r fakeBookRepo) Count(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.books)), nil
}

func (r fakeBookRepo) CountInStock(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, b := range r.s.books {
		if b.Stock > 0 {
			n++
		}
	}
	return n, nil
}

func (r fakeBookRepo) Recent(_ context.Context, n int) ([]model.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []model.Book
	for _, b := range r.s.books {
		all = append(all, *b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (r fakeLoanRepo) Create(_ context.Context, loan *model.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.loans {
		if l.UserID == loan.UserID && l.BookID == loan.BookID && l.LoanedAt.Equal(loan.LoanedAt) {
			return gorm.ErrDuplicatedKey
		}
	}
	r.s.nextLoan++
	loan.ID = r.s.nextLoan
	cp := *loan
	cp.Book = nil
	r.s.loans[loan.ID] = &cp
	return nil
}

func (r fakeLoanRepo) Save(_ context.Context, loan *model.Loan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *loan
	cp.Book = nil
	r.s.loans[loan.ID] = &cp
	return nil
}

func (r fakeLoanRepo) ExistsActive(_ context.Context, userID, bookID uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.loans {
		if l.UserID == userID && l.BookID == bookID && l.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeLoanRepo) CountActive(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, l := range r.s.loans {
		if l.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r fakeLoanRepo) CountActiveByBook(_ context.Context, bookID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.activeOn(bookID), nil
}

func (r fakeLoanRepo) CountActiveByBooks(_ context.Context, bookIDs []uint) (map[uint]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[uint]int64{}
	for _, id := range bookIDs {
		if n := r.s.activeOn(id); n > 0 {
			counts[id] = n
		}
	}
	return counts, nil
}

func (r fakeLoanRepo) FindActiveOwned(_ context.Context, loanID, userID uint) (*model.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.loans[loanID]
	if !ok || l.UserID != userID || !l.IsActive() {
		return nil, gorm.ErrRecordNotFound
	}
	return r.s.withBook(l), nil
}

func (r fakeLoanRepo) ListByUser(_ context.Context, userID uint, limit, offset int) ([]model.Loan, int64, error) {
	all := r.userLoans(userID, func(*model.Loan) bool { return true })
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r fakeLoanRepo) ListByUserAndStatus(_ context.Context, userID uint, status model.LoanStatus) ([]model.Loan, error) {
	return r.userLoans(userID, func(l *model.Loan) bool { return l.Status() == status }), nil
}

func (r fakeLoanRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo repository.LoanRepository) error) error {
	return fn(ctx, r)
}

func (r fakeLoanRepo) FindBookForUpdate(_ context.Context, bookID uint) (*model.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.books[bookID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *b
	return &cp, nil
}

func (r fakeLoanRepo) FindForUpdate(_ context.Context, loanID uint) (*model.Loan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.loans[loanID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (r fakeLoanRepo) userLoans(userID uint, keep func(*model.Loan) bool) []model.Loan {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.Loan
	for _, l := range r.s.loans {
		if l.UserID == userID && keep(l) {
			out = append(out, *r.s.withBook(l))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LoanedAt.Equal(out[j].LoanedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].LoanedAt.After(out[j].LoanedAt)
	})
	return out
}

func (s *memStore) activeOn(bookID uint) int64 {
	var n int64
	for _, l := range s.loans {
		if l.BookID == bookID && l.IsActive() {
			n++
		}
	}
	return n
}

func (s *memStore) withBook(l *model.Loan) *model.Loan {
	cp := *l
	if b, ok := s.books[l.BookID]; ok {
		bc := *b
		cp.Book = &bc
	}
	return &cp
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

// memAccounts is an in-memory stand-in for the users and profiles tables.
type memAccounts struct {
	mu       sync.Mutex
	users    map[uint]*model.User
	profiles []*model.UserProfile
	nextUser uint
}

func newMemAccounts() *memAccounts {
	return &memAccounts{users: map[uint]*model.User{}}
}

type fakeUserRepo struct{ s *memAccounts }
type fakeProfileRepo struct{ s *memAccounts }

var (
	_ repository.UserRepository    = fakeUserRepo{}
	_ repository.ProfileRepository = fakeProfileRepo{}
)

func (r fakeUserRepo) CreateWithProfile(_ context.Context, user *model.User, role model.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	r.s.nextUser++
	user.ID = r.s.nextUser
	cp := *user
	r.s.users[user.ID] = &cp
	profile := model.NewUserProfile(user.ID, role)
	r.s.profiles = append(r.s.profiles, profile)
	pc := *profile
	user.Profile = &pc
	return nil
}

func (r fakeUserRepo) Update(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r fakeUserRepo) FindByID(_ context.Context, id uint) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r fakeProfileRepo) FindByUserID(_ context.Context, userID uint) (*model.UserProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.profiles {
		if p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memAccounts) profileCount(userID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.profiles {
		if p.UserID == userID {
			n++
		}
	}
	return n
}
