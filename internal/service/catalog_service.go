package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	apperrors "biblioteca/internal/errors"
	"biblioteca/internal/model"
	"biblioteca/internal/pagination"
	"biblioteca/internal/repository"
	"biblioteca/internal/validation"
)

// recentBooksOnDashboard is how many newly added books the home page shows.
const recentBooksOnDashboard = 5

// BookInput is the create/update form of a book.
type BookInput struct {
	Title           string `json:"title" form:"title" validate:"required,max=200"`
	Author          string `json:"author" form:"author" validate:"required,max=100"`
	PublicationYear int    `json:"publication_year" form:"publication_year" validate:"min=1000,max=2030"`
	Stock           int    `json:"stock" form:"stock" validate:"min=1"`
}

func (in *BookInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
}

func (in BookInput) apply(book *model.Book) {
	book.Title = in.Title
	book.Author = in.Author
	book.PublicationYear = in.PublicationYear
	book.Stock = uint(in.Stock)
}

// BookView is a book with its availability computed at read time.
type BookView struct {
	model.Book
	Available      bool  `json:"available"`
	BorrowedCount  int64 `json:"borrowed_count"`
	AvailableCount int64 `json:"available_count"`
}

func newBookView(book model.Book, a model.Availability) BookView {
	return BookView{
		Book:           book,
		Available:      book.Available(),
		BorrowedCount:  a.BorrowedCount,
		AvailableCount: a.AvailableCount,
	}
}

// BookPage is one page of a catalog search.
type BookPage struct {
	Books  []BookView      `json:"books"`
	Search string          `json:"search"`
	Meta   pagination.Meta `json:"meta"`
}

// Dashboard holds the home page counters.
type Dashboard struct {
	TotalBooks     int64        `json:"total_books"`
	AvailableBooks int64        `json:"available_books"`
	ActiveLoans    int64        `json:"active_loans"`
	RecentBooks    []model.Book `json:"recent_books"`
}

// CatalogService handles book catalog operations.
type CatalogService interface {
	List(ctx context.Context, search string, page pagination.Params) (*BookPage, error)
	Get(ctx context.Context, id uint) (*BookView, error)
	FindByTitleAndAuthor(ctx context.Context, title, author string) (*model.Book, error)
	Create(ctx context.Context, in BookInput) (*model.Book, error)
	Update(ctx context.Context, id uint, in BookInput) (*model.Book, error)
	Delete(ctx context.Context, id uint) (*model.Book, error)
	Availability(ctx context.Context, book *model.Book) (model.Availability, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
}

type catalogService struct {
	bookRepo  repository.BookRepository
	loanRepo  repository.LoanRepository
	validator *validation.Validator
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(bookRepo repository.BookRepository, loanRepo repository.LoanRepository, validator *validation.Validator) CatalogService {
	return &catalogService{
		bookRepo:  bookRepo,
		loanRepo:  loanRepo,
		validator: validator,
	}
}

// List searches title and author and annotates each book with its availability.
func (s *catalogService) List(ctx context.Context, search string, page pagination.Params) (*BookPage, error) {
	search = strings.TrimSpace(search)
	books, total, err := s.bookRepo.Search(ctx, search, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}

	ids := make([]uint, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	borrowed, err := s.loanRepo.CountActiveByBooks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("count active loans: %w", err)
	}

	views := make([]BookView, 0, len(books))
	for _, b := range books {
		views = append(views, newBookView(b, model.NewAvailability(b.Stock, borrowed[b.ID])))
	}

	return &BookPage{
		Books:  views,
		Search: search,
		Meta:   pagination.BuildMeta(total, page),
	}, nil
}

// Get returns a book with its availability.
func (s *catalogService) Get(ctx context.Context, id uint) (*BookView, error) {
	book, err := s.findBook(ctx, id)
	if err != nil {
		return nil, err
	}
	a, err := s.Availability(ctx, book)
	if err != nil {
		return nil, err
	}
	view := newBookView(*book, a)
	return &view, nil
}

// FindByTitleAndAuthor returns the book with exactly this title and author,
// case-insensitively, or ErrBookNotFound.
func (s *catalogService) FindByTitleAndAuthor(ctx context.Context, title, author string) (*model.Book, error) {
	book, err := s.bookRepo.FindByTitleAndAuthor(ctx, title, author)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBookNotFound
		}
		return nil, fmt.Errorf("find book: %w", err)
	}
	return book, nil
}

// Create validates and stores a new book. Nothing is written on validation failure.
func (s *catalogService) Create(ctx context.Context, in BookInput) (*model.Book, error) {
	in.normalize()
	if err := s.validator.Struct(&in); err != nil {
		return nil, err
	}

	book := &model.Book{}
	in.apply(book)
	if err := s.bookRepo.Create(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	return book, nil
}

// Update validates and overwrites an existing book.
func (s *catalogService) Update(ctx context.Context, id uint, in BookInput) (*model.Book, error) {
	book, err := s.findBook(ctx, id)
	if err != nil {
		return nil, err
	}

	in.normalize()
	if err := s.validator.Struct(&in); err != nil {
		return nil, err
	}

	in.apply(book)
	if err := s.bookRepo.Update(ctx, book); err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	return book, nil
}

// Delete removes a book and, through the cascade, its loans.
func (s *catalogService) Delete(ctx context.Context, id uint) (*model.Book, error) {
	book, err := s.findBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.bookRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBookNotFound
		}
		return nil, fmt.Errorf("delete book: %w", err)
	}
	return book, nil
}

// Availability computes stock minus active loans for a book.
func (s *catalogService) Availability(ctx context.Context, book *model.Book) (model.Availability, error) {
	borrowed, err := s.loanRepo.CountActiveByBook(ctx, book.ID)
	if err != nil {
		return model.Availability{}, fmt.Errorf("count active loans: %w", err)
	}
	return model.NewAvailability(book.Stock, borrowed), nil
}

// Dashboard gathers the home page counters.
func (s *catalogService) Dashboard(ctx context.Context) (*Dashboard, error) {
	total, err := s.bookRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}
	inStock, err := s.bookRepo.CountInStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("count books in stock: %w", err)
	}
	active, err := s.loanRepo.CountActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("count active loans: %w", err)
	}
	recent, err := s.bookRepo.Recent(ctx, recentBooksOnDashboard)
	if err != nil {
		return nil, fmt.Errorf("recent books: %w", err)
	}

	return &Dashboard{
		TotalBooks:     total,
		AvailableBooks: inStock,
		ActiveLoans:    active,
		RecentBooks:    recent,
	}, nil
}

func (s *catalogService) findBook(ctx context.Context, id uint) (*model.Book, error) {
	book, err := s.bookRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}
