package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"biblioteca/internal/model"
)

// BookRepository defines book persistence operations.
type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*model.Book, error)
	FindByTitleAndAuthor(ctx context.Context, title, author string) (*model.Book, error)
	Search(ctx context.Context, query string, limit, offset int) ([]model.Book, int64, error)
	Count(ctx context.Context) (int64, error)
	CountInStock(ctx context.Context) (int64, error)
	Recent(ctx context.Context, n int) ([]model.Book, error)
}

type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository.
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

// Create creates a new book.
func (r *bookRepository) Create(ctx context.Context, book *model.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

// Update saves every column of an existing book.
func (r *bookRepository) Update(ctx context.Context, book *model.Book) error {
	return r.db.WithContext(ctx).Save(book).Error
}

// Delete removes a book; its loans go with it through the foreign key cascade.
func (r *bookRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Book{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByID finds a book by ID.
func (r *bookRepository) FindByID(ctx context.Context, id uint) (*model.Book, error) {
	var book model.Book
	if err := r.db.WithContext(ctx).First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// Search returns one page of books whose title or author contains query,
// case-insensitively, ordered by title, together with the total match count.
// FindByTitleAndAuthor finds a book whose title and author match exactly,
// ignoring case and surrounding spaces.
func (r *bookRepository) FindByTitleAndAuthor(ctx context.Context, title, author string) (*model.Book, error) {
	var book model.Book
	err := r.db.WithContext(ctx).
		Where("LOWER(title) = ? AND LOWER(author) = ?",
			strings.ToLower(strings.TrimSpace(title)), strings.ToLower(strings.TrimSpace(author))).
		Order("id ASC").
		First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepository) Search(ctx context.Context, query string, limit, offset int) ([]model.Book, int64, error) {
	query = strings.TrimSpace(query)
	scope := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.Book{})
		if query != "" {
			pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
			q = q.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ?", pattern, pattern)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var books []model.Book
	if err := scope().Order("title ASC").Order("id ASC").Limit(limit).Offset(offset).Find(&books).Error; err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// Count returns the number of books in the catalog.
func (r *bookRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Book{}).Count(&n).Error
	return n, err
}

// CountInStock returns the number of books with at least one copy in stock.
func (r *bookRepository) CountInStock(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Book{}).Where("stock > ?", 0).Count(&n).Error
	return n, err
}

// Recent returns the n most recently added books.
func (r *bookRepository) Recent(ctx context.Context, n int) ([]model.Book, error) {
	var books []model.Book
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Limit(n).Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
