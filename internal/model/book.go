package model

import (
	"fmt"
	"time"
)

const (
	// MinPublicationYear is the earliest publication year accepted for a book.
	MinPublicationYear = 1000
	// MaxPublicationYear is the latest publication year accepted for a book.
	MaxPublicationYear = 2030
)

// Book represents a catalog entry and its stock.
type Book struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Title           string    `json:"title" gorm:"size:200;not null;index"`
	Author          string    `json:"author" gorm:"size:100;not null;index"`
	PublicationYear int       `json:"publication_year" gorm:"not null;check:chk_books_publication_year,publication_year >= 1000"`
	Stock           uint      `json:"stock" gorm:"not null;default:1"`
	CreatedAt       time.Time `json:"created_at" gorm:"index"`
	UpdatedAt       time.Time `json:"updated_at"`

	// Relations
	Loans []Loan `json:"-" gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE"`
}

// Available reports whether the book has any copies in stock at all.
func (b *Book) Available() bool {
	return b.Stock > 0
}

func (b *Book) String() string {
	return fmt.Sprintf("%s - %s", b.Title, b.Author)
}

// Availability is the on-demand stock picture of a book.
type Availability struct {
	Stock          uint  `json:"stock"`
	BorrowedCount  int64 `json:"borrowed_count"`
	AvailableCount int64 `json:"available_count"`
}

// NewAvailability derives the available count from stock and active loans.
func NewAvailability(stock uint, borrowed int64) Availability {
	return Availability{
		Stock:          stock,
		BorrowedCount:  borrowed,
		AvailableCount: int64(stock) - borrowed,
	}
}

// CanLend reports whether another copy may be lent out.
func (a Availability) CanLend() bool {
	return a.AvailableCount > 0
}
