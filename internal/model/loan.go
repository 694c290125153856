package model

import (
	"time"

	"gorm.io/gorm"
)

// LoanStatus is the derived lifecycle state of a loan.
type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "active"
	LoanStatusReturned LoanStatus = "returned"
)

// Loan records one borrow of a book by a user.
// A nil ReturnedAt means the loan is active; once set it never changes.
type Loan struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	UserID     uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_loans_user_book_time,priority:1"`
	BookID     uint       `json:"book_id" gorm:"not null;index;uniqueIndex:idx_loans_user_book_time,priority:2"`
	LoanedAt   time.Time  `json:"loaned_at" gorm:"not null;index;uniqueIndex:idx_loans_user_book_time,priority:3"`
	ReturnedAt *time.Time `json:"returned_at" gorm:"index"`

	// Relations
	User *User `json:"-" gorm:"foreignKey:UserID"`
	Book *Book `json:"book,omitempty" gorm:"foreignKey:BookID"`
}

// BeforeCreate defaults the loan timestamp to the creation time.
func (l *Loan) BeforeCreate(tx *gorm.DB) error {
	if l.LoanedAt.IsZero() {
		l.LoanedAt = time.Now()
	}
	return nil
}

// IsActive reports whether the book is still out.
func (l *Loan) IsActive() bool {
	return l.ReturnedAt == nil
}

// Status returns the lifecycle state of the loan.
func (l *Loan) Status() LoanStatus {
	if l.IsActive() {
		return LoanStatusActive
	}
	return LoanStatusReturned
}

// DaysOnLoan returns the whole days between the loan and its return, or now if still active.
func (l *Loan) DaysOnLoan(now time.Time) int {
	end := now
	if l.ReturnedAt != nil {
		end = *l.ReturnedAt
	}
	return int(end.Sub(l.LoanedAt) / (24 * time.Hour))
}

// Return marks the loan returned at now. It reports false and changes nothing
// when the loan was already returned.
func (l *Loan) Return(now time.Time) bool {
	if l.ReturnedAt != nil {
		return false
	}
	l.ReturnedAt = &now
	return true
}
