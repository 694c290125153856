package errors

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrBookNotFound is returned when a book is not found.
	ErrBookNotFound = errors.New("book not found")
	// ErrLoanNotFound is returned when no active loan owned by the caller matches.
	ErrLoanNotFound = errors.New("loan not found")
	// ErrUserNotFound is returned when a user account is not found.
	ErrUserNotFound = errors.New("user not found")
	// ErrAlreadyBorrowed is returned when the user already holds an active loan for the book.
	ErrAlreadyBorrowed = errors.New("you already have this book on loan")
	// ErrBookUnavailable is returned when every copy of the book is on loan.
	ErrBookUnavailable = errors.New("this book is not available")
	// ErrForbidden is returned when the caller lacks the role required by a route.
	ErrForbidden = errors.New("you do not have permission to access this page")
	// ErrUnauthenticated is returned when a route needs a logged-in caller.
	ErrUnauthenticated = errors.New("authentication required")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// ValidationError carries field-level validation failures.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty ValidationError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// Add records a message for field, keeping the first one.
func (e *ValidationError) Add(field, message string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// OrNil returns nil when no field failed.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsBusinessRule reports whether err is a loan rule violation that should be
// surfaced to the caller as a notice rather than an error status.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrAlreadyBorrowed) || errors.Is(err, ErrBookUnavailable)
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     map[string]string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:  e.Message,
		Code:   e.Code,
		Fields: e.Fields,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var verr *ValidationError
	if errors.As(err, &verr) {
		httpErr := NewHTTPError(http.StatusUnprocessableEntity, "validation failed", "VALIDATION_ERROR")
		httpErr.Fields = verr.Fields
		return httpErr
	}

	switch {
	case errors.Is(err, ErrBookNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "BOOK_NOT_FOUND")
	case errors.Is(err, ErrLoanNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "LOAN_NOT_FOUND")
	case errors.Is(err, ErrUserNotFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "USER_NOT_FOUND")
	case errors.Is(err, ErrAlreadyBorrowed):
		return NewHTTPError(http.StatusConflict, err.Error(), "ALREADY_BORROWED")
	case errors.Is(err, ErrBookUnavailable):
		return NewHTTPError(http.StatusConflict, err.Error(), "BOOK_UNAVAILABLE")
	case errors.Is(err, ErrForbidden):
		return NewHTTPError(http.StatusForbidden, err.Error(), "FORBIDDEN")
	case errors.Is(err, ErrUnauthenticated):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "UNAUTHENTICATED")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
