package catalog

import (
	"errors"
	"fmt"

	"bookstore-be/internal/apperror"
)

var (
	ErrBookNotFound    = apperror.NotFound("book not found")
	ErrInvalidQuantity = apperror.Validation("quantity must be at least 1")
	ErrInvalidStock    = apperror.Validation("stock must not be negative")
	ErrInvalidPrice    = apperror.Validation("price must not be negative")
	ErrMissingFields   = apperror.Validation("title and author are required")
	ErrNoChanges       = apperror.Validation("no fields to update")

	// ErrCacheMiss is returned by Cache implementations when a book is not cached.
	ErrCacheMiss = errors.New("book cache miss")
)

// InsufficientStockError names the book and how many copies are left.
type InsufficientStockError struct {
	BookID    string
	Title     string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %q. Available: %d", e.Title, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == apperror.ErrValidation
}
