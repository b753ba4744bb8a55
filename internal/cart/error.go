package cart

import "bookstore-be/internal/apperror"

var (
	ErrInvalidQuantity = apperror.Validation("quantity must be at least 1")
	ErrMissingFields   = apperror.Validation("userId and bookId are required")
	ErrMissingItems    = apperror.Validation("items are required")
)
