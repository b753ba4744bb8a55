package checkout

import (
	"fmt"

	"bookstore-be/internal/apperror"
)

var ErrEmptyCart = apperror.Validation("Cart is empty")

// BookNotFoundError names a cart line whose book no longer exists.
type BookNotFoundError struct {
	BookID string
}

func (e *BookNotFoundError) Error() string {
	return fmt.Sprintf("Book %s not found", e.BookID)
}

func (e *BookNotFoundError) Is(target error) bool {
	return target == apperror.ErrValidation
}
