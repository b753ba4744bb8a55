package order

import (
	"errors"
	"fmt"

	"bookstore-be/internal/apperror"
)

var (
	ErrOrderNotFound = apperror.NotFound("order not found")
	ErrInvalidStatus = apperror.Validation("Invalid status. Must be one of: processing, shipped, delivered, cancelled")

	// ErrDuplicateCheckout means an order for this checkout was already committed.
	ErrDuplicateCheckout = errors.New("order already exists for checkout")
	// ErrHoldsReleased means some of the checkout's stock holds were released
	// before the order could settle them. The order is not written.
	ErrHoldsReleased = errors.New("stock holds released before order commit")
	// ErrStatusConflict means the status changed between read and write.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == apperror.ErrValidation
}
