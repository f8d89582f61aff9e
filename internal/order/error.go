package order

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation error")
	ErrOrderNotFound        = errors.New("order not found")
	ErrClientNotFound       = errors.New("client profile not found")
	ErrVariantNotFound      = errors.New("variant not found")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrConflict             = errors.New("order already exists")
	ErrTimeout              = errors.New("order transaction timed out")
	ErrSerializationFailure = errors.New("order transaction conflicted with a concurrent order")
	ErrInvalidStatus        = errors.New("invalid status update")
	ErrImmutableField       = errors.New("field cannot be changed after the order is created")
)

type VariantNotFoundError struct {
	ProductID string
	Size      string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("Product with ID %s and size %q not found.", e.ProductID, e.Size)
}

func (e *VariantNotFoundError) Is(target error) bool {
	return target == ErrVariantNotFound
}

type InsufficientStockError struct {
	VariantID int64
	ProductID string
	Title     string
	Size      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Not enough stock for %s (Size: %s). Requested: %d, Available: %d.",
		e.Title, e.Size, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsRetryable reports transient failures that left no partial state behind.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrSerializationFailure)
}
