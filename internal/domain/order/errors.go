package order

import (
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-orders/internal/domain/catalog"
)

var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrStateConflict is returned when the persisted state no longer matches
	// the state a transition was computed from.
	ErrStateConflict = errors.New("order state changed concurrently")
)

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ProductNotFoundError indicates a line references an unknown product.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return catalog.ErrNotFound }

// InsufficientStockError indicates a product cannot cover the requested quantity.
type InsufficientStockError struct {
	ProductID int64
	Product   string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s. Available: %d", e.Product, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return catalog.ErrInsufficientStock }

// PersistenceError wraps a failure of a storage collaborator.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// InvalidTransitionError reports an operation rejected by the state machine.
type InvalidTransitionError struct {
	Op   Operation
	From State
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("operation %s not permitted in current state %s", e.Op, e.From)
}
