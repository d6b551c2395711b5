// Package catalog holds the product catalog that orders draw stock from.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInsufficientStock is returned when a conditional stock decrement
	// finds fewer units than requested.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product is a menu item with its current stock.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
}

// HasStock reports whether at least qty units are available.
func (p Product) HasStock(qty int) bool {
	return qty <= p.Stock
}

// Item returns the product as an undecorated priced item.
func (p Product) Item() *pricing.Base {
	return pricing.NewBase(p.ID, p.Name, p.Description, p.Price)
}

// Quote decorates the product with add-ons in the given order.
func (p Product) Quote(addons ...pricing.AddonKind) pricing.Item {
	return pricing.Build(p.Item(), addons...)
}

// Repository defines catalog persistence.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	// DecrementStock removes qty units if at least qty are available and
	// returns ErrInsufficientStock otherwise. The check and the write are atomic.
	DecrementStock(ctx context.Context, id int64, qty int) error
	SetStock(ctx context.Context, id int64, stock int) error
	Upsert(ctx context.Context, p Product) error
}
