// Package pricing composes priced menu items out of a catalog base and an
// ordered chain of add-ons.
package pricing

import (
	"github.com/shopspring/decimal"
)

// Item is anything that can be put on an order line with a price.
//
// Implementations are limited to *Base and *Addon; the unexported method keeps
// the set closed.
type Item interface {
	Name() string
	Description() string
	Price() decimal.Decimal

	layer()
}

var (
	_ Item = (*Base)(nil)
	_ Item = (*Addon)(nil)
)

// Base is an undecorated catalog product.
type Base struct {
	productID   int64
	name        string
	description string
	price       decimal.Decimal
}

// NewBase wraps catalog product data into a priced item.
func NewBase(productID int64, name, description string, price decimal.Decimal) *Base {
	return &Base{
		productID:   productID,
		name:        name,
		description: description,
		price:       price,
	}
}

// ProductID returns the catalog identifier of the product.
func (b *Base) ProductID() int64 { return b.productID }

func (b *Base) Name() string           { return b.name }
func (b *Base) Description() string    { return b.description }
func (b *Base) Price() decimal.Decimal { return b.price }
func (b *Base) layer()                 {}

// Addon wraps another item and adds its own name, description and price on top.
type Addon struct {
	wrapped Item
	kind    AddonKind
}

// Wrap returns item decorated with a single add-on layer.
func Wrap(item Item, kind AddonKind) *Addon {
	return &Addon{wrapped: item, kind: kind}
}

// Kind returns the add-on kind of the outermost layer.
func (a *Addon) Kind() AddonKind { return a.kind }

// Unwrap returns the item this layer decorates.
func (a *Addon) Unwrap() Item { return a.wrapped }

func (a *Addon) Name() string {
	return a.wrapped.Name() + " + " + a.kind.Title()
}

func (a *Addon) Description() string {
	return a.wrapped.Description() + ", " + a.kind.Detail()
}

func (a *Addon) Price() decimal.Decimal {
	return a.wrapped.Price().Add(a.kind.Price())
}

func (a *Addon) layer() {}

// Build applies add-ons to base in the given order. Unknown kinds are skipped.
// With no add-ons the base is returned as is.
func Build(base Item, addons ...AddonKind) Item {
	item := base
	for _, kind := range addons {
		if !kind.Valid() {
			continue
		}
		item = Wrap(item, kind)
	}
	return item
}

// Addons lists the add-on kinds of item from the innermost layer outwards,
// i.e. in application order.
func Addons(item Item) []AddonKind {
	var kinds []AddonKind
	for {
		a, ok := item.(*Addon)
		if !ok {
			break
		}
		kinds = append(kinds, a.kind)
		item = a.wrapped
	}
	for i, j := 0, len(kinds)-1; i < j; i, j = i+1, j-1 {
		kinds[i], kinds[j] = kinds[j], kinds[i]
	}
	return kinds
}
