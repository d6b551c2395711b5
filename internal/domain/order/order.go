// Package order implements the order lifecycle: creation with pricing and
// stock reservation, and state transitions.
package order

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

// MaxCustomerNameLength is the longest accepted customer name, in characters.
const MaxCustomerNameLength = 100

// MaxLineQuantity is the largest quantity a single line may request. It
// matches the range of the stored quantity and stock columns.
const MaxLineQuantity = math.MaxInt32

// Order is a priced customer order.
type Order struct {
	ID             int64
	CustomerName   string
	CreatedAt      time.Time
	Lines          []Line
	Subtotal       decimal.Decimal
	DiscountCode   string
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal
	State          State
	History        []StateChange
}

// Line is one product on an order with the agreed unit price.
type Line struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Addons    []pricing.AddonKind
}

// Amount is the line total, quantity times unit price.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// StateChange is a single entry of the append-only state history.
type StateChange struct {
	State State
	At    time.Time
}

// Machine restores the state machine of the order from its persisted history.
func (o *Order) Machine() *Machine {
	states := make([]State, len(o.History))
	for i, c := range o.History {
		states[i] = c.State
	}
	return Restore(o.State, states)
}

// Repository defines order persistence. Implementations join the unit of
// work carried by ctx when there is one.
type Repository interface {
	// Create inserts the order row and returns its generated id.
	Create(ctx context.Context, o *Order) (int64, error)
	AddLines(ctx context.Context, orderID int64, lines []Line) error
	// UpdateState sets the state to "to" only if it is currently "from";
	// otherwise it returns ErrStateConflict.
	UpdateState(ctx context.Context, id int64, from, to State) error
	AppendHistory(ctx context.Context, id int64, change StateChange) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	// List returns up to f.Limit orders created within the filter bounds,
	// newest first.
	List(ctx context.Context, f ListFilter) ([]Order, error)
}

// ListFilter selects orders by creation time. A zero bound is open; From is
// inclusive and To exclusive.
type ListFilter struct {
	Limit int
	From  time.Time
	To    time.Time
}

// Match reports whether an order created at t falls within the bounds.
func (f ListFilter) Match(t time.Time) bool {
	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Before(f.To) {
		return false
	}
	return true
}

// Transactor runs fn in a single unit of work. The work is rolled back
// when fn returns an error.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventKind names an order event.
type EventKind string

const (
	EventOrderPlaced       EventKind = "order.placed"
	EventOrderStateChanged EventKind = "order.state_changed"
)

// Event is published after an order change has been committed.
type Event struct {
	Kind    EventKind
	OrderID int64
	From    State
	State   State
	Total   decimal.Decimal
	At      time.Time
}

// Publisher delivers order events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
