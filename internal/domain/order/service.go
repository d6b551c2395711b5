package order

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/catalog"
	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

const (
	// DefaultListLimit is used when List is called without a positive limit.
	DefaultListLimit = 50
	// MaxListLimit caps the number of orders returned by List.
	MaxListLimit = 200
)

// ServiceConfig tunes the order service.
type ServiceConfig struct {
	// CatalogPrices re-derives each line price from the catalog product and
	// its add-ons instead of trusting the price supplied by the caller.
	CatalogPrices bool
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// LineRequest is one requested order line.
type LineRequest struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Addons    []pricing.AddonKind
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	CustomerName string
	Lines        []LineRequest
	DiscountCode string
}

// Placement is returned for a successfully created order.
type Placement struct {
	OrderID int64
	Order   *Order
	Pricing discount.Result
}

// TransitionResult is the outcome of a transition request. A rejected
// operation is reported through Transition.Permitted and leaves Order untouched.
type TransitionResult struct {
	Order      *Order
	Transition Transition
}

// Service encapsulates order creation and lifecycle logic.
type Service struct {
	cfg      ServiceConfig
	products catalog.Repository
	orders   Repository
	tx       Transactor
	events   Publisher
	now      func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(
	cfg ServiceConfig,
	products catalog.Repository,
	orders Repository,
	tx Transactor,
	events Publisher,
) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		cfg:      cfg,
		products: products,
		orders:   orders,
		tx:       tx,
		events:   events,
		now:      now,
	}
}

// CreateOrder validates and prices the request, then persists the order,
// its lines and the stock decrements in one unit of work.
func (s *Service) CreateOrder(ctx context.Context, req CreateRequest) (*Placement, error) {
	name, err := validateRequest(req, s.cfg.CatalogPrices)
	if err != nil {
		return nil, err
	}

	// Check products and stock in caller order so the first failing line is reported.
	products := make(map[int64]*catalog.Product, len(req.Lines))
	requested := make(map[int64]int, len(req.Lines))
	for _, l := range req.Lines {
		p, ok := products[l.ProductID]
		if !ok {
			p, err = s.products.GetByID(ctx, l.ProductID)
			switch {
			case errors.Is(err, catalog.ErrNotFound):
				return nil, &ProductNotFoundError{ProductID: l.ProductID}
			case err != nil:
				return nil, &PersistenceError{Op: "get product", Err: err}
			}
			products[l.ProductID] = p
		}

		requested[l.ProductID] += l.Quantity
		if !p.HasStock(requested[l.ProductID]) {
			return nil, &InsufficientStockError{
				ProductID: p.ID,
				Product:   p.Name,
				Available: p.Stock,
				Requested: requested[l.ProductID],
			}
		}
	}

	lines := make([]Line, len(req.Lines))
	subtotal := decimal.Zero
	for i, l := range req.Lines {
		price := l.UnitPrice
		if s.cfg.CatalogPrices {
			price = products[l.ProductID].Quote(l.Addons...).Price()
		}
		lines[i] = Line{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: price,
			Addons:    l.Addons,
		}
		subtotal = subtotal.Add(lines[i].Amount())
	}

	priced := discount.ApplyCode(req.DiscountCode, subtotal)
	code := ""
	if priced.Valid {
		code = priced.Code
	}

	now := s.now()
	o := &Order{
		CustomerName:   name,
		CreatedAt:      now,
		Lines:          lines,
		Subtotal:       priced.Subtotal,
		DiscountCode:   code,
		DiscountAmount: priced.Discount,
		Total:          priced.Total,
		State:          StatePending,
		History:        []StateChange{{State: StatePending, At: now}},
	}

	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.persist(ctx, o)
	}); err != nil {
		return nil, asPersistenceError("commit order", err)
	}

	s.publish(ctx, Event{
		Kind:    EventOrderPlaced,
		OrderID: o.ID,
		State:   o.State,
		Total:   o.Total,
		At:      now,
	})

	return &Placement{
		OrderID: o.ID,
		Order:   o,
		Pricing: priced,
	}, nil
}

func (s *Service) persist(ctx context.Context, o *Order) error {
	id, err := s.orders.Create(ctx, o)
	if err != nil {
		return &PersistenceError{Op: "create order", Err: err}
	}
	o.ID = id

	if err := s.orders.AppendHistory(ctx, id, o.History[0]); err != nil {
		return &PersistenceError{Op: "append history", Err: err}
	}
	if err := s.orders.AddLines(ctx, id, o.Lines); err != nil {
		return &PersistenceError{Op: "add lines", Err: err}
	}

	for _, l := range o.Lines {
		err := s.products.DecrementStock(ctx, l.ProductID, l.Quantity)
		switch {
		case errors.Is(err, catalog.ErrInsufficientStock):
			return s.stockError(ctx, l)
		case err != nil:
			return &PersistenceError{Op: "decrement stock", Err: err}
		}
	}
	return nil
}

// stockError describes a decrement lost to a concurrent order.
func (s *Service) stockError(ctx context.Context, l Line) error {
	e := &InsufficientStockError{
		ProductID: l.ProductID,
		Product:   fmt.Sprintf("product %d", l.ProductID),
		Requested: l.Quantity,
	}
	if p, err := s.products.GetByID(ctx, l.ProductID); err == nil {
		e.Product = p.Name
		e.Available = p.Stock
	}
	return e
}

// Transition fires op against the order with the given id and persists the
// new state together with a history entry.
func (s *Service) Transition(ctx context.Context, id int64, op Operation) (*TransitionResult, error) {
	if _, ok := transitions[op]; !ok {
		return nil, errors.Wrapf(ErrUnknownOperation, "%q", op)
	}

	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	t := o.Machine().Fire(op)
	if !t.Permitted {
		return &TransitionResult{Order: o, Transition: t}, nil
	}

	change := StateChange{State: t.To, At: s.now()}
	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.orders.UpdateState(ctx, id, t.From, t.To); err != nil {
			if errors.Is(err, ErrStateConflict) {
				return err
			}
			return &PersistenceError{Op: "update state", Err: err}
		}
		if err := s.orders.AppendHistory(ctx, id, change); err != nil {
			return &PersistenceError{Op: "append history", Err: err}
		}
		return nil
	}); err != nil {
		if errors.Is(err, ErrStateConflict) {
			return nil, err
		}
		return nil, asPersistenceError("commit transition", err)
	}

	o.State = t.To
	o.History = append(o.History, change)

	s.publish(ctx, Event{
		Kind:    EventOrderStateChanged,
		OrderID: o.ID,
		From:    t.From,
		State:   t.To,
		Total:   o.Total,
		At:      change.At,
	})

	return &TransitionResult{Order: o, Transition: t}, nil
}

// Get returns the order with the given id.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, err
	case err != nil:
		return nil, &PersistenceError{Op: "get order", Err: err}
	}
	return o, nil
}

// List returns the most recent orders matching f, newest first. The limit
// defaults to DefaultListLimit and is capped at MaxListLimit.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, error) {
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, &ValidationError{Field: "to", Reason: "must be after from"}
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultListLimit
	case f.Limit > MaxListLimit:
		f.Limit = MaxListLimit
	}
	orders, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, &PersistenceError{Op: "list orders", Err: err}
	}
	return orders, nil
}

func (s *Service) publish(ctx context.Context, e Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		zctx.From(ctx).Warn("Publish order event",
			zap.String("kind", string(e.Kind)),
			zap.Int64("order_id", e.OrderID),
			zap.Error(err),
		)
	}
}

func validateRequest(req CreateRequest, catalogPrices bool) (string, error) {
	name := strings.TrimSpace(req.CustomerName)
	switch {
	case name == "":
		return "", &ValidationError{Field: "customer_name", Reason: "must not be blank"}
	case utf8.RuneCountInString(name) > MaxCustomerNameLength:
		return "", &ValidationError{
			Field:  "customer_name",
			Reason: fmt.Sprintf("must be at most %d characters", MaxCustomerNameLength),
		}
	}

	if len(req.Lines) == 0 {
		return "", &ValidationError{Field: "lines", Reason: "at least one line is required"}
	}

	for i, l := range req.Lines {
		if l.Quantity <= 0 {
			return "", &ValidationError{
				Field:  fmt.Sprintf("lines[%d].quantity", i),
				Reason: "must be greater than 0",
			}
		}
		if l.Quantity > MaxLineQuantity {
			return "", &ValidationError{
				Field:  fmt.Sprintf("lines[%d].quantity", i),
				Reason: fmt.Sprintf("must be at most %d", MaxLineQuantity),
			}
		}
		if !catalogPrices && !l.UnitPrice.IsPositive() {
			return "", &ValidationError{
				Field:  fmt.Sprintf("lines[%d].unit_price", i),
				Reason: "must be greater than 0",
			}
		}
		for _, k := range l.Addons {
			if !k.Valid() {
				return "", &ValidationError{
					Field:  fmt.Sprintf("lines[%d].addons", i),
					Reason: pricing.ErrUnknownAddon.Error(),
				}
			}
		}
	}
	return name, nil
}

// asPersistenceError keeps typed domain errors and wraps anything else.
func asPersistenceError(op string, err error) error {
	var (
		pe *PersistenceError
		se *InsufficientStockError
	)
	if errors.As(err, &pe) || errors.As(err, &se) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
