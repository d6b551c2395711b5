// Package handler exposes the storefront API over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/storefront-orders/internal/domain/catalog"
	"github.com/xenking/storefront-orders/internal/domain/order"
)

// Orders is the order workflow used by the handlers.
type Orders interface {
	CreateOrder(ctx context.Context, req order.CreateRequest) (*order.Placement, error)
	Transition(ctx context.Context, id int64, op order.Operation) (*order.TransitionResult, error)
	Get(ctx context.Context, id int64) (*order.Order, error)
	List(ctx context.Context, f order.ListFilter) ([]order.Order, error)
}

// Idempotency remembers order ids by Idempotency-Key.
type Idempotency interface {
	Claim(ctx context.Context, key string) (id int64, claimed bool, err error)
	Complete(ctx context.Context, key string, id int64) error
	Release(ctx context.Context, key string) error
}

// Handler serves the /api routes.
type Handler struct {
	products catalog.Repository
	orders   Orders
	idem     Idempotency

	placed      metric.Int64Counter
	rejected    metric.Int64Counter
	transitions metric.Int64Counter
}

// NewHandler constructs a Handler. idem may be nil to disable idempotent
// order submission.
func NewHandler(
	products catalog.Repository,
	orders Orders,
	idem Idempotency,
	meter metric.Meter,
) (*Handler, error) {
	h := &Handler{
		products: products,
		orders:   orders,
		idem:     idem,
	}

	var err error
	if h.placed, err = meter.Int64Counter("storefront.orders.placed",
		metric.WithDescription("Orders created"),
	); err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	if h.rejected, err = meter.Int64Counter("storefront.orders.rejected",
		metric.WithDescription("Order submissions rejected, by reason"),
	); err != nil {
		return nil, errors.Wrap(err, "orders rejected counter")
	}
	if h.transitions, err = meter.Int64Counter("storefront.orders.transitions",
		metric.WithDescription("Order state transition requests, by operation and outcome"),
	); err != nil {
		return nil, errors.Wrap(err, "order transitions counter")
	}
	return h, nil
}

// Routes mounts the API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Post("/products/{id}/quote", h.quoteProduct)
		r.Get("/addons", h.listAddons)
		r.Post("/discounts/preview", h.previewDiscount)

		r.Post("/orders", h.createOrder)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders/{id}/transitions/{op}", h.transitionOrder)
	})
}

// Router returns a chi router serving only the API routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	h.Routes(r)
	return r
}
