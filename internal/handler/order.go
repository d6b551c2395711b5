package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/pkg/idempotency"
)

// HeaderReplayed marks a response served from a remembered Idempotency-Key.
const HeaderReplayed = "Idempotent-Replayed"

func decodeCreateRequest(d *jx.Decoder) (order.CreateRequest, error) {
	var req order.CreateRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "customerName":
			req.CustomerName, err = d.Str()
		case "discountCode":
			if d.Next() == jx.Null {
				return d.Null()
			}
			req.DiscountCode, err = d.Str()
		case "lines":
			err = d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				req.Lines = append(req.Lines, l)
				return err
			})
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func decodeLine(d *jx.Decoder) (order.LineRequest, error) {
	var l order.LineRequest
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			l.ProductID, err = d.Int64()
		case "quantity":
			l.Quantity, err = d.Int()
		case "unitPrice":
			l.UnitPrice, err = decodeDecimal(d)
		case "addons":
			l.Addons, err = decodeAddons(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return l, err
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(o.ID)
	e.FieldStart("customerName")
	e.Str(o.CustomerName)
	e.FieldStart("createdAt")
	encodeTime(e, o.CreatedAt)
	e.FieldStart("state")
	e.Str(o.State.String())
	e.FieldStart("progress")
	e.Int(o.State.Progress())
	e.FieldStart("allowedOperations")
	e.ArrStart()
	for _, op := range order.Allowed(o.State) {
		e.Str(opName(op))
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	encodeDecimal(e, o.Subtotal)
	e.FieldStart("discountCode")
	e.Str(o.DiscountCode)
	e.FieldStart("discountAmount")
	encodeDecimal(e, o.DiscountAmount)
	e.FieldStart("total")
	encodeDecimal(e, o.Total)

	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range o.Lines {
		e.ObjStart()
		e.FieldStart("productId")
		e.Int64(l.ProductID)
		e.FieldStart("quantity")
		e.Int(l.Quantity)
		e.FieldStart("unitPrice")
		encodeDecimal(e, l.UnitPrice)
		e.FieldStart("addons")
		encodeAddons(e, l.Addons)
		e.FieldStart("amount")
		encodeDecimal(e, l.Amount())
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("history")
	e.ArrStart()
	for _, c := range o.History {
		e.ObjStart()
		e.FieldStart("state")
		e.Str(c.State.String())
		e.FieldStart("at")
		encodeTime(e, c.At)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}

// createOrder places an order. With an Idempotency-Key header a retried
// request returns the order created by the first attempt.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req order.CreateRequest
	if err := readBody(r, func(d *jx.Decoder) (err error) {
		req, err = decodeCreateRequest(d)
		return err
	}); err != nil {
		h.reject(w, r, err)
		return
	}

	key := r.Header.Get(idempotency.Header)
	if key != "" && h.idem != nil {
		id, claimed, err := h.idem.Claim(ctx, key)
		switch {
		case errors.Is(err, idempotency.ErrInvalidKey), errors.Is(err, idempotency.ErrInProgress):
			h.reject(w, r, err)
			return
		case err != nil:
			zctx.From(ctx).Warn("Idempotency store unavailable", zap.Error(err))
			key = ""
		case !claimed:
			h.replay(w, r, id)
			return
		}
	} else {
		key = ""
	}

	placement, err := h.orders.CreateOrder(ctx, req)
	if err != nil {
		if key != "" {
			if err := h.idem.Release(ctx, key); err != nil {
				zctx.From(ctx).Warn("Release idempotency key", zap.Error(err))
			}
		}
		h.reject(w, r, err)
		return
	}
	if key != "" {
		if err := h.idem.Complete(ctx, key, placement.OrderID); err != nil {
			// A key left pending would answer every retry with 409 until it expires.
			zctx.From(ctx).Warn("Complete idempotency key", zap.Error(err))
			if err := h.idem.Release(ctx, key); err != nil {
				zctx.From(ctx).Warn("Release idempotency key", zap.Error(err))
			}
		}
	}
	h.placed.Add(ctx, 1)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orderId")
	e.Int64(placement.OrderID)
	e.FieldStart("pricing")
	encodePricing(&e, placement.Pricing)
	e.FieldStart("order")
	encodeOrder(&e, placement.Order)
	e.ObjEnd()

	w.Header().Set("Location", "/api/orders/"+strconv.FormatInt(placement.OrderID, 10))
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) replay(w http.ResponseWriter, r *http.Request, id int64) {
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orderId")
	e.Int64(o.ID)
	e.FieldStart("order")
	encodeOrder(&e, o)
	e.ObjEnd()

	w.Header().Set(HeaderReplayed, "true")
	writeJSON(w, http.StatusOK, &e)
}

// reject counts a refused submission before writing the error.
func (h *Handler) reject(w http.ResponseWriter, r *http.Request, err error) {
	code, _ := status(err)
	h.rejected.Add(r.Context(), 1, metric.WithAttributes(
		attribute.Int("http.status_code", code),
	))
	h.fail(w, r, err)
}

// listOrders serves GET /api/orders?limit=&from=&to=. Bounds are RFC 3339
// timestamps or dates; a date given as "to" includes that whole day.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := parseListFilter(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	orders, err := h.orders.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range orders {
		encodeOrder(&e, &orders[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func parseListFilter(r *http.Request) (order.ListFilter, error) {
	var (
		f   order.ListFilter
		err error
	)
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return f, badRequest("invalid limit %q", raw)
		}
		f.Limit = v
	}
	if f.From, err = parseBound(q.Get("from"), false); err != nil {
		return f, err
	}
	if f.To, err = parseBound(q.Get("to"), true); err != nil {
		return f, err
	}
	return f, nil
}

func parseBound(raw string, end bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, badRequest("invalid date %q: want YYYY-MM-DD or RFC 3339", raw)
	}
	if end {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	o, err := h.orders.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

// transitionOrder fires an operation such as "mark-ready". A rejected
// operation is answered with 409 and leaves the order untouched.
func (h *Handler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	op, err := order.ParseOperation(chi.URLParam(r, "op"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.orders.Transition(r.Context(), id, op)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.transitions.Add(r.Context(), 1, metric.WithAttributes(
		attribute.String("operation", string(op)),
		attribute.Bool("permitted", res.Transition.Permitted),
	))
	if err := res.Transition.Err(); err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("operation")
	e.Str(opName(res.Transition.Op))
	e.FieldStart("from")
	e.Str(res.Transition.From.String())
	e.FieldStart("to")
	e.Str(res.Transition.To.String())
	e.FieldStart("order")
	encodeOrder(&e, res.Order)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
