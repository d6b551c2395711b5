package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/catalog"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
	"github.com/xenking/storefront-orders/pkg/idempotency"
)

// badRequestError reports a malformed request that never reached the domain.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &badRequestError{msg: errors.Errorf(format, args...).Error()}
}

// status maps err to an HTTP status code and a client facing message.
func status(err error) (int, string) {
	var (
		badReq *badRequestError
		vErr   *order.ValidationError
		pnfErr *order.ProductNotFoundError
		isErr  *order.InsufficientStockError
		itErr  *order.InvalidTransitionError
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, badReq.Error()
	case errors.As(err, &vErr):
		return http.StatusBadRequest, vErr.Error()
	case errors.Is(err, pricing.ErrUnknownAddon),
		errors.Is(err, order.ErrUnknownOperation),
		errors.Is(err, idempotency.ErrInvalidKey):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &pnfErr):
		return http.StatusUnprocessableEntity, pnfErr.Error()
	case errors.As(err, &isErr):
		return http.StatusConflict, isErr.Error()
	case errors.As(err, &itErr):
		return http.StatusConflict, itErr.Error()
	case errors.Is(err, order.ErrStateConflict),
		errors.Is(err, idempotency.ErrInProgress):
		return http.StatusConflict, err.Error()
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := status(err)
	if code >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeError(w, code, msg)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, code, &e)
}

func writeJSON(w http.ResponseWriter, code int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
