package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

const maxBodySize = 1 << 20

// readBody decodes the request body with fn, mapping syntax errors to 400.
func readBody(r *http.Request, fn func(d *jx.Decoder) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	if len(data) == 0 {
		return badRequest("request body is required")
	}
	if err := fn(jx.DecodeBytes(data)); err != nil {
		var bad *badRequestError
		if errors.As(err, &bad) || errors.Is(err, pricing.ErrUnknownAddon) {
			return err
		}
		return badRequest("invalid JSON: %v", err)
	}
	return nil
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, badRequest("invalid decimal %q", raw)
	}
	return v, nil
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		out = append(out, s)
		return err
	})
	return out, err
}

func decodeAddons(d *jx.Decoder) ([]pricing.AddonKind, error) {
	tokens, err := decodeStrings(d)
	if err != nil {
		return nil, err
	}
	return pricing.ParseAddonKinds(tokens)
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func encodeAddons(e *jx.Encoder, kinds []pricing.AddonKind) {
	e.ArrStart()
	for _, k := range kinds {
		e.Str(k.String())
	}
	e.ArrEnd()
}

// opName renders an operation the way it appears in URLs.
func opName(op order.Operation) string {
	return strings.ReplaceAll(string(op), "_", "-")
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id %q", raw)
	}
	return id, nil
}
