package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/catalog"
	"github.com/xenking/storefront-orders/internal/domain/discount"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

func encodeProduct(e *jx.Encoder, p catalog.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	encodeDecimal(e, p.Price)
	e.FieldStart("stock")
	e.Int(p.Stock)
	e.ObjEnd()
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		encodeProduct(&e, p)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var e jx.Encoder
	encodeProduct(&e, *p)
	writeJSON(w, http.StatusOK, &e)
}

// quoteProduct prices a product decorated with add-ons without placing an order.
func (h *Handler) quoteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var addons []pricing.AddonKind
	if err := readBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "addons" {
				return d.Skip()
			}
			kinds, err := decodeAddons(d)
			addons = kinds
			return err
		})
	}); err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	item := p.Quote(addons...)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("productId")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(item.Name())
	e.FieldStart("description")
	e.Str(item.Description())
	e.FieldStart("price")
	encodeDecimal(&e, item.Price())
	e.FieldStart("addons")
	encodeAddons(&e, pricing.Addons(item))
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) listAddons(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	e.ArrStart()
	for _, k := range pricing.AllAddons() {
		e.ObjStart()
		e.FieldStart("kind")
		e.Str(k.String())
		e.FieldStart("name")
		e.Str(k.Title())
		e.FieldStart("description")
		e.Str(k.Detail())
		e.FieldStart("price")
		encodeDecimal(&e, k.Price())
		e.ObjEnd()
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func encodePricing(e *jx.Encoder, res discount.Result) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(res.Code)
	e.FieldStart("policy")
	e.Str(res.Policy.String())
	e.FieldStart("valid")
	e.Bool(res.Valid)
	e.FieldStart("message")
	e.Str(res.Message)
	e.FieldStart("subtotal")
	encodeDecimal(e, res.Subtotal)
	e.FieldStart("discount")
	encodeDecimal(e, res.Discount)
	e.FieldStart("total")
	encodeDecimal(e, res.Total)
	e.ObjEnd()
}

// previewDiscount applies a discount code to a subtotal.
func (h *Handler) previewDiscount(w http.ResponseWriter, r *http.Request) {
	var (
		code        string
		subtotal    decimal.Decimal
		hasSubtotal bool
	)
	if err := readBody(r, func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "code":
				code, err = d.Str()
			case "subtotal":
				subtotal, err = decodeDecimal(d)
				hasSubtotal = true
			default:
				err = d.Skip()
			}
			return err
		})
	}); err != nil {
		h.fail(w, r, err)
		return
	}
	if !hasSubtotal || subtotal.IsNegative() {
		h.fail(w, r, badRequest("subtotal must be a non-negative number"))
		return
	}

	var e jx.Encoder
	encodePricing(&e, discount.ApplyCode(code, subtotal))
	writeJSON(w, http.StatusOK, &e)
}
