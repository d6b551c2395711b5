package discount

import "github.com/shopspring/decimal"

// Result is the priced outcome of applying a policy to a subtotal.
type Result struct {
	Policy   Policy
	Code     string
	Valid    bool
	Message  string
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Apply computes the discount and total for subtotal under policy. An invalid
// outcome leaves the total equal to the subtotal. The total never goes below zero.
func Apply(p Policy, subtotal decimal.Decimal) Result {
	out := p.Compute(subtotal)

	amount := zero
	if out.Valid {
		amount = floorAtZero(out.Amount)
	}

	return Result{
		Policy:   p,
		Code:     p.Code(),
		Valid:    out.Valid,
		Message:  out.Message,
		Subtotal: subtotal,
		Discount: amount,
		Total:    floorAtZero(subtotal.Sub(amount)),
	}
}

// ApplyCode resolves code and applies the resulting policy.
func ApplyCode(code string, subtotal decimal.Decimal) Result {
	return Apply(Resolve(code), subtotal)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
