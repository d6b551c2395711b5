// Package discount resolves discount codes to one of a fixed set of policies
// and applies them to an order subtotal.
package discount

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Policy enumerates the supported discount policies. The zero value is NoDiscount.
type Policy uint8

const (
	// NoDiscount leaves the subtotal untouched.
	NoDiscount Policy = iota
	// PercentageWithMinimum takes 15% off subtotals of at least 50.
	PercentageWithMinimum
	// TieredPercentage takes 30% off, or 40% off subtotals of at least 500.
	TieredPercentage
	// FixedAmountWithMinimum takes a flat 10 off subtotals of at least 30.
	FixedAmountWithMinimum
)

// Recognized discount codes.
const (
	CodeHoliday     = "NAVIDAD2024"
	CodeBlackFriday = "BLACKFRIDAY"
	CodeWelcome     = "BIENVENIDA"
)

var codes = map[string]Policy{
	CodeHoliday:     PercentageWithMinimum,
	CodeBlackFriday: TieredPercentage,
	CodeWelcome:     FixedAmountWithMinimum,
}

var (
	holidayRate    = decimal.New(15, -2)
	holidayMinimum = decimal.NewFromInt(50)
	tierBaseRate   = decimal.New(30, -2)
	tierUpperRate  = decimal.New(40, -2)
	tierThreshold  = decimal.NewFromInt(500)
	welcomeAmount  = decimal.NewFromInt(10)
	welcomeMinimum = decimal.NewFromInt(30)
	zero           = decimal.Zero
)

// Resolve maps a discount code to its policy. Lookup ignores case and
// surrounding whitespace; unknown and empty codes resolve to NoDiscount.
func Resolve(code string) Policy {
	p, ok := codes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return NoDiscount
	}
	return p
}

// Code returns the canonical code of the policy, empty for NoDiscount.
func (p Policy) Code() string {
	switch p {
	case PercentageWithMinimum:
		return CodeHoliday
	case TieredPercentage:
		return CodeBlackFriday
	case FixedAmountWithMinimum:
		return CodeWelcome
	default:
		return ""
	}
}

func (p Policy) String() string {
	switch p {
	case PercentageWithMinimum:
		return "percentage_with_minimum"
	case TieredPercentage:
		return "tiered_percentage"
	case FixedAmountWithMinimum:
		return "fixed_amount_with_minimum"
	default:
		return "no_discount"
	}
}

// Outcome is what a policy computes for a subtotal.
type Outcome struct {
	Valid   bool
	Amount  decimal.Decimal
	Message string
}

// Compute evaluates the policy against subtotal. It is a pure function of its
// inputs; when Valid is false Amount is zero and Message names the unmet minimum.
func (p Policy) Compute(subtotal decimal.Decimal) Outcome {
	switch p {
	case PercentageWithMinimum:
		if subtotal.LessThan(holidayMinimum) {
			return minimumNotMet(p, holidayMinimum)
		}
		return Outcome{
			Valid:   true,
			Amount:  subtotal.Mul(holidayRate),
			Message: "Holiday discount applied: 15% off",
		}
	case TieredPercentage:
		rate := tierBaseRate
		if subtotal.GreaterThanOrEqual(tierThreshold) {
			rate = tierUpperRate
		}
		return Outcome{
			Valid:   true,
			Amount:  subtotal.Mul(rate),
			Message: "Black Friday: 30% off (40% off orders of 500.00 or more)",
		}
	case FixedAmountWithMinimum:
		if subtotal.LessThan(welcomeMinimum) {
			return minimumNotMet(p, welcomeMinimum)
		}
		return Outcome{
			Valid:   true,
			Amount:  welcomeAmount,
			Message: "Welcome discount: 10.00 off",
		}
	default:
		return Outcome{Valid: true, Amount: zero, Message: "No discount applied"}
	}
}

func minimumNotMet(p Policy, minimum decimal.Decimal) Outcome {
	return Outcome{
		Valid:   false,
		Amount:  zero,
		Message: fmt.Sprintf("Discount code %s requires a minimum purchase of %s", p.Code(), minimum.StringFixed(2)),
	}
}
