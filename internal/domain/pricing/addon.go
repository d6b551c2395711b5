package pricing

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// AddonKind enumerates the fixed set of add-ons a menu item can be customized with.
type AddonKind uint8

const (
	AddonUnknown AddonKind = iota
	AddonFries
	AddonSoda
	AddonRice
	AddonCheese
	AddonBacon
)

// ErrUnknownAddon is returned when an add-on token does not name a known kind.
var ErrUnknownAddon = errors.New("unknown add-on")

type addonDef struct {
	token  string
	title  string
	detail string
	price  decimal.Decimal
}

var addonDefs = [...]addonDef{
	AddonUnknown: {},
	AddonFries:   {token: "FRIES", title: "Fries", detail: "crispy fries", price: decimal.New(30, -1)},
	AddonSoda:    {token: "SODA", title: "Soda", detail: "500ml soda", price: decimal.New(25, -1)},
	AddonRice:    {token: "RICE", title: "Rice", detail: "side of white rice", price: decimal.New(20, -1)},
	AddonCheese:  {token: "CHEESE", title: "Cheese", detail: "melted cheese", price: decimal.New(15, -1)},
	AddonBacon:   {token: "BACON", title: "Bacon", detail: "crispy bacon", price: decimal.New(25, -1)},
}

// AllAddons returns every known add-on kind in menu order.
func AllAddons() []AddonKind {
	return []AddonKind{AddonFries, AddonSoda, AddonRice, AddonCheese, AddonBacon}
}

// ParseAddonKind maps a case-insensitive token such as "fries" to its kind.
func ParseAddonKind(s string) (AddonKind, error) {
	token := strings.ToUpper(strings.TrimSpace(s))
	for _, k := range AllAddons() {
		if addonDefs[k].token == token {
			return k, nil
		}
	}
	return AddonUnknown, errors.Wrapf(ErrUnknownAddon, "%q", s)
}

// ParseAddonKinds parses every token, failing on the first unknown one.
func ParseAddonKinds(tokens []string) ([]AddonKind, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	kinds := make([]AddonKind, len(tokens))
	for i, t := range tokens {
		k, err := ParseAddonKind(t)
		if err != nil {
			return nil, err
		}
		kinds[i] = k
	}
	return kinds, nil
}

// Valid reports whether k is one of the known add-on kinds.
func (k AddonKind) Valid() bool {
	return k > AddonUnknown && int(k) < len(addonDefs)
}

func (k AddonKind) def() addonDef {
	if !k.Valid() {
		return addonDefs[AddonUnknown]
	}
	return addonDefs[k]
}

// String returns the canonical token, e.g. "FRIES".
func (k AddonKind) String() string {
	if !k.Valid() {
		return "UNKNOWN"
	}
	return k.def().token
}

// Title is the name fragment appended to the decorated item name.
func (k AddonKind) Title() string { return k.def().title }

// Detail is the description fragment appended to the decorated item description.
func (k AddonKind) Detail() string { return k.def().detail }

// Price is the amount the add-on contributes to the item price.
func (k AddonKind) Price() decimal.Decimal { return k.def().price }

// AddonTokens converts kinds to their canonical tokens for storage.
func AddonTokens(kinds []AddonKind) []string {
	tokens := make([]string, len(kinds))
	for i, k := range kinds {
		tokens[i] = k.String()
	}
	return tokens
}
