package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func burger() *Base {
	return NewBase(7, "Burger", "classic beef burger", d("12.00"))
}

// permutations returns every ordering of kinds.
func permutations(kinds []AddonKind) [][]AddonKind {
	if len(kinds) <= 1 {
		return [][]AddonKind{append([]AddonKind(nil), kinds...)}
	}
	var out [][]AddonKind
	for i := range kinds {
		rest := make([]AddonKind, 0, len(kinds)-1)
		rest = append(rest, kinds[:i]...)
		rest = append(rest, kinds[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]AddonKind{kinds[i]}, p...))
		}
	}
	return out
}

func TestBuild_Empty(t *testing.T) {
	base := burger()

	item := Build(base)

	assert.Same(t, base, item)
	assert.Empty(t, Addons(item))
}

func TestBuild_SingleAddon(t *testing.T) {
	item := Build(burger(), AddonFries)

	assert.Equal(t, "Burger + Fries", item.Name())
	assert.Equal(t, "classic beef burger, crispy fries", item.Description())
	assert.True(t, d("15.00").Equal(item.Price()), "got %s", item.Price())
}

func TestBuild_AddonPrices(t *testing.T) {
	tests := []struct {
		kind AddonKind
		want decimal.Decimal
	}{
		{AddonFries, d("3.0")},
		{AddonSoda, d("2.5")},
		{AddonRice, d("2.0")},
		{AddonCheese, d("1.5")},
		{AddonBacon, d("2.5")},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			base := burger()
			item := Build(base, tt.kind)
			assert.True(t, base.Price().Add(tt.want).Equal(item.Price()),
				"expected %s, got %s", base.Price().Add(tt.want), item.Price())
		})
	}
}

func TestBuild_PriceIndependentOfOrder(t *testing.T) {
	kinds := []AddonKind{AddonFries, AddonSoda, AddonCheese, AddonBacon}
	want := d("12.00").Add(d("3.0")).Add(d("2.5")).Add(d("1.5")).Add(d("2.5"))

	perms := permutations(kinds)
	require.Len(t, perms, 24)

	for _, p := range perms {
		item := Build(burger(), p...)
		assert.True(t, want.Equal(item.Price()), "order %v: got %s", p, item.Price())
		assert.Equal(t, p, Addons(item))
	}
}

func TestBuild_NameAndDescriptionFollowApplicationOrder(t *testing.T) {
	a := Build(burger(), AddonCheese, AddonBacon)
	b := Build(burger(), AddonBacon, AddonCheese)

	assert.Equal(t, "Burger + Cheese + Bacon", a.Name())
	assert.Equal(t, "Burger + Bacon + Cheese", b.Name())
	assert.Equal(t, "classic beef burger, melted cheese, crispy bacon", a.Description())
	assert.Equal(t, "classic beef burger, crispy bacon, melted cheese", b.Description())
	assert.True(t, a.Price().Equal(b.Price()))
}

func TestBuild_RepeatedAddon(t *testing.T) {
	item := Build(burger(), AddonCheese, AddonCheese)

	assert.Equal(t, "Burger + Cheese + Cheese", item.Name())
	assert.True(t, d("15.00").Equal(item.Price()))
}

func TestBuild_SkipsUnknownKinds(t *testing.T) {
	item := Build(burger(), AddonUnknown, AddonKind(200), AddonRice)

	assert.Equal(t, "Burger + Rice", item.Name())
	assert.Equal(t, []AddonKind{AddonRice}, Addons(item))
}

func TestBuild_LayersDoNotMutateBase(t *testing.T) {
	base := burger()
	withFries := Build(base, AddonFries)
	withSoda := Build(withFries, AddonSoda)

	assert.Equal(t, "Burger", base.Name())
	assert.Equal(t, "Burger + Fries", withFries.Name())
	assert.Equal(t, "Burger + Fries + Soda", withSoda.Name())

	outer, ok := withSoda.(*Addon)
	require.True(t, ok)
	assert.Same(t, withFries, outer.Unwrap())
}

func TestParseAddonKind(t *testing.T) {
	tests := []struct {
		in      string
		want    AddonKind
		wantErr bool
	}{
		{in: "FRIES", want: AddonFries},
		{in: "fries", want: AddonFries},
		{in: "  Soda ", want: AddonSoda},
		{in: "rice", want: AddonRice},
		{in: "Cheese", want: AddonCheese},
		{in: "bacon", want: AddonBacon},
		{in: "ketchup", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAddonKind(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownAddon)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAddonKinds(t *testing.T) {
	kinds, err := ParseAddonKinds([]string{"bacon", "FRIES"})
	require.NoError(t, err)
	assert.Equal(t, []AddonKind{AddonBacon, AddonFries}, kinds)
	assert.Equal(t, []string{"BACON", "FRIES"}, AddonTokens(kinds))

	_, err = ParseAddonKinds([]string{"bacon", "onion"})
	require.ErrorIs(t, err, ErrUnknownAddon)

	kinds, err = ParseAddonKinds(nil)
	require.NoError(t, err)
	assert.Nil(t, kinds)
}
