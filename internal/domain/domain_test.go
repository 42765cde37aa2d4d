package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func margherita() Product {
	return Product{
		ID:    "1",
		Name:  "Margherita",
		Types: []string{"thin", "traditional"},
		Sizes: []int{26, 30},
		Prices: []Price{
			{Type: "thin", Size: 26, Amount: 450},
			{Type: "thin", Size: 30, Amount: 520},
			{Type: "traditional", Size: 26, Amount: 430},
		},
	}
}

// ============================================================================
// Product
// ============================================================================

func TestProduct_Price(t *testing.T) {
	p := margherita()

	amount, ok := p.Price("thin", 30)
	assert.True(t, ok)
	assert.Equal(t, int64(520), amount)

	_, ok = p.Price("traditional", 30)
	assert.False(t, ok)
}

func TestProduct_BasePrice(t *testing.T) {
	assert.Equal(t, int64(430), margherita().BasePrice())
	assert.Equal(t, int64(0), Product{}.BasePrice())
}

func TestProduct_Offers(t *testing.T) {
	p := margherita()
	assert.True(t, p.Offers("thin", 26))
	assert.False(t, p.Offers("traditional", 30), "no price for the pair")
	assert.False(t, p.Offers("stuffed", 26), "type not listed")

	p.Sizes = []int{30}
	assert.False(t, p.Offers("thin", 26), "size no longer listed")
}

// ============================================================================
// Cart entries
// ============================================================================

func TestCartEntry_CountAndTotal(t *testing.T) {
	e := CartEntry{Lines: []CartLineSelection{
		{Type: "thin", Size: 26, Quantity: 2, UnitPrice: 450},
		{Type: "thin", Size: 30, Quantity: 1, UnitPrice: 520},
	}}
	assert.Equal(t, 3, e.Count())
	assert.Equal(t, int64(1420), e.Total())
}

func TestCartEntry_EmptyIsZero(t *testing.T) {
	var e CartEntry
	assert.Equal(t, 0, e.Count())
	assert.Equal(t, int64(0), e.Total())
}

func TestCartEntry_LineIndex(t *testing.T) {
	e := CartEntry{Lines: []CartLineSelection{{Type: "thin", Size: 26}, {Type: "thin", Size: 30}}}
	assert.Equal(t, 1, e.LineIndex("thin", 30))
	assert.Equal(t, -1, e.LineIndex("traditional", 30))
}

// ============================================================================
// Filter and load state
// ============================================================================

func TestDefaultFilter(t *testing.T) {
	f := DefaultFilter()
	assert.Equal(t, "all", f.Category)
	assert.Equal(t, SortPopularity, f.SortBy)
}

func TestLoadState_ZeroValueIsLoading(t *testing.T) {
	var s LoadState
	assert.Equal(t, StatusLoading, s.Status)
	assert.False(t, s.IsLoaded())
}

func TestLoadState_Constructors(t *testing.T) {
	assert.True(t, Loaded().IsLoaded())
	assert.False(t, Loading().IsLoaded())

	f := Failed("upstream timeout")
	assert.True(t, f.IsFailed())
	assert.False(t, f.IsLoaded())
	assert.Equal(t, "failed: upstream timeout", f.String())
	assert.Equal(t, "LoadStatus(9)", LoadStatus(9).String())
}

func TestLoadState_JSON(t *testing.T) {
	b, err := json.Marshal(Failed("boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"failed","reason":"boom"}`, string(b))

	b, err = json.Marshal(Loaded())
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"loaded"}`, string(b))
}
