package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/pizzashop/internal/domain"
)

func TestFilter_SettersAreIndependent(t *testing.T) {
	a := NewFilter(domain.DefaultFilter())
	a.SetCategory("vegetarian")
	a.SetSortBy(domain.SortPrice)

	b := NewFilter(domain.DefaultFilter())
	b.SetSortBy(domain.SortPrice)
	b.SetCategory("vegetarian")

	assert.Equal(t, a.State(), b.State())
	assert.Equal(t, domain.FilterState{Category: "vegetarian", SortBy: domain.SortPrice}, a.State())
}

func TestFilter_SetCategoryLeavesSortUntouched(t *testing.T) {
	f := NewFilter(domain.FilterState{Category: "all", SortBy: domain.SortAlphabet})
	f.SetCategory("meat")
	assert.Equal(t, domain.SortAlphabet, f.State().SortBy)
}

func TestFilter_IdempotentSetCategory(t *testing.T) {
	f := NewFilter(domain.DefaultFilter())

	assert.True(t, f.SetCategory("meat"))
	first := f.State()
	assert.False(t, f.SetCategory("meat"))
	assert.Equal(t, first, f.State())
}

func TestFilter_PassesUnknownValuesThrough(t *testing.T) {
	f := NewFilter(domain.DefaultFilter())
	f.SetCategory("no-such-category")
	f.SetSortBy("by-mood")
	assert.Equal(t, domain.FilterState{Category: "no-such-category", SortBy: "by-mood"}, f.State())
}
