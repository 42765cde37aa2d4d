package view

import (
	"cmp"
	"slices"
	"strings"

	"github.com/utafrali/pizzashop/internal/domain"
)

// Comparator orders two products the way slices.SortStableFunc expects.
type Comparator func(a, b domain.Product) int

// Sorters is the registry of sort keys the catalog can be ordered by.
type Sorters map[domain.SortKey]Comparator

// DefaultSorters returns the built-in orderings: popularity (rating, best
// first), price (cheapest variant, lowest first) and alphabet (name,
// case-insensitive).
func DefaultSorters() Sorters {
	return Sorters{
		domain.SortPopularity: byRatingDesc,
		domain.SortPrice:      byBasePriceAsc,
		domain.SortAlphabet:   byNameAsc,
	}
}

// Only keeps the comparators for keys, dropping unknown ones.
func (s Sorters) Only(keys []domain.SortKey) Sorters {
	out := make(Sorters, len(keys))
	for _, k := range keys {
		if c, ok := s[k]; ok {
			out[k] = c
		}
	}
	return out
}

// Has reports whether key has a registered comparator.
func (s Sorters) Has(key domain.SortKey) bool {
	_, ok := s[key]
	return ok
}

// Sort orders products in place by key. Ties keep their relative order; an
// unknown key leaves the slice as is.
func (s Sorters) Sort(products []domain.Product, key domain.SortKey) {
	c, ok := s[key]
	if !ok {
		return
	}
	slices.SortStableFunc(products, c)
}

func byRatingDesc(a, b domain.Product) int {
	return cmp.Compare(b.Rating, a.Rating)
}

func byBasePriceAsc(a, b domain.Product) int {
	return cmp.Compare(a.BasePrice(), b.BasePrice())
}

func byNameAsc(a, b domain.Product) int {
	return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
}
