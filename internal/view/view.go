// Package view derives what a client renders from a session's stores. It
// holds no state; every function is a pure read of its inputs.
package view

import (
	"slices"

	"github.com/utafrali/pizzashop/internal/domain"
)

// CatalogReader is the part of the catalog store the view needs.
type CatalogReader interface {
	Snapshot() (domain.LoadState, []domain.Product)
}

// FilterReader is the part of the filter store the view needs.
type FilterReader interface {
	State() domain.FilterState
}

// CartReader is the part of the cart store the view needs.
type CartReader interface {
	Count(productID string) int
	TotalCount() int
	TotalPrice() int64
}

// Options configure Compose.
type Options struct {
	// AllCategory is the category id that disables category filtering.
	AllCategory string
	// PlaceholderCount is how many placeholders stand in for products while
	// the catalog is not loaded.
	PlaceholderCount int
	// Sorters maps each sort key to its ordering. Keys without an entry keep
	// fetch order.
	Sorters Sorters
}

// Item is one product card.
type Item struct {
	domain.Product
	BasePrice int64 `json:"base_price"`
	CartCount int   `json:"cart_count"`
}

// CartBadge is the cart summary shown in the page header.
type CartBadge struct {
	Count int   `json:"count"`
	Total int64 `json:"total"`
}

// CatalogView is the home page: either products or placeholders.
type CatalogView struct {
	State        string             `json:"state"`
	Error        string             `json:"error,omitempty"`
	Filter       domain.FilterState `json:"filter"`
	Items        []Item             `json:"items"`
	Placeholders int                `json:"placeholders"`
	Cart         CartBadge          `json:"cart"`
}

// Compose filters the catalog by the active category, orders it by the
// active sort key and attaches each product's cart quantity. While the
// catalog is not loaded it yields opts.PlaceholderCount placeholders and no
// items, however many stale products the store still holds.
func Compose(catalog CatalogReader, filter FilterReader, cart CartReader, opts Options) CatalogView {
	state, products := catalog.Snapshot()
	f := filter.State()

	v := CatalogView{
		State:  state.Status.String(),
		Error:  state.Reason,
		Filter: f,
		Items:  []Item{},
		Cart:   CartBadge{Count: cart.TotalCount(), Total: cart.TotalPrice()},
	}
	if !state.IsLoaded() {
		v.Placeholders = max(opts.PlaceholderCount, 0)
		return v
	}

	visible := FilterByCategory(products, f.Category, opts.AllCategory)
	opts.Sorters.Sort(visible, f.SortBy)

	for _, p := range visible {
		v.Items = append(v.Items, Item{Product: p, BasePrice: p.BasePrice(), CartCount: cart.Count(p.ID)})
	}
	return v
}

// FilterByCategory returns the products in category, or a copy of all of
// them when category is the all-category id.
func FilterByCategory(products []domain.Product, category, all string) []domain.Product {
	if category == all {
		return slices.Clone(products)
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}
