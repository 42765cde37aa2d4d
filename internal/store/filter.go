// Package store holds the per-session state containers: the filter, the
// catalog and the cart. Stores are safe for concurrent use and never validate
// their inputs; that is the caller's job.
package store

import (
	"sync"

	"github.com/utafrali/pizzashop/internal/domain"
)

// Filter holds the active category and sort key.
type Filter struct {
	mu    sync.RWMutex
	state domain.FilterState
}

// NewFilter returns a store initialised to initial.
func NewFilter(initial domain.FilterState) *Filter {
	return &Filter{state: initial}
}

// SetCategory replaces the category, leaving the sort key untouched. It
// reports whether the value changed.
func (f *Filter) SetCategory(category string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Category == category {
		return false
	}
	f.state.Category = category
	return true
}

// SetSortBy replaces the sort key, leaving the category untouched. It
// reports whether the value changed.
func (f *Filter) SetSortBy(key domain.SortKey) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.SortBy == key {
		return false
	}
	f.state.SortBy = key
	return true
}

func (f *Filter) State() domain.FilterState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}
