package store

import (
	"slices"
	"sync"

	"github.com/utafrali/pizzashop/internal/domain"
)

// Catalog holds the product list and the state of the fetch that produced it.
//
// Every fetch is tagged with a generation issued by BeginLoad. Only the most
// recent generation may complete or fail the load, so a slow response for an
// old filter can never overwrite the result for the current one.
type Catalog struct {
	mu       sync.RWMutex
	products []domain.Product
	state    domain.LoadState
	gen      uint64
}

// NewCatalog returns an empty catalog in the Loading state.
func NewCatalog() *Catalog {
	return &Catalog{state: domain.Loading()}
}

// BeginLoad moves the catalog to Loading and returns the generation the
// caller must present to CompleteLoad or FailLoad.
func (c *Catalog) BeginLoad() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.state = domain.Loading()
	return c.gen
}

// CompleteLoad replaces the product list with products and marks the
// catalog Loaded. It returns false, changing nothing, when gen is stale.
func (c *Catalog) CompleteLoad(gen uint64, products []domain.Product) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.products = slices.Clone(products)
	c.state = domain.Loaded()
	return true
}

// FailLoad marks the catalog Failed with reason, keeping the previous list.
// It returns false, changing nothing, when gen is stale.
func (c *Catalog) FailLoad(gen uint64, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.state = domain.Failed(reason)
	return true
}

func (c *Catalog) IsLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.IsLoaded()
}

func (c *Catalog) State() domain.LoadState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Generation returns the latest issued generation; zero before any load.
func (c *Catalog) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// Products returns a copy of the current list, which may be stale when the
// state is not Loaded.
func (c *Catalog) Products() []domain.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.products)
}

// Snapshot returns state and products read under one lock.
func (c *Catalog) Snapshot() (domain.LoadState, []domain.Product) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, slices.Clone(c.products)
}

// Lookup finds a product in the current list by id.
func (c *Catalog) Lookup(id string) (domain.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}
