package store

import (
	"slices"
	"sync"

	"github.com/utafrali/pizzashop/internal/domain"
)

// Cart maps product ids to cart entries. Entries keep the order in which
// products were first added; empty entries are removed.
type Cart struct {
	mu      sync.RWMutex
	entries map[string]*domain.CartEntry
	order   []string
}

func NewCart() *Cart {
	return &Cart{entries: make(map[string]*domain.CartEntry)}
}

// AddSelection increments the (typ, size) line of product by one, creating
// the entry and the line as needed, and returns the updated line. The unit
// price is taken from the product's price table when the line is created.
func (c *Cart) AddSelection(product domain.Product, typ string, size int) domain.CartLineSelection {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[product.ID]
	if !ok {
		e = &domain.CartEntry{ProductID: product.ID, Name: product.Name, ImageURL: product.ImageURL}
		c.entries[product.ID] = e
		c.order = append(c.order, product.ID)
	}

	i := e.LineIndex(typ, size)
	if i < 0 {
		price, _ := product.Price(typ, size)
		e.Lines = append(e.Lines, domain.CartLineSelection{Type: typ, Size: size, UnitPrice: price})
		i = len(e.Lines) - 1
	}
	e.Lines[i].Quantity++
	return e.Lines[i]
}

// Count is the sum of quantities for productID, zero when it is not in the cart.
func (c *Cart) Count(productID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[productID]
	if !ok {
		return 0
	}
	return e.Count()
}

// RemoveSelection decrements the (typ, size) line by one, dropping the line at
// zero and the entry once it has no lines. It reports whether the line existed.
func (c *Cart) RemoveSelection(productID, typ string, size int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, i := c.line(productID, typ, size)
	if e == nil {
		return false
	}
	e.Lines[i].Quantity--
	if e.Lines[i].Quantity <= 0 {
		c.dropLine(e, i)
	}
	return true
}

// RemoveLine drops the (typ, size) line whatever its quantity. It reports
// whether the line existed.
func (c *Cart) RemoveLine(productID, typ string, size int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, i := c.line(productID, typ, size)
	if e == nil {
		return false
	}
	c.dropLine(e, i)
	return true
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*domain.CartEntry)
	c.order = nil
}

// TotalCount is the number of units across the whole cart.
func (c *Cart) TotalCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int
	for _, e := range c.entries {
		n += e.Count()
	}
	return n
}

// TotalPrice is the cart total in minor units.
func (c *Cart) TotalPrice() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var total int64
	for _, e := range c.entries {
		total += e.Total()
	}
	return total
}

// Entries returns copies of all entries in insertion order.
func (c *Cart) Entries() []domain.CartEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.CartEntry, 0, len(c.order))
	for _, id := range c.order {
		e := *c.entries[id]
		e.Lines = slices.Clone(e.Lines)
		out = append(out, e)
	}
	return out
}

// Restore replaces the cart contents with entries, skipping lines with a
// non-positive quantity and entries left without lines.
func (c *Cart) Restore(entries []domain.CartEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*domain.CartEntry, len(entries))
	c.order = c.order[:0]
	for _, in := range entries {
		e := in
		e.Lines = slices.DeleteFunc(slices.Clone(in.Lines), func(l domain.CartLineSelection) bool {
			return l.Quantity <= 0
		})
		if len(e.Lines) == 0 {
			continue
		}
		if _, dup := c.entries[e.ProductID]; dup {
			continue
		}
		c.entries[e.ProductID] = &e
		c.order = append(c.order, e.ProductID)
	}
}

func (c *Cart) line(productID, typ string, size int) (*domain.CartEntry, int) {
	e, ok := c.entries[productID]
	if !ok {
		return nil, -1
	}
	i := e.LineIndex(typ, size)
	if i < 0 {
		return nil, -1
	}
	return e, i
}

func (c *Cart) dropLine(e *domain.CartEntry, i int) {
	e.Lines = slices.Delete(e.Lines, i, i+1)
	if len(e.Lines) > 0 {
		return
	}
	delete(c.entries, e.ProductID)
	c.order = slices.DeleteFunc(c.order, func(id string) bool { return id == e.ProductID })
}
