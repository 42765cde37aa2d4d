package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/utafrali/pizzashop/internal/domain"
)

//go:embed menu.json
var menuJSON []byte

// Memory serves a fixed menu from memory. It filters by category and leaves
// ordering to the view.
type Memory struct {
	products    []domain.Product
	allCategory string
}

// NewMemory returns a source over products.
func NewMemory(products []domain.Product, allCategory string) *Memory {
	return &Memory{products: slices.Clone(products), allCategory: allCategory}
}

// DefaultMenu decodes the menu bundled with the binary.
func DefaultMenu() ([]domain.Product, error) {
	var products []domain.Product
	if err := json.Unmarshal(menuJSON, &products); err != nil {
		return nil, fmt.Errorf("decode bundled menu: %w", err)
	}
	return products, nil
}

func (m *Memory) Fetch(ctx context.Context, category string, _ domain.SortKey) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if category == m.allCategory {
		return slices.Clone(m.products), nil
	}
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}
