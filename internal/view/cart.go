package view

import "github.com/utafrali/pizzashop/internal/domain"

// CartLister is the part of the cart store the cart page needs.
type CartLister interface {
	Entries() []domain.CartEntry
}

// CartLine is one row of the cart page.
type CartLine struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	ImageURL  string `json:"image_url,omitempty"`
	Type      string `json:"type"`
	Size      int    `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
}

// CartView is the cart page.
type CartView struct {
	Lines      []CartLine `json:"lines"`
	TotalCount int        `json:"total_count"`
	TotalPrice int64      `json:"total_price"`
}

// ComposeCart flattens cart entries into rows, products in the order they
// were first added and lines in the order they were chosen.
func ComposeCart(cart CartLister) CartView {
	v := CartView{Lines: []CartLine{}}
	for _, e := range cart.Entries() {
		for _, l := range e.Lines {
			v.Lines = append(v.Lines, CartLine{
				ProductID: e.ProductID,
				Name:      e.Name,
				ImageURL:  e.ImageURL,
				Type:      l.Type,
				Size:      l.Size,
				Quantity:  l.Quantity,
				UnitPrice: l.UnitPrice,
				Subtotal:  l.Subtotal(),
			})
			v.TotalCount += l.Quantity
			v.TotalPrice += l.Subtotal()
		}
	}
	return v
}
