package domain

// CartLineSelection is one (type, size) variant of a product in the cart.
// UnitPrice is captured when the line is first added.
type CartLineSelection struct {
	Type      string `json:"type"`
	Size      int    `json:"size"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// Subtotal is UnitPrice times Quantity.
func (l CartLineSelection) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// CartEntry groups all lines for one product, in the order they were added.
// An entry without lines is equivalent to the product being absent.
type CartEntry struct {
	ProductID string              `json:"product_id"`
	Name      string              `json:"name"`
	ImageURL  string              `json:"image_url,omitempty"`
	Lines     []CartLineSelection `json:"lines"`
}

// Count is the sum of quantities across the entry's lines.
func (e CartEntry) Count() int {
	var n int
	for _, l := range e.Lines {
		n += l.Quantity
	}
	return n
}

// Total is the sum of line subtotals in minor units.
func (e CartEntry) Total() int64 {
	var total int64
	for _, l := range e.Lines {
		total += l.Subtotal()
	}
	return total
}

// LineIndex returns the index of the (typ, size) line, or -1.
func (e CartEntry) LineIndex(typ string, size int) int {
	for i := range e.Lines {
		if e.Lines[i].Type == typ && e.Lines[i].Size == size {
			return i
		}
	}
	return -1
}
