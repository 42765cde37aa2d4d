package domain

// Price is the amount charged for one product variant, in minor units.
type Price struct {
	Type   string `json:"type"`
	Size   int    `json:"size"`
	Amount int64  `json:"amount"`
}

// Product is a pizza as returned by the catalog. Products are never mutated
// after a fetch; a new fetch replaces the whole list.
type Product struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ImageURL string   `json:"image_url"`
	Category string   `json:"category"`
	Rating   int      `json:"rating"`
	Types    []string `json:"types"`
	Sizes    []int    `json:"sizes"`
	Prices   []Price  `json:"prices"`
}

// Price returns the amount for the (typ, size) variant and whether the
// product is offered in it.
func (p Product) Price(typ string, size int) (int64, bool) {
	for _, pr := range p.Prices {
		if pr.Type == typ && pr.Size == size {
			return pr.Amount, true
		}
	}
	return 0, false
}

// BasePrice is the cheapest variant's amount, used for "from" labels and the
// price ordering. Zero when the product has no prices.
func (p Product) BasePrice() int64 {
	if len(p.Prices) == 0 {
		return 0
	}
	lowest := p.Prices[0].Amount
	for _, pr := range p.Prices[1:] {
		lowest = min(lowest, pr.Amount)
	}
	return lowest
}

// Offers reports whether typ and size are both listed for the product and
// a price exists for the pair.
func (p Product) Offers(typ string, size int) bool {
	_, ok := p.Price(typ, size)
	return ok && contains(p.Types, typ) && contains(p.Sizes, size)
}

func contains[T comparable](s []T, v T) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
