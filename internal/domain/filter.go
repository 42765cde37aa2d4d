package domain

// SortKey names an ordering rule for the catalog view.
type SortKey string

const (
	SortPopularity SortKey = "popularity"
	SortPrice      SortKey = "price"
	SortAlphabet   SortKey = "alphabet"
)

// DefaultCategory is the id of the category that matches every product.
const DefaultCategory = "all"

// FilterState is the active category and sort key of one session. The two
// fields are independent.
type FilterState struct {
	Category string  `json:"category"`
	SortBy   SortKey `json:"sort_by"`
}

// DefaultFilter is the state a new session starts in.
func DefaultFilter() FilterState {
	return FilterState{Category: DefaultCategory, SortBy: SortPopularity}
}

// Category is a menu section shown in the category bar.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
