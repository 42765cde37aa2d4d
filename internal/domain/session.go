package domain

import "time"

// SessionSnapshot is the persisted part of a browsing session. Catalog
// contents are not persisted; a restored session refetches.
type SessionSnapshot struct {
	ID        string      `json:"id"`
	Filter    FilterState `json:"filter"`
	Cart      []CartEntry `json:"cart"`
	UpdatedAt time.Time   `json:"updated_at"`
}
