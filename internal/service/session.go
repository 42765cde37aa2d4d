package service

import (
	"context"
	"sync"
	"time"

	"github.com/utafrali/pizzashop/internal/domain"
	"github.com/utafrali/pizzashop/internal/store"
)

// Session is one browsing session: its own filter, catalog and cart.
type Session struct {
	ID      string
	Filter  *store.Filter
	Catalog *store.Catalog
	Cart    *store.Cart

	mu       sync.Mutex
	cancel   context.CancelFunc
	lastSeen time.Time
}

func newSession(id string, filter domain.FilterState, now time.Time) *Session {
	return &Session{
		ID:       id,
		Filter:   store.NewFilter(filter),
		Catalog:  store.NewCatalog(),
		Cart:     store.NewCart(),
		lastSeen: now,
	}
}

// snapshot captures what survives a restart.
func (s *Session) snapshot(now time.Time) *domain.SessionSnapshot {
	return &domain.SessionSnapshot{
		ID:        s.ID,
		Filter:    s.Filter.State(),
		Cart:      s.Cart.Entries(),
		UpdatedAt: now,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// beginFetch starts a new catalog load and returns its generation, the
// filter to fetch and a context bounded by timeout. The fetch it supersedes
// is cancelled.
func (s *Session) beginFetch(parent context.Context, timeout time.Duration) (uint64, domain.FilterState, context.Context, context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	s.cancel = cancel
	return s.Catalog.BeginLoad(), s.Filter.State(), ctx, cancel
}

func (s *Session) cancelFetch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
