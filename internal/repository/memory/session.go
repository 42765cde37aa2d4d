// Package memory keeps session snapshots in process memory. It suits a single
// replica and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/utafrali/pizzashop/internal/domain"
	apperrors "github.com/utafrali/pizzashop/pkg/errors"
)

type item struct {
	snapshot  domain.SessionSnapshot
	expiresAt time.Time
}

// SessionRepository implements repository.SessionRepository with a map.
// Expired snapshots are dropped lazily on read and by Sweep.
type SessionRepository struct {
	mu    sync.Mutex
	items map[string]item
	ttl   time.Duration
	now   func() time.Time
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	return &SessionRepository{items: make(map[string]item), ttl: ttl, now: time.Now}
}

func (r *SessionRepository) Get(_ context.Context, id string) (*domain.SessionSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok || r.expired(it) {
		delete(r.items, id)
		return nil, apperrors.NotFound("session", id)
	}
	s := clone(it.snapshot)
	return &s, nil
}

func (r *SessionRepository) Save(_ context.Context, s *domain.SessionSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[s.ID] = item{snapshot: clone(*s), expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *SessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

// Sweep drops expired snapshots and returns how many were removed.
func (r *SessionRepository) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, it := range r.items {
		if r.expired(it) {
			delete(r.items, id)
			n++
		}
	}
	return n
}

func (r *SessionRepository) expired(it item) bool {
	return r.ttl > 0 && !r.now().Before(it.expiresAt)
}

func clone(s domain.SessionSnapshot) domain.SessionSnapshot {
	entries := make([]domain.CartEntry, len(s.Cart))
	for i, e := range s.Cart {
		e.Lines = append([]domain.CartLineSelection(nil), e.Lines...)
		entries[i] = e
	}
	s.Cart = entries
	return s
}
