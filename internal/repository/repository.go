package repository

import (
	"context"

	"github.com/utafrali/pizzashop/internal/domain"
)

// SessionRepository persists session snapshots between requests, restarts
// and replicas.
type SessionRepository interface {
	// Get returns the snapshot for id, or an apperrors NotFound error.
	Get(ctx context.Context, id string) (*domain.SessionSnapshot, error)

	// Save stores the snapshot, replacing any previous one and resetting its TTL.
	Save(ctx context.Context, s *domain.SessionSnapshot) error

	// Delete removes the snapshot for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}
