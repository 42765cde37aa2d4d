package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the part of pgxpool.Pool and pgx.Tx that schema setup needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// isConnectionError reports whether err looks like a transient network
// failure rather than a SQL error.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, p := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"dial tcp",
		"EOF",
		"connection timed out",
		"server closed the connection unexpectedly",
		"could not connect",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// EnsureSchema runs each statement in order. Statements must be idempotent
// (CREATE ... IF NOT EXISTS). A statement failing on a connection error is
// retried with backoff; SQL errors are returned immediately.
func EnsureSchema(ctx context.Context, db Execer, statements []string, logger *slog.Logger) error {
	for i, stmt := range statements {
		if err := execWithRetry(ctx, db, stmt, logger); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

func execWithRetry(ctx context.Context, db Execer, stmt string, logger *slog.Logger) error {
	var err error
	for attempt := range defaultRetryAttempts {
		_, err = db.Exec(ctx, stmt)
		if err == nil || !isConnectionError(err) || attempt == defaultRetryAttempts-1 {
			return err
		}

		wait := retryBackoff(attempt)
		logger.Warn("schema statement failed on connection error, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}
