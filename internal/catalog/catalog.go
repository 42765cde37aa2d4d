// Package catalog defines how the storefront obtains pizzas and ships the
// in-process menu source. HTTP and Postgres sources live in subpackages.
package catalog

import (
	"context"
	"errors"

	"github.com/utafrali/pizzashop/internal/domain"
	apperrors "github.com/utafrali/pizzashop/pkg/errors"
	"github.com/utafrali/pizzashop/pkg/httpclient"
)

// Fetcher returns the products matching category, ordered by sortBy where
// the source supports it. allCategory is handled by the source: it means
// "no category filter".
type Fetcher interface {
	Fetch(ctx context.Context, category string, sortBy domain.SortKey) ([]domain.Product, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, category string, sortBy domain.SortKey) ([]domain.Product, error)

func (f FetcherFunc) Fetch(ctx context.Context, category string, sortBy domain.SortKey) ([]domain.Product, error) {
	return f(ctx, category, sortBy)
}

// Reason turns a fetch error into the short text shown next to a retry button.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "catalog request timed out"
	case httpclient.IsOpen(err), errors.Is(err, apperrors.ErrUnavailable):
		return "catalog service is unavailable"
	default:
		return "catalog could not be loaded"
	}
}
