package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/utafrali/pizzashop/internal/domain"
)

var (
	fetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_catalog_fetch_total",
			Help: "Catalog fetches by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	fetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_catalog_fetch_duration_seconds",
			Help:    "Catalog fetch latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"source"},
	)
)

// Instrumented wraps a Fetcher with a span and Prometheus metrics.
type Instrumented struct {
	next   Fetcher
	source string
	tracer trace.Tracer
}

// Instrument labels next's metrics and spans with source.
func Instrument(next Fetcher, source string) *Instrumented {
	return &Instrumented{
		next:   next,
		source: source,
		tracer: otel.Tracer("github.com/utafrali/pizzashop/internal/catalog"),
	}
}

func (i *Instrumented) Fetch(ctx context.Context, category string, sortBy domain.SortKey) ([]domain.Product, error) {
	ctx, span := i.tracer.Start(ctx, "catalog.Fetch",
		trace.WithAttributes(
			attribute.String("catalog.source", i.source),
			attribute.String("catalog.category", category),
			attribute.String("catalog.sort_by", string(sortBy)),
		),
	)
	defer span.End()

	start := time.Now()
	products, err := i.next.Fetch(ctx, category, sortBy)
	fetchDuration.WithLabelValues(i.source).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		fetchTotal.WithLabelValues(i.source, "ok").Inc()
		span.SetAttributes(attribute.Int("catalog.products", len(products)))
	case errors.Is(err, context.Canceled):
		fetchTotal.WithLabelValues(i.source, "canceled").Inc()
	default:
		fetchTotal.WithLabelValues(i.source, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return products, err
}
