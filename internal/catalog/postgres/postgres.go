// Package postgres serves the catalog from a pizzas table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/utafrali/pizzashop/internal/domain"
	"github.com/utafrali/pizzashop/pkg/database"
)

// Schema creates the pizzas table. Every statement is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS pizzas (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		image_url  TEXT NOT NULL DEFAULT '',
		category   TEXT NOT NULL,
		rating     INTEGER NOT NULL DEFAULT 0,
		types      TEXT[] NOT NULL,
		sizes      INTEGER[] NOT NULL,
		prices     JSONB NOT NULL,
		position   INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS pizzas_category_idx ON pizzas (category)`,
}

// DB is satisfied by *pgxpool.Pool and pgxmock.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const selectPizzas = `SELECT id, name, image_url, category, rating, types, sizes, prices FROM pizzas`

// orderBy maps sort keys to ORDER BY clauses. Only these strings are ever
// concatenated into SQL.
var orderBy = map[domain.SortKey]string{
	domain.SortPopularity: "rating DESC, position",
	domain.SortPrice:      "(SELECT min((p->>'amount')::bigint) FROM jsonb_array_elements(prices) p), position",
	domain.SortAlphabet:   "lower(name), position",
}

// Repository reads and writes the pizzas table.
type Repository struct {
	db          DB
	allCategory string
	tracer      database.QueryTracer
}

func New(db DB, allCategory string, tracer database.QueryTracer) *Repository {
	return &Repository{db: db, allCategory: allCategory, tracer: tracer}
}

// Fetch selects the pizzas in category (all of them for the all-category),
// ordered by sortBy, falling back to menu position for unknown keys.
func (r *Repository) Fetch(ctx context.Context, category string, sortBy domain.SortKey) (products []domain.Product, err error) {
	query := selectPizzas
	var args []any
	if category != r.allCategory {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	order, ok := orderBy[sortBy]
	if !ok {
		order = "position"
	}
	query += " ORDER BY " + order

	ctx, end := r.tracer.Trace(ctx, "FetchPizzas", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pizzas: %w", err)
	}
	defer rows.Close()

	products = []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pizzas: %w", err)
	}
	return products, nil
}

func scanProduct(rows pgx.Rows) (domain.Product, error) {
	var (
		p      domain.Product
		rating int32
		sizes  []int32
		prices []byte
	)
	if err := rows.Scan(&p.ID, &p.Name, &p.ImageURL, &p.Category, &rating, &p.Types, &sizes, &prices); err != nil {
		return domain.Product{}, fmt.Errorf("scan pizza: %w", err)
	}
	if err := json.Unmarshal(prices, &p.Prices); err != nil {
		return domain.Product{}, fmt.Errorf("decode prices of pizza %s: %w", p.ID, err)
	}
	p.Rating = int(rating)
	p.Sizes = make([]int, len(sizes))
	for i, s := range sizes {
		p.Sizes[i] = int(s)
	}
	return p, nil
}

const upsertPizza = `INSERT INTO pizzas (id, name, image_url, category, rating, types, sizes, prices, position, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	image_url = EXCLUDED.image_url,
	category = EXCLUDED.category,
	rating = EXCLUDED.rating,
	types = EXCLUDED.types,
	sizes = EXCLUDED.sizes,
	prices = EXCLUDED.prices,
	position = EXCLUDED.position,
	updated_at = now()`

// Upsert writes products, recording their slice index as menu position.
func (r *Repository) Upsert(ctx context.Context, products []domain.Product) (err error) {
	ctx, end := r.tracer.Trace(ctx, "UpsertPizzas", upsertPizza)
	defer func() { end(err) }()

	for i, p := range products {
		prices, err := json.Marshal(p.Prices)
		if err != nil {
			return fmt.Errorf("encode prices of pizza %s: %w", p.ID, err)
		}
		sizes := make([]int32, len(p.Sizes))
		for j, s := range p.Sizes {
			sizes[j] = int32(s)
		}
		if _, err := r.db.Exec(ctx, upsertPizza,
			p.ID, p.Name, p.ImageURL, p.Category, int32(p.Rating), p.Types, sizes, prices, int32(i),
		); err != nil {
			return fmt.Errorf("upsert pizza %s: %w", p.ID, err)
		}
	}
	return nil
}
