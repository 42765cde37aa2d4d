// Command seed loads a menu into the Postgres catalog used when
// CATALOG_SOURCE=postgres. Without -file it loads the bundled menu.
// Existing pizzas with the same id are updated in place.
//
// Run: go run ./cmd/seed [-file menu.json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/utafrali/pizzashop/internal/catalog"
	pgcatalog "github.com/utafrali/pizzashop/internal/catalog/postgres"
	"github.com/utafrali/pizzashop/internal/config"
	"github.com/utafrali/pizzashop/internal/domain"
	"github.com/utafrali/pizzashop/pkg/database"
	"github.com/utafrali/pizzashop/pkg/logger"
)

func main() {
	file := flag.String("file", "", "JSON file with the pizzas to load (defaults to the bundled menu)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("storefront-seed", cfg.LogLevel)

	if err := run(*file, cfg, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(file string, cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	products, err := loadMenu(file)
	if err != nil {
		return err
	}

	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := database.EnsureSchema(ctx, pool, pgcatalog.Schema, log); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	repo := pgcatalog.New(pool, cfg.AllCategory(), database.QueryTracer{System: "postgresql"})
	if err := repo.Upsert(ctx, products); err != nil {
		return err
	}

	log.Info("menu seeded", slog.Int("pizzas", len(products)), slog.String("db", pgCfg.DBName))
	return nil
}

func loadMenu(file string) ([]domain.Product, error) {
	if file == "" {
		return catalog.DefaultMenu()
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read menu: %w", err)
	}
	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode menu %s: %w", file, err)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("menu %s has no pizzas", file)
	}
	return products, nil
}
