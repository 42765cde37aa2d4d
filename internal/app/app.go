package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/pizzashop/internal/catalog"
	"github.com/utafrali/pizzashop/internal/catalog/httpcatalog"
	pgcatalog "github.com/utafrali/pizzashop/internal/catalog/postgres"
	"github.com/utafrali/pizzashop/internal/config"
	"github.com/utafrali/pizzashop/internal/event"
	handler "github.com/utafrali/pizzashop/internal/handler/http"
	"github.com/utafrali/pizzashop/internal/repository"
	"github.com/utafrali/pizzashop/internal/repository/memory"
	redisrepo "github.com/utafrali/pizzashop/internal/repository/redis"
	"github.com/utafrali/pizzashop/internal/service"
	"github.com/utafrali/pizzashop/pkg/database"
	"github.com/utafrali/pizzashop/pkg/health"
	"github.com/utafrali/pizzashop/pkg/httpclient"
	pkgkafka "github.com/utafrali/pizzashop/pkg/kafka"
	"github.com/utafrali/pizzashop/pkg/middleware"
	"github.com/utafrali/pizzashop/pkg/tracing"
)

const (
	serviceName     = "storefront"
	janitorInterval = time.Minute
)

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	pool     *pgxpool.Pool
	rdb      *redis.Client
	producer *pkgkafka.Producer
	sessions *memory.SessionRepository

	storefront     *service.StorefrontService
	httpServer     *http.Server
	stopTracer     func(context.Context) error
	stopBackground context.CancelFunc
	shutdownOnce   sync.Once
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	healthHandler := health.NewHandler()

	stopTracer, err := tracing.InitTracer(ctx, cfg.Tracing(serviceName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.stopTracer = stopTracer

	fetcher, err := a.catalogSource(ctx, healthHandler)
	if err != nil {
		a.closeClients()
		return nil, err
	}

	repo, err := a.sessionRepository(ctx, healthHandler)
	if err != nil {
		a.closeClients()
		return nil, err
	}

	var publisher event.Publisher = event.NopPublisher{}
	if cfg.EventsEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		publisher = a.producer
		healthHandler.Register("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	a.storefront = service.NewStorefrontService(
		catalog.Instrument(fetcher, cfg.CatalogSource),
		repo,
		event.NewProducer(publisher, logger),
		logger,
		service.Options{
			Categories:       cfg.MenuCategories(),
			SortKeys:         cfg.MenuSortKeys(),
			DefaultFilter:    cfg.DefaultFilter(),
			PlaceholderCount: cfg.PlaceholderCount,
			FetchTimeout:     cfg.CatalogFetchTimeout,
		},
	)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	a.stopBackground = stopBackground

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.AllowCredentials = true
	cors.Environment = cfg.Environment

	router := handler.NewRouter(bgCtx, a.storefront, healthHandler, logger, handler.RouterConfig{
		ServiceName:    serviceName,
		CORS:           cors,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		RequestTimeout: cfg.RequestTimeout,
		SessionTTL:     cfg.SessionTTL(),
		SecureCookies:  cfg.Environment == "production",
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

func (a *App) catalogSource(ctx context.Context, h *health.Handler) (catalog.Fetcher, error) {
	all := a.cfg.AllCategory()

	switch a.cfg.CatalogSource {
	case config.SourceHTTP:
		bc := httpclient.NewBreakerClient(
			httpclient.New(httpclient.DefaultConfig()),
			httpclient.DefaultBreakerConfig("catalog"),
			a.logger,
		)
		h.Register("catalog", func(context.Context) error {
			if bc.State() == gobreaker.StateOpen {
				return httpclient.ErrCircuitOpen
			}
			return nil
		})
		a.logger.Info("catalog source: http", slog.String("base_url", a.cfg.CatalogBaseURL))
		return httpcatalog.New(bc, a.cfg.CatalogBaseURL, all), nil

	case config.SourcePostgres:
		pgCfg := a.cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.pool = pool

		if err := database.EnsureSchema(ctx, pool, pgcatalog.Schema, a.logger); err != nil {
			return nil, fmt.Errorf("ensure catalog schema: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
		h.Register("postgres", pool.Ping)
		a.logger.Info("catalog source: postgres", slog.String("host", pgCfg.Host), slog.String("db", pgCfg.DBName))
		return pgcatalog.New(pool, all, database.QueryTracer{
			System:        "postgresql",
			SlowThreshold: a.cfg.SlowQueryThreshold,
			Logger:        a.logger,
		}), nil

	default:
		products, err := catalog.DefaultMenu()
		if err != nil {
			return nil, err
		}
		a.logger.Info("catalog source: bundled menu", slog.Int("pizzas", len(products)))
		return catalog.NewMemory(products, all), nil
	}
}

func (a *App) sessionRepository(ctx context.Context, h *health.Handler) (repository.SessionRepository, error) {
	if a.cfg.SessionStore == config.StoreRedis {
		rdb, err := database.NewRedisClient(ctx, a.cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		h.Register("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		a.logger.Info("connected to Redis",
			slog.String("addr", a.cfg.Redis().Addr()),
			slog.Int("db", a.cfg.RedisDB),
		)
		return redisrepo.NewSessionRepository(rdb, a.cfg.SessionTTL()), nil
	}

	a.sessions = memory.NewSessionRepository(a.cfg.SessionTTL())
	return a.sessions, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and the session janitor and blocks until the
// context is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.runJanitor(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown signal received")
		return a.Shutdown()
	})

	return g.Wait()
}

func (a *App) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep()
		}
	}
}

// sweep evicts idle in-memory sessions and expired memory snapshots.
func (a *App) sweep() {
	evicted := a.storefront.EvictIdle(a.cfg.SessionIdleTimeout)
	var expired int
	if a.sessions != nil {
		expired = a.sessions.Sweep()
	}
	if evicted > 0 || expired > 0 {
		a.logger.Debug("session janitor",
			slog.Int("evicted", evicted),
			slog.Int("expired_snapshots", expired),
			slog.Int("active", a.storefront.Len()),
		)
	}
}

// Shutdown gracefully stops all components. Calls after the first are no-ops.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(a.shutdown)
	return nil
}

func (a *App) shutdown() {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	a.storefront.Close()
	a.stopBackground()
	a.closeClients()

	if err := a.stopTracer(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
}

func (a *App) closeClients() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
