package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/utafrali/pizzashop/internal/domain"
	pkgconfig "github.com/utafrali/pizzashop/pkg/config"
	"github.com/utafrali/pizzashop/pkg/database"
	"github.com/utafrali/pizzashop/pkg/slug"
	"github.com/utafrali/pizzashop/pkg/tracing"
)

// Catalog sources.
const (
	SourceMemory   = "memory"
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

// Session stores.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds all configuration for the storefront service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int           `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	RequestTimeout     time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"15s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofAllowedCIDRs  []string      `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`
	RateLimitRPS       float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst     int           `env:"RATE_LIMIT_BURST" envDefault:"40"`

	// Catalog
	CatalogSource       string        `env:"CATALOG_SOURCE" envDefault:"memory"`
	CatalogBaseURL      string        `env:"CATALOG_BASE_URL"`
	CatalogFetchTimeout time.Duration `env:"CATALOG_FETCH_TIMEOUT" envDefault:"5s"`

	// Postgres
	PostgresHost       string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort       int           `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser       string        `env:"POSTGRES_USER" envDefault:"pizzashop"`
	PostgresPassword   string        `env:"POSTGRES_PASSWORD" envDefault:"pizzashop"`
	PostgresDB         string        `env:"POSTGRES_DB" envDefault:"pizzashop"`
	PostgresSSLMode    string        `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxConns   int32         `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	SlowQueryThreshold time.Duration `env:"POSTGRES_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Sessions
	SessionStore       string        `env:"SESSION_STORE" envDefault:"memory"`
	SessionTTLHours    int           `env:"SESSION_TTL_HOURS" envDefault:"168"`
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka
	EventsEnabled bool     `env:"EVENTS_ENABLED" envDefault:"false"`
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Menu
	Categories       []string `env:"CATEGORIES" envDefault:"All,Meat,Vegetarian,Grill,Spicy,Calzone" envSeparator:","`
	SortKeys         []string `env:"SORT_KEYS" envDefault:"popularity,price,alphabet" envSeparator:","`
	DefaultSort      string   `env:"DEFAULT_SORT" envDefault:"popularity"`
	PlaceholderCount int      `env:"PLACEHOLDER_COUNT" envDefault:"10"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromMap is Load reading vars instead of the process environment.
func LoadFromMap(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFromMap(cfg, vars); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.CatalogSource {
	case SourceMemory, SourcePostgres:
	case SourceHTTP:
		if c.CatalogBaseURL == "" {
			return fmt.Errorf("CATALOG_BASE_URL is required when CATALOG_SOURCE=http")
		}
	default:
		return fmt.Errorf("unknown CATALOG_SOURCE %q", c.CatalogSource)
	}
	if c.SessionStore != StoreMemory && c.SessionStore != StoreRedis {
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}
	if c.CatalogFetchTimeout <= 0 {
		return fmt.Errorf("CATALOG_FETCH_TIMEOUT must be positive")
	}
	if c.SessionTTLHours < 1 {
		return fmt.Errorf("SESSION_TTL_HOURS must be at least 1")
	}
	if len(c.Categories) == 0 || slug.Generate(c.Categories[0]) == "" {
		return fmt.Errorf("CATEGORIES must start with a named all-products category")
	}
	if len(c.SortKeys) == 0 {
		return fmt.Errorf("SORT_KEYS must not be empty")
	}
	if !slices.Contains(c.SortKeys, c.DefaultSort) {
		return fmt.Errorf("DEFAULT_SORT %q is not one of SORT_KEYS", c.DefaultSort)
	}
	if c.PlaceholderCount < 0 {
		return fmt.Errorf("PLACEHOLDER_COUNT must not be negative")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.EventsEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_ENABLED=true")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0")
	}
	return nil
}

// MenuCategories turns the configured display names into categories with
// slug ids, dropping names that slug to nothing and duplicate ids. The first
// entry is the all-products category.
func (c *Config) MenuCategories() []domain.Category {
	out := make([]domain.Category, 0, len(c.Categories))
	seen := make(map[string]bool, len(c.Categories))
	for _, name := range c.Categories {
		id := slug.Generate(name)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, domain.Category{ID: id, Name: name})
	}
	return out
}

// AllCategory is the id of the first configured category.
func (c *Config) AllCategory() string {
	return slug.Generate(c.Categories[0])
}

// MenuSortKeys returns the configured sort keys.
func (c *Config) MenuSortKeys() []domain.SortKey {
	out := make([]domain.SortKey, 0, len(c.SortKeys))
	for _, k := range c.SortKeys {
		out = append(out, domain.SortKey(k))
	}
	return out
}

// DefaultFilter is the filter a new session starts with.
func (c *Config) DefaultFilter() domain.FilterState {
	return domain.FilterState{Category: c.AllCategory(), SortBy: domain.SortKey(c.DefaultSort)}
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSLMode
	pg.MaxConns = c.PostgresMaxConns
	return pg
}

func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{Host: c.RedisHost, Port: c.RedisPort, Password: c.RedisPassword, DB: c.RedisDB}
}

func (c *Config) Tracing(service string) tracing.Config {
	t := tracing.DefaultConfig(service)
	t.Environment = c.Environment
	t.OTLPEndpoint = c.OTELEndpoint
	t.SampleRate = c.OTELSampleRate
	t.Enabled = c.OTELEnabled
	return t
}
