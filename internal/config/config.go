package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	pkgconfig "github.com/Asdisarson/ss/pkg/config"
	"github.com/Asdisarson/ss/pkg/database"
	"github.com/Asdisarson/ss/pkg/middleware"
)

// Catalog store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds all configuration for the catalog search service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"SEARCH_HTTP_PORT" envDefault:"8010"`

	// Catalog store selection (postgres, sqlite or memory)
	CatalogDriver string `env:"CATALOG_DRIVER" envDefault:"postgres"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"catalog"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"catalog_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"catalog"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// SQLite
	SQLitePath          string `env:"SQLITE_PATH" envDefault:"catalog.db"`
	SQLiteBusyTimeoutMs int    `env:"SQLITE_BUSY_TIMEOUT_MS" envDefault:"5000"`

	// Redis search cache
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	CacheEnabled         bool `env:"CACHE_ENABLED" envDefault:"true"`
	CacheTTLSeconds      int  `env:"CACHE_TTL_SECONDS" envDefault:"300"`
	CacheCompressBytes   int  `env:"CACHE_COMPRESS_THRESHOLD_BYTES" envDefault:"8192"`
	CacheBreakerFailures int  `env:"CACHE_BREAKER_FAILURES" envDefault:"5"`

	// Search behaviour
	SearchFuzzyEnabled   bool `env:"SEARCH_FUZZY_ENABLED" envDefault:"true"`
	SearchMaxQueryLength int  `env:"SEARCH_MAX_QUERY_LENGTH" envDefault:"256"`

	// Supplier API
	SupplierBaseURL        string `env:"SUPPLIER_BASE_URL" envDefault:"http://localhost:9000"`
	SupplierAPIKey         string `env:"SUPPLIER_API_KEY"`
	SupplierPageSize       int    `env:"SUPPLIER_PAGE_SIZE" envDefault:"500"`
	SupplierMaxPages       int    `env:"SUPPLIER_MAX_PAGES" envDefault:"1000"`
	SupplierTimeoutSeconds int    `env:"SUPPLIER_TIMEOUT_SECONDS" envDefault:"30"`

	// Sync scheduling; 0 disables the periodic sync.
	SyncIntervalMinutes int  `env:"SYNC_INTERVAL_MINUTES" envDefault:"0"`
	SyncOnStartup       bool `env:"SYNC_ON_STARTUP" envDefault:"false"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"catalog-search"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`

	// Upper bound for a synchronous POST /api/refresh.
	RefreshTimeoutSeconds int `env:"REFRESH_TIMEOUT_SECONDS" envDefault:"600"`

	// Per-client rate limits; a zero rate disables the limiter.
	RateLimitRPS              float64 `env:"RATE_LIMIT_RPS" envDefault:"50"`
	RateLimitBurst            int     `env:"RATE_LIMIT_BURST" envDefault:"100"`
	RefreshRateLimitPerMinute int     `env:"REFRESH_RATE_LIMIT_PER_MINUTE" envDefault:"6"`

	// HMAC secret for bearer tokens on POST /api/refresh; empty leaves the
	// endpoint guarded by the IP allowlist only.
	RefreshJWTSecret string `env:"REFRESH_JWT_SECRET"`

	// IP allowlists in CIDR notation
	RefreshAllowedCIDRs []string `env:"REFRESH_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
	PprofAllowedCIDRs   []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load search config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants. It runs as part of Load.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.CatalogDriver {
	case DriverPostgres:
		if c.PostgresHost == "" {
			return errors.New("POSTGRES_HOST is required")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("CATALOG_DRIVER must be one of postgres, sqlite, memory; got %q", c.CatalogDriver)
	}
	if c.CacheTTLSeconds <= 0 {
		return fmt.Errorf("CACHE_TTL_SECONDS must be > 0, got %d", c.CacheTTLSeconds)
	}
	if c.CacheCompressBytes <= 0 {
		return fmt.Errorf("CACHE_COMPRESS_THRESHOLD_BYTES must be > 0, got %d", c.CacheCompressBytes)
	}
	if c.CacheBreakerFailures <= 0 {
		return fmt.Errorf("CACHE_BREAKER_FAILURES must be > 0, got %d", c.CacheBreakerFailures)
	}
	if c.SearchMaxQueryLength <= 0 {
		return fmt.Errorf("SEARCH_MAX_QUERY_LENGTH must be > 0, got %d", c.SearchMaxQueryLength)
	}
	if u, err := url.Parse(c.SupplierBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SUPPLIER_BASE_URL must be an absolute URL, got %q", c.SupplierBaseURL)
	}
	if c.SupplierPageSize <= 0 || c.SupplierMaxPages <= 0 {
		return errors.New("SUPPLIER_PAGE_SIZE and SUPPLIER_MAX_PAGES must be > 0")
	}
	if c.SyncIntervalMinutes < 0 {
		return fmt.Errorf("SYNC_INTERVAL_MINUTES must be >= 0, got %d", c.SyncIntervalMinutes)
	}
	if c.RefreshTimeoutSeconds <= 0 {
		return fmt.Errorf("REFRESH_TIMEOUT_SECONDS must be > 0, got %d", c.RefreshTimeoutSeconds)
	}
	if c.RateLimitRPS < 0 || c.RefreshRateLimitPerMinute < 0 {
		return errors.New("RATE_LIMIT_RPS and REFRESH_RATE_LIMIT_PER_MINUTE must be >= 0")
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be > 0 when rate limiting is enabled, got %d", c.RateLimitBurst)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

// IsProduction reports whether detailed error messages must be hidden.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Postgres returns the pool configuration for the catalog database.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// SQLite returns the embedded database configuration.
func (c *Config) SQLite() database.SQLiteConfig {
	return database.SQLiteConfig{Path: c.SQLitePath, BusyTimeoutMs: c.SQLiteBusyTimeoutMs}
}

// Redis returns the cache client configuration.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Addr = c.RedisAddr
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// CacheTTL returns the search cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// SupplierTimeout returns the per-request supplier timeout.
func (c *Config) SupplierTimeout() time.Duration {
	return time.Duration(c.SupplierTimeoutSeconds) * time.Second
}

// SyncInterval returns the periodic sync interval, or 0 when disabled.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMinutes) * time.Minute
}

// RefreshTimeout returns the deadline for a manual catalog refresh.
func (c *Config) RefreshTimeout() time.Duration {
	return time.Duration(c.RefreshTimeoutSeconds) * time.Second
}

// SearchRateLimit returns the per-client limit for the read endpoints.
func (c *Config) SearchRateLimit() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{Limit: rate.Limit(c.RateLimitRPS), Burst: c.RateLimitBurst}
}

// RefreshRateLimit returns the per-client limit for POST /api/refresh.
func (c *Config) RefreshRateLimit() middleware.RateLimitConfig {
	if c.RefreshRateLimitPerMinute <= 0 {
		return middleware.RateLimitConfig{}
	}
	return middleware.RateLimitConfig{
		Limit: rate.Every(time.Minute / time.Duration(c.RefreshRateLimitPerMinute)),
		Burst: 1,
	}
}

// SlowQueryThreshold returns the duration above which queries are logged.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}
