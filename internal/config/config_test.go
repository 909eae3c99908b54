package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8010, cfg.HTTPPort)
	assert.Equal(t, DriverPostgres, cfg.CatalogDriver)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 300*time.Second, cfg.CacheTTL())
	assert.Equal(t, 8192, cfg.CacheCompressBytes)
	assert.True(t, cfg.SearchFuzzyEnabled)
	assert.Equal(t, 256, cfg.SearchMaxQueryLength)
	assert.Zero(t, cfg.SyncInterval())
	assert.Equal(t, 10*time.Minute, cfg.RefreshTimeout())
	assert.False(t, cfg.KafkaEnabled)
	assert.False(t, cfg.IsProduction())
	assert.Contains(t, cfg.RefreshAllowedCIDRs, "127.0.0.0/8")
	assert.Equal(t, rate.Limit(50), cfg.SearchRateLimit().Limit)
	assert.Equal(t, 100, cfg.SearchRateLimit().Burst)
	assert.Equal(t, rate.Every(10*time.Second), cfg.RefreshRateLimit().Limit)
	assert.Empty(t, cfg.RefreshJWTSecret)
}

func TestConfig_RateLimitsCanBeDisabled(t *testing.T) {
	setEnvs(t, map[string]string{
		"RATE_LIMIT_RPS":                "0",
		"REFRESH_RATE_LIMIT_PER_MINUTE": "0",
	})
	cfg, err := Load()
	require.NoError(t, err)

	assert.Zero(t, cfg.SearchRateLimit().Limit)
	assert.Zero(t, cfg.RefreshRateLimit().Limit)
}

func TestLoad_Overrides(t *testing.T) {
	setEnvs(t, map[string]string{
		"ENVIRONMENT":           "production",
		"CATALOG_DRIVER":        "sqlite",
		"SQLITE_PATH":           "/data/catalog.db",
		"CACHE_TTL_SECONDS":     "60",
		"SYNC_INTERVAL_MINUTES": "15",
		"KAFKA_ENABLED":         "true",
		"KAFKA_BROKERS":         "k1:9092,k2:9092",
		"REFRESH_ALLOWED_CIDRS": "10.1.0.0/16",
		"LOG_SLOW_QUERY_MS":     "250",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "/data/catalog.db", cfg.SQLite().Path)
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, 15*time.Minute, cfg.SyncInterval())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"10.1.0.0/16"}, cfg.RefreshAllowedCIDRs)
	assert.Equal(t, 250*time.Millisecond, cfg.SlowQueryThreshold())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		envs    map[string]string
		wantErr string
	}{
		{"bad port", map[string]string{"SEARCH_HTTP_PORT": "70000"}, "invalid HTTP port"},
		{"bad driver", map[string]string{"CATALOG_DRIVER": "mongo"}, "CATALOG_DRIVER"},
		{"zero ttl", map[string]string{"CACHE_TTL_SECONDS": "0"}, "CACHE_TTL_SECONDS"},
		{"relative supplier url", map[string]string{"SUPPLIER_BASE_URL": "items"}, "SUPPLIER_BASE_URL"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "1.5"}, "OTEL_SAMPLE_RATE"},
		{"negative interval", map[string]string{"SYNC_INTERVAL_MINUTES": "-1"}, "SYNC_INTERVAL_MINUTES"},
		{"zero refresh timeout", map[string]string{"REFRESH_TIMEOUT_SECONDS": "0"}, "REFRESH_TIMEOUT_SECONDS"},
		{"negative rate", map[string]string{"RATE_LIMIT_RPS": "-1"}, "RATE_LIMIT_RPS"},
		{"zero burst", map[string]string{"RATE_LIMIT_BURST": "0"}, "RATE_LIMIT_BURST"},
		{"not a number", map[string]string{"SEARCH_MAX_QUERY_LENGTH": "lots"}, "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, tt.envs)
			cfg, err := Load()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Postgres(t *testing.T) {
	setEnvs(t, map[string]string{
		"POSTGRES_HOST":                "db",
		"DB_MAX_CONNS":                 "10",
		"DB_MAX_CONN_LIFETIME_MINUTES": "5",
	})
	cfg, err := Load()
	require.NoError(t, err)

	pg := cfg.Postgres()
	assert.Equal(t, "db", pg.Host)
	assert.Equal(t, int32(10), pg.MaxConns)
	assert.Equal(t, 5*time.Minute, pg.MaxConnLifetime)
}
