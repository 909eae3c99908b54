package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asdisarson/ss/internal/config"
	"github.com/Asdisarson/ss/internal/domain"
	"github.com/Asdisarson/ss/pkg/logger"
)

// fakeSupplier serves a single page of items.
func fakeSupplier(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{"item_code": "TEST001", "description": "Test Product 1", "unit_price_with_tax": 19.99, "barcodes": `["1234567890"]`},
				{"item_code": "SHIRT-BLUE", "description": "Blue Shirt", "barcodes": []string{"5550001"}},
				{"item_code": "SHIRT-RED", "description": "Red Shirt"},
			},
			"page":       1,
			"totalPages": 1,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(supplierURL string) *config.Config {
	return &config.Config{
		Environment:            "test",
		LogLevel:               "error",
		HTTPPort:               0,
		CatalogDriver:          config.DriverMemory,
		CacheEnabled:           false,
		CacheTTLSeconds:        60,
		CacheCompressBytes:     8192,
		CacheBreakerFailures:   5,
		SearchFuzzyEnabled:     true,
		SearchMaxQueryLength:   256,
		SupplierBaseURL:        supplierURL,
		SupplierPageSize:       100,
		SupplierMaxPages:       10,
		SupplierTimeoutSeconds: 5,
		RefreshTimeoutSeconds:  60,
		SlowQueryThresholdMs:   500,
		RefreshAllowedCIDRs:    []string{"192.0.2.0/24"},
		PprofAllowedCIDRs:      []string{"127.0.0.0/8"},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := NewApp(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func serve(a *App, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.httpServer.Handler.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestApp_MemoryRefreshThenSearch(t *testing.T) {
	a := newTestApp(t, testConfig(fakeSupplier(t).URL))

	w := serve(a, http.MethodGet, "/api/last-update")
	assert.JSONEq(t, `{"lastUpdate":null}`, w.Body.String())

	w = serve(a, http.MethodPost, "/api/refresh")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = serve(a, http.MethodGet, "/api/search?query=blue%20shirt")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var env domain.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Len(t, env.Results, 1)
	assert.Equal(t, "SHIRT-BLUE", env.Results[0].ItemCode)

	w = serve(a, http.MethodGet, "/api/last-update")
	assert.NotContains(t, w.Body.String(), "null")

	w = serve(a, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApp_SQLiteWithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(fakeSupplier(t).URL)
	cfg.CatalogDriver = config.DriverSQLite
	cfg.SQLitePath = ":memory:"
	cfg.CacheEnabled = true
	cfg.RedisAddr = mr.Addr()
	a := newTestApp(t, cfg)

	require.Equal(t, http.StatusOK, serve(a, http.MethodPost, "/api/refresh").Code)

	first := serve(a, http.MethodGet, "/api/products/search?q=1234567890")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := serve(a, http.MethodGet, "/api/products/search?q=1234567890")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())

	// A sync flushes cached pages.
	require.Equal(t, http.StatusOK, serve(a, http.MethodPost, "/api/refresh").Code)
	third := serve(a, http.MethodGet, "/api/products/search?q=1234567890")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))

	w := serve(a, http.MethodGet, "/health/ready")
	assert.Contains(t, w.Body.String(), `"redis"`)
	assert.Contains(t, w.Body.String(), `"sqlite"`)
}

func TestApp_RedisDownDegradesToMiss(t *testing.T) {
	cfg := testConfig(fakeSupplier(t).URL)
	cfg.CacheEnabled = true
	cfg.RedisAddr = "127.0.0.1:1"
	a := newTestApp(t, cfg)

	require.Equal(t, http.StatusOK, serve(a, http.MethodPost, "/api/refresh").Code)
	for range 2 {
		w := serve(a, http.MethodGet, "/api/search?query=shirt")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	}
}

func TestApp_SupplierOverPageLimitKeepsCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items":      []map[string]any{{"item_code": "PAGE" + r.URL.Query().Get("page"), "description": "Paged item"}},
			"totalPages": 3,
		})
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(srv.URL)
	cfg.SupplierMaxPages = 2
	a := newTestApp(t, cfg)

	w := serve(a, http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)

	w = serve(a, http.MethodGet, "/api/last-update")
	assert.JSONEq(t, `{"lastUpdate":null}`, w.Body.String())

	w = serve(a, http.MethodGet, "/api/search?query=paged")
	var env domain.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Zero(t, env.Total)
}

func TestApp_InvalidSQLitePathIsFatal(t *testing.T) {
	cfg := testConfig("http://localhost:9000")
	cfg.CatalogDriver = config.DriverSQLite
	cfg.SQLitePath = t.TempDir() + "/missing/dir/catalog.db"

	a, err := NewApp(context.Background(), cfg, logger.Discard())
	require.Error(t, err)
	assert.Nil(t, a)
	assert.Contains(t, err.Error(), "open catalog store")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	cfg := testConfig(fakeSupplier(t).URL)
	cfg.SyncOnStartup = true
	cfg.SyncIntervalMinutes = 60
	a, err := NewApp(context.Background(), cfg, logger.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.catalog.LastUpdate() != nil }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
