package service

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asdisarson/ss/internal/cache"
	"github.com/Asdisarson/ss/internal/domain"
	"github.com/Asdisarson/ss/internal/ranking"
	apperrors "github.com/Asdisarson/ss/pkg/errors"
	"github.com/Asdisarson/ss/pkg/logger"
)

func testProducts() []domain.Product {
	return []domain.Product{
		{ItemCode: "TEST001", Name: "Test Product 1", Barcodes: domain.Barcodes{"1234567890"}},
		{ItemCode: "TEST002", Name: "Blue Test Shirt"},
	}
}

func newTestSearch(store *countingStore, c SearchCache) *SearchService {
	return NewSearchService(store, ranking.New(ranking.Options{Fuzzy: true}), c, SearchConfig{MaxQueryLength: 32}, logger.Discard())
}

func TestSearch_EmptyQueryShortCircuits(t *testing.T) {
	store := newSeededStore(testProducts()...)
	c := newMapCache()
	svc := newTestSearch(store, c)

	for _, q := range []string{"", "   ", "\t\n"} {
		env, err := svc.Search(context.Background(), domain.SearchQuery{Query: q, Page: 2, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 0, env.Total)
		assert.Equal(t, 2, env.Page)
		assert.Equal(t, 10, env.PageSize)
		assert.Equal(t, 0, env.TotalPages)
		assert.NotNil(t, env.Results)
		assert.Empty(t, env.Results)
	}

	assert.Zero(t, store.calls(), "store must not be touched")
	assert.Zero(t, c.gets+c.sets, "cache must not be touched")
}

func TestSearch_PageSizeFallback(t *testing.T) {
	svc := newTestSearch(newSeededStore(testProducts()...), newMapCache())

	tests := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{page: 1, size: 7, wantPage: 1, wantSize: 25},
		{page: 0, size: 50, wantPage: 1, wantSize: 50},
		{page: -3, size: 1000, wantPage: 1, wantSize: 1000},
		{page: 4, size: 0, wantPage: 4, wantSize: 25},
	}
	for _, tt := range tests {
		env, err := svc.Search(context.Background(), domain.SearchQuery{Query: "test", Page: tt.page, PageSize: tt.size})
		require.NoError(t, err)
		assert.Equal(t, tt.wantPage, env.Page)
		assert.Equal(t, tt.wantSize, env.PageSize)
	}
}

func TestSearch_BlueShirt(t *testing.T) {
	svc := newTestSearch(newSeededStore(testProducts()...), newMapCache())

	env, err := svc.Search(context.Background(), domain.SearchQuery{Query: "blue shirt"})
	require.NoError(t, err)
	require.Len(t, env.Results, 1)
	assert.Equal(t, "TEST002", env.Results[0].ItemCode)
	assert.Equal(t, 1, env.Total)
	assert.Equal(t, 1, env.TotalPages)
	assert.False(t, env.Cached)
}

func TestSearch_ExactCodeFirst(t *testing.T) {
	svc := newTestSearch(newSeededStore(
		domain.Product{ItemCode: "SHIRT", Name: "Plain tee"},
		domain.Product{ItemCode: "AAA", Name: "Red shirt"},
	), newMapCache())

	env, err := svc.Search(context.Background(), domain.SearchQuery{Query: "SHIRT"})
	require.NoError(t, err)
	require.Len(t, env.Results, 2)
	assert.Equal(t, "SHIRT", env.Results[0].ItemCode)
	assert.Equal(t, ranking.ScoreExactCode, env.Results[0].Score)
}

func TestSearch_TotalPagesInvariant(t *testing.T) {
	products := make([]domain.Product, 0, 27)
	for i := 0; i < 27; i++ {
		products = append(products, domain.Product{ItemCode: "SKU" + string(rune('A'+i)), Name: "cap"})
	}
	svc := newTestSearch(newSeededStore(products...), newMapCache())

	for page := 1; page <= 4; page++ {
		env, err := svc.Search(context.Background(), domain.SearchQuery{Query: "cap", Page: page, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 27, env.Total)
		assert.Equal(t, 3, env.TotalPages)
		assert.LessOrEqual(t, len(env.Results), env.PageSize)
	}
}

func TestSearch_PageBeyondLastIsEmpty(t *testing.T) {
	svc := newTestSearch(newSeededStore(
		domain.Product{ItemCode: "SHIRT-BLUE", Name: "Blue shirt"},
	), newMapCache())

	for _, page := range []int{2, 368934881474191034, math.MaxInt} {
		var env *domain.Envelope
		require.NotPanics(t, func() {
			var err error
			env, err = svc.Search(context.Background(), domain.SearchQuery{Query: "blue", Page: page, PageSize: 25})
			require.NoError(t, err)
		}, "page %d", page)
		assert.Equal(t, page, env.Page)
		assert.Equal(t, 1, env.Total)
		assert.Equal(t, 1, env.TotalPages)
		assert.NotNil(t, env.Results)
		assert.Empty(t, env.Results)
	}
}

func TestSearch_NoMatchesIsCached(t *testing.T) {
	store := newSeededStore(testProducts()...)
	c := newMapCache()
	svc := newTestSearch(store, c)

	env, err := svc.Search(context.Background(), domain.SearchQuery{Query: "nothing"})
	require.NoError(t, err)
	assert.Zero(t, env.Total)
	assert.Equal(t, int32(0), store.finds.Load(), "zero count skips candidate fetch")
	assert.Equal(t, 1, c.sets)

	env, err = svc.Search(context.Background(), domain.SearchQuery{Query: "NOTHING"})
	require.NoError(t, err)
	assert.True(t, env.Cached)
	assert.Equal(t, int32(1), store.counts.Load())
}

func TestSearch_InvalidInput(t *testing.T) {
	svc := newTestSearch(newSeededStore(), newMapCache())

	for name, q := range map[string]string{
		"invalid utf8": "bad\xff",
		"nul byte":     "a\x00b",
		"too long":     strings.Repeat("x", 33),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Search(context.Background(), domain.SearchQuery{Query: q})
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}

	_, err := svc.Search(context.Background(), domain.SearchQuery{Query: strings.Repeat("é", 32)})
	assert.NoError(t, err, "length is counted in runes")
}

func TestSearch_StoreFailure(t *testing.T) {
	store := newSeededStore(testProducts()...)
	store.failSearch = errStoreDown
	c := newMapCache()
	svc := newTestSearch(store, c)

	_, err := svc.Search(context.Background(), domain.SearchQuery{Query: "test"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInternal)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Zero(t, c.sets, "failures are not cached")
}

func newRedisCoordinator(t *testing.T) (*cache.Coordinator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.NewCoordinator(cache.NewRedisBackend(client), 0, logger.Discard()), mr
}

func TestSearch_CachedIdempotence(t *testing.T) {
	coord, _ := newRedisCoordinator(t)
	store := newSeededStore(testProducts()...)
	svc := newTestSearch(store, coord)
	q := domain.SearchQuery{Query: "test", Page: 1, PageSize: 25}

	first, err := svc.Search(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Search(context.Background(), domain.SearchQuery{Query: "  TEST ", Page: 1, PageSize: 25})
	require.NoError(t, err)
	assert.True(t, second.Cached)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, int32(2), store.calls(), "second request is served from cache")
}

func TestSearch_CacheDownStillServes(t *testing.T) {
	coord, mr := newRedisCoordinator(t)
	mr.Close()
	svc := newTestSearch(newSeededStore(testProducts()...), coord)

	env, err := svc.Search(context.Background(), domain.SearchQuery{Query: "blue shirt"})
	require.NoError(t, err)
	assert.Equal(t, 1, env.Total)
}

func TestSearch_ConcurrentColdRequestsConverge(t *testing.T) {
	coord, mr := newRedisCoordinator(t)
	svc := newTestSearch(newSeededStore(testProducts()...), coord)
	q := domain.SearchQuery{Query: "test", Page: 1, PageSize: 10}

	const n = 16
	bodies := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env, err := svc.Search(context.Background(), q)
			if !assert.NoError(t, err) {
				return
			}
			b, _ := json.Marshal(env)
			bodies[i] = string(b)
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, bodies[0], bodies[i])
	}

	sig := cache.NewSignature("test", 1, 10)
	stored, err := mr.Get(string(sig))
	require.NoError(t, err)
	assert.JSONEq(t, bodies[0], stored)

	env, err := svc.Search(context.Background(), q)
	require.NoError(t, err)
	assert.True(t, env.Cached)
}

// syncingStore replaces the snapshot and flushes the cache between the
// search's count and its candidate fetch, as a catalog sync committing
// mid-request would.
type syncingStore struct {
	*countingStore
	onFind func()
}

func (s *syncingStore) FindCandidates(ctx context.Context, terms []string) ([]domain.Product, error) {
	out, err := s.countingStore.FindCandidates(ctx, terms)
	if s.onFind != nil {
		s.onFind()
		s.onFind = nil
	}
	return out, err
}

func TestSearch_PageComputedBeforeFlushIsNotCached(t *testing.T) {
	coord, mr := newRedisCoordinator(t)
	seeded := newSeededStore(testProducts()...)
	store := &syncingStore{countingStore: seeded}
	store.onFind = func() {
		require.NoError(t, seeded.Store.ReplaceAll(context.Background(), []domain.Product{
			{ItemCode: "TEST009", Name: "Test Replacement"},
		}, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)))
		_, err := coord.Flush(context.Background())
		require.NoError(t, err)
	}
	svc := NewSearchService(store, ranking.New(ranking.Options{Fuzzy: true}), coord, SearchConfig{}, logger.Discard())
	q := domain.SearchQuery{Query: "test", Page: 1, PageSize: 25}

	stale, err := svc.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, stale.Total, "the in-flight request still answers from the snapshot it read")
	assert.False(t, mr.Exists(string(cache.NewSignature("test", 1, 25))))

	fresh, err := svc.Search(context.Background(), q)
	require.NoError(t, err)
	assert.False(t, fresh.Cached)
	require.Len(t, fresh.Results, 1)
	assert.Equal(t, "TEST009", fresh.Results[0].ItemCode)
}
