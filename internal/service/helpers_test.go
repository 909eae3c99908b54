package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Asdisarson/ss/internal/cache"
	"github.com/Asdisarson/ss/internal/catalog"
	"github.com/Asdisarson/ss/internal/catalog/memory"
	"github.com/Asdisarson/ss/internal/domain"
	"github.com/Asdisarson/ss/internal/ingest"
)

// countingStore wraps a catalog store and counts search-path calls.
type countingStore struct {
	catalog.Store
	counts     atomic.Int32
	finds      atomic.Int32
	failSearch error
}

func (s *countingStore) Count(ctx context.Context, terms []string) (int, error) {
	s.counts.Add(1)
	if s.failSearch != nil {
		return 0, s.failSearch
	}
	return s.Store.Count(ctx, terms)
}

func (s *countingStore) FindCandidates(ctx context.Context, terms []string) ([]domain.Product, error) {
	s.finds.Add(1)
	if s.failSearch != nil {
		return nil, s.failSearch
	}
	return s.Store.FindCandidates(ctx, terms)
}

func (s *countingStore) calls() int32 {
	return s.counts.Load() + s.finds.Load()
}

func newSeededStore(products ...domain.Product) *countingStore {
	m := memory.NewStore(catalog.FilterOptions{Fuzzy: true})
	if err := m.ReplaceAll(context.Background(), products, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)); err != nil {
		panic(err)
	}
	return &countingStore{Store: m}
}

// mapCache is an in-process SearchCache that stores JSON-free copies.
type mapCache struct {
	mu      sync.Mutex
	entries map[cache.Signature]domain.Envelope
	gen     uint64
	gets    int
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[cache.Signature]domain.Envelope)}
}

func (c *mapCache) Get(_ context.Context, sig cache.Signature) (*domain.Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	env, ok := c.entries[sig]
	if !ok {
		return nil, false
	}
	return &env, true
}

func (c *mapCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *mapCache) Set(_ context.Context, sig cache.Signature, gen uint64, env *domain.Envelope, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.sets++
	c.entries[sig] = *env
}

func (c *mapCache) Flush(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.gen++
	c.entries = make(map[cache.Signature]domain.Envelope)
	return n, nil
}

// fakeFetcher returns fixed items, optionally blocking until released.
type fakeFetcher struct {
	items   []ingest.SupplierItem
	err     error
	release chan struct{}
	started chan struct{}
	calls   atomic.Int32
}

func (f *fakeFetcher) FetchAll(ctx context.Context) ([]ingest.SupplierItem, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.items, f.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	syncedAt []time.Time
	err      error
}

func (n *recordingNotifier) CatalogSynced(_ context.Context, syncedAt time.Time, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.syncedAt = append(n.syncedAt, syncedAt)
	return n.err
}

var errStoreDown = errors.New("store down")
