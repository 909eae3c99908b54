// Package memory implements catalog.Store in process memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Asdisarson/ss/internal/catalog"
	"github.com/Asdisarson/ss/internal/domain"
	"github.com/Asdisarson/ss/pkg/database"
)

type entry struct {
	product domain.Product
	row     catalog.Row
}

// Store is an in-memory catalog. ReplaceAll swaps the whole snapshot under
// the write lock, so readers see either the old or the new catalog. Products
// are copied in and out, so neither the loader nor a reader can mutate the
// stored snapshot.
type Store struct {
	mu       sync.RWMutex
	entries  []entry
	lastSync *time.Time
	opts     catalog.FilterOptions
}

var _ catalog.Store = (*Store)(nil)

// NewStore creates an empty in-memory catalog store.
func NewStore(opts catalog.FilterOptions) *Store {
	return &Store{opts: opts}
}

// FindCandidates returns the products passing the row filter for terms.
func (s *Store) FindCandidates(ctx context.Context, terms []string) (_ []domain.Product, err error) {
	filter := catalog.BuildFilter(terms, s.opts)
	if filter.Empty() {
		return []domain.Product{}, nil
	}

	_, end := database.TraceQuery(ctx, database.SystemMemory, "FindCandidates", "scan")
	defer func() { end(err) }()

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	products := []domain.Product{}
	for i := range s.entries {
		e := &s.entries[i]
		if filter.Match(e.row.ItemCodeLower, e.row.NameLower, e.row.BarcodeSearch) {
			products = append(products, e.product.Clone())
		}
	}
	return products, nil
}

// Count returns the number of products passing the row filter for terms.
func (s *Store) Count(ctx context.Context, terms []string) (_ int, err error) {
	filter := catalog.BuildFilter(terms, s.opts)
	if filter.Empty() {
		return 0, nil
	}

	_, end := database.TraceQuery(ctx, database.SystemMemory, "Count", "scan")
	defer func() { end(err) }()

	if err = ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for i := range s.entries {
		r := &s.entries[i].row
		if filter.Match(r.ItemCodeLower, r.NameLower, r.BarcodeSearch) {
			n++
		}
	}
	return n, nil
}

// ReplaceAll swaps the snapshot for products.
func (s *Store) ReplaceAll(ctx context.Context, products []domain.Product, syncedAt time.Time) (err error) {
	if err := catalog.ValidateBatch(products); err != nil {
		return err
	}

	_, end := database.TraceQuery(ctx, database.SystemMemory, "ReplaceAll", "swap")
	defer func() { end(err) }()

	syncedAt = syncedAt.UTC()
	entries := make([]entry, len(products))
	for i := range products {
		p := products[i].Clone()
		p.SyncedAt = syncedAt
		entries[i] = entry{product: p, row: catalog.NewRow(&p)}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].product.ItemCode < entries[j].product.ItemCode
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	s.lastSync = &syncedAt
	return nil
}

// LastSync returns the timestamp of the last completed sync.
func (s *Store) LastSync(_ context.Context) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastSync == nil {
		return nil, nil
	}
	ts := *s.lastSync
	return &ts, nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error {
	return nil
}
