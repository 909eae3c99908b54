package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Asdisarson/ss/internal/catalog"
	"github.com/Asdisarson/ss/internal/ingest"
	apperrors "github.com/Asdisarson/ss/pkg/errors"
)

// ErrSyncInProgress is returned when a sync is requested while one runs.
var ErrSyncInProgress = apperrors.Conflict("catalog sync already in progress")

// Fetcher reads the full supplier catalog.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]ingest.SupplierItem, error)
}

// CacheFlusher drops every cached search result.
type CacheFlusher interface {
	Flush(ctx context.Context) (int, error)
}

// SyncNotifier is told about completed syncs. Failures are logged only.
type SyncNotifier interface {
	CatalogSynced(ctx context.Context, syncedAt time.Time, products int) error
}

// CatalogService replaces the catalog snapshot from the supplier.
type CatalogService struct {
	store    catalog.Store
	fetcher  Fetcher
	flusher  CacheFlusher
	notifier SyncNotifier
	state    *SyncState
	logger   *slog.Logger

	running sync.Mutex
	now     func() time.Time
}

// NewCatalogService creates a new catalog sync service. notifier may be nil.
func NewCatalogService(
	store catalog.Store,
	fetcher Fetcher,
	flusher CacheFlusher,
	notifier SyncNotifier,
	state *SyncState,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		store:    store,
		fetcher:  fetcher,
		flusher:  flusher,
		notifier: notifier,
		state:    state,
		logger:   logger,
		now:      time.Now,
	}
}

// LoadState seeds the sync state from the store's sync metadata.
func (s *CatalogService) LoadState(ctx context.Context) error {
	ts, err := s.store.LastSync(ctx)
	if err != nil {
		return fmt.Errorf("load last sync: %w", err)
	}
	if ts != nil {
		s.state.set(*ts)
	}
	return nil
}

// LastUpdate returns the time of the last completed sync, or nil.
func (s *CatalogService) LastUpdate() *time.Time {
	return s.state.LastUpdate()
}

// Refresh fetches the supplier catalog and atomically replaces the stored
// snapshot. Only one refresh runs at a time; a concurrent call fails with
// ErrSyncInProgress. On failure the previous snapshot and sync time are kept.
func (s *CatalogService) Refresh(ctx context.Context) (time.Time, error) {
	if !s.running.TryLock() {
		catalogSyncTotal.WithLabelValues("conflict").Inc()
		return time.Time{}, ErrSyncInProgress
	}
	defer s.running.Unlock()

	log := s.logger.With(slog.String("sync_id", uuid.NewString()))
	start := s.now()
	syncedAt, count, err := s.replace(ctx, log)
	if err != nil {
		catalogSyncTotal.WithLabelValues("failure").Inc()
		log.ErrorContext(ctx, "catalog sync failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", s.now().Sub(start)),
		)
		return time.Time{}, apperrors.UpstreamFailure("catalog sync failed", err)
	}

	s.state.set(syncedAt)
	catalogSyncTotal.WithLabelValues("success").Inc()
	catalogSyncDuration.Observe(s.now().Sub(start).Seconds())
	catalogProducts.Set(float64(count))

	flushed, err := s.flusher.Flush(ctx)
	if err != nil {
		log.WarnContext(ctx, "search cache flush failed; entries expire by TTL",
			slog.String("error", err.Error()),
		)
	}

	if s.notifier != nil {
		if err := s.notifier.CatalogSynced(ctx, syncedAt, count); err != nil {
			log.WarnContext(ctx, "failed to publish catalog synced event",
				slog.String("error", err.Error()),
			)
		}
	}

	log.InfoContext(ctx, "catalog sync completed",
		slog.Int("products", count),
		slog.Int("cache_entries_flushed", flushed),
		slog.Time("synced_at", syncedAt),
		slog.Duration("duration", s.now().Sub(start)),
	)
	return syncedAt, nil
}

func (s *CatalogService) replace(ctx context.Context, log *slog.Logger) (time.Time, int, error) {
	items, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		return time.Time{}, 0, err
	}

	products, stats := ingest.Normalize(items, log)
	if stats.Invalid > 0 || stats.Duplicates > 0 {
		log.WarnContext(ctx, "supplier items skipped",
			slog.Int("received", stats.Received),
			slog.Int("invalid", stats.Invalid),
			slog.Int("duplicates", stats.Duplicates),
		)
	}

	syncedAt := s.now().UTC()
	if err := s.store.ReplaceAll(ctx, products, syncedAt); err != nil {
		return time.Time{}, 0, fmt.Errorf("replace catalog: %w", err)
	}
	return syncedAt, len(products), nil
}

// RunPeriodic refreshes the catalog every interval until ctx is cancelled.
// Failed or skipped refreshes are logged and retried on the next tick.
func (s *CatalogService) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "scheduled catalog sync enabled", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
				s.logger.WarnContext(ctx, "scheduled catalog sync failed", slog.String("error", err.Error()))
			}
		}
	}
}
