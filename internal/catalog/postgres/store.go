// Package postgres implements catalog.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Asdisarson/ss/internal/catalog"
	"github.com/Asdisarson/ss/internal/domain"
	"github.com/Asdisarson/ss/pkg/database"
)

// DB is the subset of *pgxpool.Pool the store uses. pgxmock pools satisfy it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// Store implements catalog.Store using PostgreSQL.
type Store struct {
	db   DB
	opts catalog.FilterOptions
}

var _ catalog.Store = (*Store)(nil)

// NewStore creates a new PostgreSQL-backed catalog store.
func NewStore(db DB, opts catalog.FilterOptions) *Store {
	return &Store{db: db, opts: opts}
}

func placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// FindCandidates returns the products passing the row filter for terms.
func (s *Store) FindCandidates(ctx context.Context, terms []string) (_ []domain.Product, err error) {
	filter := catalog.BuildFilter(terms, s.opts)
	if filter.Empty() {
		return []domain.Product{}, nil
	}

	where, args := filter.Where(placeholder)
	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		WHERE %s
		ORDER BY item_code COLLATE "C"`, catalog.SelectColumns, where)

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "FindCandidates", query)
	defer func() { end(err) }()

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var (
			p                               domain.Product
			barcodes, warehouse, categories string
		)
		if err := rows.Scan(
			&p.ItemCode,
			&p.Name,
			&p.UnitPriceWithTax,
			&barcodes,
			&warehouse,
			&categories,
			&p.SyncedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		if err := catalog.DecodeProduct(&p, barcodes, warehouse, categories); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

// Count returns the number of products passing the row filter for terms.
func (s *Store) Count(ctx context.Context, terms []string) (_ int, err error) {
	filter := catalog.BuildFilter(terms, s.opts)
	if filter.Empty() {
		return 0, nil
	}

	where, args := filter.Where(placeholder)
	query := "SELECT COUNT(*) FROM products WHERE " + where

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "Count", query)
	defer func() { end(err) }()

	var n int
	if err = s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

const upsertSyncSQL = `
	INSERT INTO sync_metadata (id, last_synced_at, product_count)
	VALUES (1, $1, $2)
	ON CONFLICT (id) DO UPDATE
	SET last_synced_at = EXCLUDED.last_synced_at, product_count = EXCLUDED.product_count`

// ReplaceAll deletes every product and bulk-loads products in one
// transaction. On any error the previous snapshot is left intact.
func (s *Store) ReplaceAll(ctx context.Context, products []domain.Product, syncedAt time.Time) (err error) {
	if err := catalog.ValidateBatch(products); err != nil {
		return err
	}

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "ReplaceAll", "COPY products")
	defer func() { end(err) }()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err = tx.Exec(ctx, "DELETE FROM products"); err != nil {
		return fmt.Errorf("delete products: %w", err)
	}

	syncedAt = syncedAt.UTC()
	rows := make([][]any, len(products))
	for i := range products {
		rows[i] = catalog.NewRow(&products[i]).Values(syncedAt)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"products"}, catalog.Columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy products: %w", err)
	}
	if copied != int64(len(products)) {
		return fmt.Errorf("copy products: wrote %d of %d rows", copied, len(products))
	}

	if _, err = tx.Exec(ctx, upsertSyncSQL, syncedAt, len(products)); err != nil {
		return fmt.Errorf("record sync metadata: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

// LastSync returns the timestamp of the last completed sync.
func (s *Store) LastSync(ctx context.Context) (_ *time.Time, err error) {
	const query = `SELECT last_synced_at FROM sync_metadata WHERE id = 1`

	ctx, end := database.TraceQuery(ctx, database.SystemPostgres, "LastSync", query)
	defer func() { end(err) }()

	var ts time.Time
	if err = s.db.QueryRow(ctx, query).Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
			return nil, nil
		}
		return nil, fmt.Errorf("read last sync: %w", err)
	}
	ts = ts.UTC()
	return &ts, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
