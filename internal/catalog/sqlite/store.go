// Package sqlite implements catalog.Store on an embedded SQLite database
// (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Asdisarson/ss/internal/catalog"
	"github.com/Asdisarson/ss/internal/domain"
	"github.com/Asdisarson/ss/pkg/database"
)

// Store implements catalog.Store using SQLite.
type Store struct {
	db   *sql.DB
	opts catalog.FilterOptions
}

var _ catalog.Store = (*Store)(nil)

// NewStore creates a new SQLite-backed catalog store. The schema must
// already be migrated.
func NewStore(db *sql.DB, opts catalog.FilterOptions) *Store {
	return &Store{db: db, opts: opts}
}

func placeholder(n int) string { return fmt.Sprintf("?%d", n) }

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
		ORDER BY item_code`, catalog.SelectColumns, where)

	ctx, end := database.TraceQuery(ctx, database.SystemSQLite, "FindCandidates", query)
	defer func() { end(err) }()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var (
			p                                         domain.Product
			barcodes, warehouse, categories, syncedAt string
		)
		if err := rows.Scan(
			&p.ItemCode,
			&p.Name,
			&p.UnitPriceWithTax,
			&barcodes,
			&warehouse,
			&categories,
			&syncedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		if p.SyncedAt, err = parseTime(syncedAt); err != nil {
			return nil, fmt.Errorf("product %s: %w", p.ItemCode, err)
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

	ctx, end := database.TraceQuery(ctx, database.SystemSQLite, "Count", query)
	defer func() { end(err) }()

	var n int
	if err = s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// ReplaceAll deletes every product and inserts products in one transaction.
func (s *Store) ReplaceAll(ctx context.Context, products []domain.Product, syncedAt time.Time) (err error) {
	if err := catalog.ValidateBatch(products); err != nil {
		return err
	}

	insertSQL := fmt.Sprintf("INSERT INTO products (%s) VALUES (%s)",
		strings.Join(catalog.Columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(catalog.Columns)), ", "))

	ctx, end := database.TraceQuery(ctx, database.SystemSQLite, "ReplaceAll", insertSQL)
	defer func() { end(err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, "DELETE FROM products"); err != nil {
		return fmt.Errorf("delete products: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	ts := formatTime(syncedAt)
	for i := range products {
		if _, err = stmt.ExecContext(ctx, catalog.NewRow(&products[i]).Values(ts)...); err != nil {
			return fmt.Errorf("insert product %s: %w", products[i].ItemCode, err)
		}
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO sync_metadata (id, last_synced_at, product_count)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET last_synced_at = excluded.last_synced_at, product_count = excluded.product_count`,
		ts, len(products),
	); err != nil {
		return fmt.Errorf("record sync metadata: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

// LastSync returns the timestamp of the last completed sync.
func (s *Store) LastSync(ctx context.Context) (_ *time.Time, err error) {
	const query = `SELECT last_synced_at FROM sync_metadata WHERE id = 1`

	ctx, end := database.TraceQuery(ctx, database.SystemSQLite, "LastSync", query)
	defer func() { end(err) }()

	var raw string
	if err = s.db.QueryRowContext(ctx, query).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			return nil, nil
		}
		return nil, fmt.Errorf("read last sync: %w", err)
	}
	ts, err := parseTime(raw)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
