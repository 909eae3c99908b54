// Package catalog defines the persistent product snapshot the search path
// reads from, and the row filter every store implementation applies.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/Asdisarson/ss/internal/domain"
	apperrors "github.com/Asdisarson/ss/pkg/errors"
)

// Store holds the current catalog snapshot.
type Store interface {
	// FindCandidates returns every product passing the row filter for terms,
	// ordered by item code ascending. Empty terms yield an empty slice.
	FindCandidates(ctx context.Context, terms []string) ([]domain.Product, error)

	// Count returns the number of products passing the row filter for terms.
	Count(ctx context.Context, terms []string) (int, error)

	// ReplaceAll atomically swaps the whole snapshot for products.
	ReplaceAll(ctx context.Context, products []domain.Product, syncedAt time.Time) error

	// LastSync returns when the last completed sync ran, or nil if none has.
	LastSync(ctx context.Context) (*time.Time, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}

// ValidateBatch rejects a replacement batch with blank or duplicate item codes.
func ValidateBatch(products []domain.Product) error {
	seen := make(map[string]struct{}, len(products))
	for i := range products {
		code := products[i].ItemCode
		if code == "" {
			return apperrors.InvalidInput(fmt.Sprintf("product at index %d has no item code", i))
		}
		if _, dup := seen[code]; dup {
			return apperrors.InvalidInput(fmt.Sprintf("duplicate item code %q in batch", code))
		}
		seen[code] = struct{}{}
	}
	return nil
}

// Row is the storage form of a product. The JSON-valued fields hold their
// encoded text and the lowercase columns back the row filter.
type Row struct {
	ItemCode         string
	Name             string
	UnitPriceWithTax float64
	Barcodes         string
	WarehouseData    string
	Categories       string
	ItemCodeLower    string
	NameLower        string
	BarcodeSearch    string
}

// Columns lists the products table columns in Row.Values order.
var Columns = []string{
	"item_code", "name", "unit_price_with_tax", "barcodes", "warehouse_data",
	"categories", "item_code_lc", "name_lc", "barcode_search", "synced_at",
}

// SelectColumns is the projection read back into a product.
const SelectColumns = "item_code, name, unit_price_with_tax, barcodes, warehouse_data, categories, synced_at"

// NewRow encodes p for storage.
func NewRow(p *domain.Product) Row {
	return Row{
		ItemCode:         p.ItemCode,
		Name:             p.Name,
		UnitPriceWithTax: p.UnitPriceWithTax,
		Barcodes:         p.Barcodes.Encode(),
		WarehouseData:    p.WarehouseData.Encode(),
		Categories:       p.Categories.Encode(),
		ItemCodeLower:    lower(p.ItemCode),
		NameLower:        lower(p.Name),
		BarcodeSearch:    p.BarcodeSearchText(),
	}
}

// Values returns the row in Columns order, with syncedAt appended.
func (r Row) Values(syncedAt any) []any {
	return []any{
		r.ItemCode, r.Name, r.UnitPriceWithTax, r.Barcodes, r.WarehouseData,
		r.Categories, r.ItemCodeLower, r.NameLower, r.BarcodeSearch, syncedAt,
	}
}

// DecodeProduct fills the JSON-valued fields of p from their stored text.
func DecodeProduct(p *domain.Product, barcodes, warehouseData, categories string) error {
	var err error
	if p.Barcodes, err = domain.DecodeBarcodes(barcodes); err != nil {
		return fmt.Errorf("product %s: %w", p.ItemCode, err)
	}
	if p.WarehouseData, err = domain.DecodeWarehouseData(warehouseData); err != nil {
		return fmt.Errorf("product %s: %w", p.ItemCode, err)
	}
	if p.Categories, err = domain.DecodeCategories(categories); err != nil {
		return fmt.Errorf("product %s: %w", p.ItemCode, err)
	}
	return nil
}
