package ingest

import (
	"log/slog"
	"math"
	"strings"

	"github.com/Asdisarson/ss/internal/domain"
	"github.com/Asdisarson/ss/pkg/validator"
)

// Stats summarizes a normalization pass.
type Stats struct {
	Received   int
	Accepted   int
	Invalid    int
	Duplicates int
}

// Normalize validates supplier items and converts them to products. Invalid
// items are skipped; for duplicate item codes the first occurrence wins.
func Normalize(items []SupplierItem, logger *slog.Logger) ([]domain.Product, Stats) {
	stats := Stats{Received: len(items)}
	products := make([]domain.Product, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for i := range items {
		item := &items[i]
		item.ItemCode = strings.TrimSpace(item.ItemCode)

		if err := validator.Validate(item); err != nil {
			stats.Invalid++
			logger.Debug("skipping invalid supplier item",
				slog.Int("index", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		if _, dup := seen[item.ItemCode]; dup {
			stats.Duplicates++
			continue
		}
		seen[item.ItemCode] = struct{}{}

		products = append(products, toProduct(item))
	}

	stats.Accepted = len(products)
	return products, stats
}

func toProduct(item *SupplierItem) domain.Product {
	return domain.Product{
		ItemCode:         item.ItemCode,
		Name:             displayName(item),
		UnitPriceWithTax: clampPrice(item.UnitPriceWithTax),
		Barcodes:         cleanBarcodes(item.Barcodes),
		WarehouseData:    warehouses(item.Warehouses),
		Categories:       categories(item.Categories),
	}
}

// displayName picks the first non-blank description, then the item code.
func displayName(item *SupplierItem) string {
	for _, s := range []string{item.Description, item.Description2, item.ExtendedDescription, item.ItemCode} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return domain.UnnamedProduct
}

func clampPrice(p float64) float64 {
	if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return p
}

// cleanBarcodes trims, drops blanks and removes duplicates, keeping order.
func cleanBarcodes(in domain.Barcodes) domain.Barcodes {
	out := make(domain.Barcodes, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, b := range in {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if _, dup := seen[b]; dup {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}

// warehouses builds the stock map; quantities for a repeated code are summed.
func warehouses(in []SupplierWarehouse) domain.WarehouseData {
	out := make(domain.WarehouseData, len(in))
	for _, w := range in {
		code := strings.TrimSpace(w.Code)
		if code == "" {
			continue
		}
		stock := out[code]
		stock.Quantity += w.Quantity
		if loc := strings.TrimSpace(w.Location); loc != "" {
			stock.Location = loc
		}
		out[code] = stock
	}
	return out
}

func categories(in []SupplierCategory) domain.Categories {
	out := make(domain.Categories, 0, len(in))
	for _, c := range in {
		subs := make([]domain.Subcategory, 0, len(c.Subcategories))
		for _, s := range c.Subcategories {
			if s.Code == "" && s.Name == "" {
				continue
			}
			subs = append(subs, s)
		}
		out = append(out, domain.Category{Code: c.Code, Name: c.Name, Subcategories: subs})
	}
	return out
}
