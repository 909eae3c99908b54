package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// UnnamedProduct is the display name of a product with no description and no
// item code.
const UnnamedProduct = "Unnamed product"

// Product is one catalog record. Between syncs products are read-only.
type Product struct {
	ItemCode         string        `json:"item_code"`
	Name             string        `json:"name"`
	UnitPriceWithTax float64       `json:"unit_price_with_tax"`
	Barcodes         Barcodes      `json:"barcodes"`
	WarehouseData    WarehouseData `json:"warehouse_data"`
	Categories       Categories    `json:"categories"`
	SyncedAt         time.Time     `json:"synced_at,omitzero"`
}

// BarcodeSearchText returns the barcodes lowercased and joined by a space,
// the form stores filter on.
func (p *Product) BarcodeSearchText() string {
	return strings.ToLower(strings.Join(p.Barcodes, " "))
}

// Clone returns a deep copy of p that shares no slices or maps with it.
func (p *Product) Clone() Product {
	out := *p
	out.Barcodes = slices.Clone(p.Barcodes)
	out.WarehouseData = maps.Clone(p.WarehouseData)
	if p.Categories != nil {
		out.Categories = make(Categories, len(p.Categories))
		for i, c := range p.Categories {
			c.Subcategories = slices.Clone(c.Subcategories)
			out.Categories[i] = c
		}
	}
	return out
}

// Barcodes is an ordered barcode list. On the wire and in storage it is a
// JSON-encoded array string, e.g. "[\"1234567890\"]".
type Barcodes []string

// MarshalJSON encodes the list as a JSON string holding a JSON array.
func (b Barcodes) MarshalJSON() ([]byte, error) {
	return marshalAsString(b.Encode())
}

// UnmarshalJSON accepts the string form or a bare JSON array.
func (b *Barcodes) UnmarshalJSON(data []byte) error {
	var out []string
	if err := unmarshalStringOrRaw(data, &out); err != nil {
		return fmt.Errorf("barcodes: %w", err)
	}
	*b = out
	return nil
}

// Encode returns the storage form. An empty list encodes as "[]".
func (b Barcodes) Encode() string {
	if len(b) == 0 {
		return "[]"
	}
	return encodeCompact([]string(b))
}

// DecodeBarcodes parses the storage form.
func DecodeBarcodes(s string) (Barcodes, error) {
	var out Barcodes
	if err := decodeStored(s, (*[]string)(&out)); err != nil {
		return nil, fmt.Errorf("decode barcodes: %w", err)
	}
	return out, nil
}

// WarehouseStock is the stock of one product in one warehouse.
type WarehouseStock struct {
	Quantity int    `json:"quantity"`
	Location string `json:"location,omitempty"`
}

// WarehouseData maps warehouse code to stock. It is serialized as a
// JSON-encoded object string.
type WarehouseData map[string]WarehouseStock

// MarshalJSON encodes the map as a JSON string holding a JSON object.
func (w WarehouseData) MarshalJSON() ([]byte, error) {
	return marshalAsString(w.Encode())
}

// UnmarshalJSON accepts the string form or a bare JSON object.
func (w *WarehouseData) UnmarshalJSON(data []byte) error {
	var out map[string]WarehouseStock
	if err := unmarshalStringOrRaw(data, &out); err != nil {
		return fmt.Errorf("warehouse_data: %w", err)
	}
	*w = out
	return nil
}

// Encode returns the storage form. An empty map encodes as "{}".
func (w WarehouseData) Encode() string {
	if len(w) == 0 {
		return "{}"
	}
	return encodeCompact(map[string]WarehouseStock(w))
}

// DecodeWarehouseData parses the storage form.
func DecodeWarehouseData(s string) (WarehouseData, error) {
	var out WarehouseData
	if err := decodeStored(s, (*map[string]WarehouseStock)(&out)); err != nil {
		return nil, fmt.Errorf("decode warehouse data: %w", err)
	}
	return out, nil
}

// Subcategory is a leaf category descriptor.
type Subcategory struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Category is a top-level category with its subcategories.
type Category struct {
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	Subcategories []Subcategory `json:"subcategories"`
}

// Categories is serialized as a JSON-encoded array string.
type Categories []Category

// MarshalJSON encodes the list as a JSON string holding a JSON array.
func (c Categories) MarshalJSON() ([]byte, error) {
	return marshalAsString(c.Encode())
}

// UnmarshalJSON accepts the string form or a bare JSON array.
func (c *Categories) UnmarshalJSON(data []byte) error {
	var out []Category
	if err := unmarshalStringOrRaw(data, &out); err != nil {
		return fmt.Errorf("categories: %w", err)
	}
	*c = out
	return nil
}

// Encode returns the storage form. An empty list encodes as "[]".
func (c Categories) Encode() string {
	if len(c) == 0 {
		return "[]"
	}
	out := make([]Category, len(c))
	for i, cat := range c {
		if cat.Subcategories == nil {
			cat.Subcategories = []Subcategory{}
		}
		out[i] = cat
	}
	return encodeCompact(out)
}

// DecodeCategories parses the storage form.
func DecodeCategories(s string) (Categories, error) {
	var out Categories
	if err := decodeStored(s, (*[]Category)(&out)); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return out, nil
}

// encodeCompact marshals v without HTML escaping so stored text stays
// searchable as written. The values encoded here cannot fail to marshal.
func encodeCompact(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
	return strings.TrimSuffix(buf.String(), "\n")
}

func marshalAsString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// unmarshalStringOrRaw decodes either a JSON string containing JSON, or the
// JSON value itself. null and "" leave target untouched.
func unmarshalStringOrRaw(data []byte, target any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return decodeStored(s, target)
	}
	return json.Unmarshal(data, target)
}

func decodeStored(s string, target any) error {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), target)
}
