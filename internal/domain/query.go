package domain

import (
	"strings"

	"github.com/Asdisarson/ss/pkg/pagination"
)

// FuzzyMinRunes is the shortest term eligible for single-character
// insertion matching.
const FuzzyMinRunes = 3

// SearchQuery is a raw search request before normalization.
type SearchQuery struct {
	Query    string
	Page     int
	PageSize int
}

// Tokenize splits raw on Unicode whitespace into ordered, non-empty terms.
// Terms are neither deduplicated nor reordered.
func Tokenize(raw string) []string {
	return strings.Fields(raw)
}

// NormalizeTerms lowercases every term.
func NormalizeTerms(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = strings.ToLower(t)
	}
	return out
}

// NormalizedQuery is the canonical text of a query: lowercased terms joined
// by single spaces. Queries with equal normalized text rank identically.
func NormalizedQuery(terms []string) string {
	return strings.Join(NormalizeTerms(terms), " ")
}

// Envelope is one page of ranked search results.
type Envelope struct {
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	TotalPages int             `json:"totalPages"`
	Results    []ScoredProduct `json:"results"`

	// Cached is set when the envelope was served from the search cache.
	Cached bool `json:"-"`
}

// ScoredProduct is a product with its relevance score.
type ScoredProduct struct {
	Product
	Score int `json:"score"`
}

// EmptyEnvelope returns the zero-result envelope for p.
func EmptyEnvelope(p pagination.Params) *Envelope {
	return &Envelope{
		Page:     p.Page,
		PageSize: p.PageSize,
		Results:  []ScoredProduct{},
	}
}

// Paginate slices ranked into the page described by p. Total is the number
// of ranked products.
func Paginate(ranked []ScoredProduct, p pagination.Params) *Envelope {
	total := len(ranked)
	start, end := p.Window(total)
	results := make([]ScoredProduct, end-start)
	copy(results, ranked[start:end])

	return &Envelope{
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: pagination.TotalPages(total, p.PageSize),
		Results:    results,
	}
}
