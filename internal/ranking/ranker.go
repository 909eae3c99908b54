// Package ranking scores catalog products against query terms.
package ranking

import (
	"sort"
	"strings"
	"unicode"

	"github.com/Asdisarson/ss/internal/domain"
)

// Per-term match scores. The first class that fires for a term wins.
const (
	ScoreExactCode       = 2000
	ScoreExactBarcode    = 1500
	ScoreExactName       = 1000
	ScorePrefixCode      = 800
	ScoreWordName        = 500
	ScoreContainsCode    = 400
	ScorePrefixName      = 300
	ScorePrefixBarcode   = 250
	ScoreContainsName    = 200
	ScoreContainsBarcode = 100
	ScoreFuzzyCode       = 90
	ScoreFuzzyName       = 70
	ScoreFuzzyBarcode    = 50
)

// Options configures a Ranker.
type Options struct {
	// Fuzzy enables single-character insertion matches.
	Fuzzy bool
}

// Ranker scores and orders products. It is stateless and safe for
// concurrent use.
type Ranker struct {
	opts Options
}

// New creates a Ranker.
func New(opts Options) *Ranker {
	return &Ranker{opts: opts}
}

// fields is a product's searchable text, lowercased.
type fields struct {
	code     string
	name     string
	words    []string
	barcodes []string
}

func newFields(p *domain.Product) fields {
	f := fields{
		code:     strings.ToLower(p.ItemCode),
		name:     strings.ToLower(p.Name),
		barcodes: make([]string, len(p.Barcodes)),
	}
	for i, b := range p.Barcodes {
		f.barcodes[i] = strings.ToLower(b)
	}
	f.words = strings.FieldsFunc(f.name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return f
}

// Score returns the total score of p for terms, or 0 when any term fails to
// match. Terms need not be lowercased.
func (r *Ranker) Score(p *domain.Product, terms []string) int {
	if len(terms) == 0 {
		return 0
	}
	f := newFields(p)

	total := 0
	for _, term := range terms {
		s := r.scoreTerm(&f, strings.ToLower(term))
		if s == 0 {
			return 0
		}
		total += s
	}
	return total
}

func (r *Ranker) scoreTerm(f *fields, t string) int {
	if t == "" {
		return 0
	}
	switch {
	case f.code == t:
		return ScoreExactCode
	case anyOf(f.barcodes, func(b string) bool { return b == t }):
		return ScoreExactBarcode
	case f.name == t:
		return ScoreExactName
	case strings.HasPrefix(f.code, t):
		return ScorePrefixCode
	case anyOf(f.words, func(w string) bool { return w == t }):
		return ScoreWordName
	case strings.Contains(f.code, t):
		return ScoreContainsCode
	case strings.HasPrefix(f.name, t):
		return ScorePrefixName
	case anyOf(f.barcodes, func(b string) bool { return strings.HasPrefix(b, t) }):
		return ScorePrefixBarcode
	case strings.Contains(f.name, t):
		return ScoreContainsName
	case anyOf(f.barcodes, func(b string) bool { return strings.Contains(b, t) }):
		return ScoreContainsBarcode
	}

	if !r.opts.Fuzzy {
		return 0
	}
	term := []rune(t)
	if len(term) < domain.FuzzyMinRunes {
		return 0
	}
	switch {
	case containsInsertion([]rune(f.code), term):
		return ScoreFuzzyCode
	case containsInsertion([]rune(f.name), term):
		return ScoreFuzzyName
	case anyOf(f.barcodes, func(b string) bool { return containsInsertion([]rune(b), term) }):
		return ScoreFuzzyBarcode
	}
	return 0
}

// Rank scores every product and returns those scoring above zero, ordered by
// score descending then item code ascending.
func (r *Ranker) Rank(products []domain.Product, terms []string) []domain.ScoredProduct {
	ranked := make([]domain.ScoredProduct, 0, len(products))
	if len(terms) == 0 {
		return ranked
	}
	for i := range products {
		if s := r.Score(&products[i], terms); s > 0 {
			ranked = append(ranked, domain.ScoredProduct{Product: products[i], Score: s})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ItemCode < ranked[j].ItemCode
	})
	return ranked
}

func anyOf(values []string, pred func(string) bool) bool {
	for _, v := range values {
		if pred(v) {
			return true
		}
	}
	return false
}

// containsInsertion reports whether field contains term with exactly one
// extra rune inserted strictly inside it.
func containsInsertion(field, term []rune) bool {
	n := len(term)
	if n < 2 || len(field) < n+1 {
		return false
	}
	for start := 0; start+n+1 <= len(field); start++ {
		window := field[start : start+n+1]
		// Longest common prefix of window and term, then check that the
		// rest of term matches window shifted by one.
		k := 0
		for k < n && window[k] == term[k] {
			k++
		}
		for i := 1; i <= k && i < n; i++ {
			if equalRunes(window[i+1:], term[i:]) {
				return true
			}
		}
	}
	return false
}

func equalRunes(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
