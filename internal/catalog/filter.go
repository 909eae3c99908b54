package catalog

import (
	"fmt"
	"strings"

	"github.com/Asdisarson/ss/internal/domain"
)

// Filter columns. Each holds the lowercased text of one searchable field.
const (
	ColumnItemCode = "item_code_lc"
	ColumnName     = "name_lc"
	ColumnBarcodes = "barcode_search"
)

var filterColumns = []string{ColumnItemCode, ColumnName, ColumnBarcodes}

// FilterOptions controls which match patterns the row filter emits.
type FilterOptions struct {
	// Fuzzy adds single-character insertion patterns for terms of at least
	// domain.FuzzyMinRunes runes.
	Fuzzy bool
}

// TermClause matches a row when any column is LIKE any pattern.
type TermClause struct {
	Term     string
	Patterns []string
}

// Filter is a conjunction of term clauses. It accepts every row the ranker
// can score above zero, and possibly more.
type Filter struct {
	Clauses []TermClause
}

// Empty reports whether the filter has no clauses. An empty filter matches
// nothing.
func (f Filter) Empty() bool {
	return len(f.Clauses) == 0
}

// BuildFilter builds the row filter for terms. Exact and prefix matches are
// subsumed by the contains pattern.
func BuildFilter(terms []string, opts FilterOptions) Filter {
	clauses := make([]TermClause, 0, len(terms))
	for _, term := range domain.NormalizeTerms(terms) {
		if term == "" {
			continue
		}
		clause := TermClause{Term: term, Patterns: []string{"%" + escapeLike(term) + "%"}}

		runes := []rune(term)
		if opts.Fuzzy && len(runes) >= domain.FuzzyMinRunes {
			for i := 1; i < len(runes); i++ {
				clause.Patterns = append(clause.Patterns,
					"%"+escapeLike(string(runes[:i]))+"_"+escapeLike(string(runes[i:]))+"%")
			}
		}
		clauses = append(clauses, clause)
	}
	return Filter{Clauses: clauses}
}

// Where renders the filter as a SQL boolean expression. placeholder maps a
// 1-based argument index to the driver's bind syntax; each pattern is bound
// once and referenced from every column.
func (f Filter) Where(placeholder func(n int) string) (string, []any) {
	if f.Empty() {
		return "FALSE", nil
	}

	var (
		args    []any
		clauses = make([]string, 0, len(f.Clauses))
	)
	for _, c := range f.Clauses {
		preds := make([]string, 0, len(c.Patterns)*len(filterColumns))
		for _, p := range c.Patterns {
			args = append(args, p)
			ph := placeholder(len(args))
			for _, col := range filterColumns {
				preds = append(preds, fmt.Sprintf(`%s LIKE %s ESCAPE '\'`, col, ph))
			}
		}
		clauses = append(clauses, "("+strings.Join(preds, " OR ")+")")
	}
	return strings.Join(clauses, " AND "), args
}

// Match evaluates the filter against already-lowercased column values.
func (f Filter) Match(itemCode, name, barcodes string) bool {
	if f.Empty() {
		return false
	}
	cols := [...]string{itemCode, name, barcodes}
	for _, c := range f.Clauses {
		if !c.matchAny(cols[:]) {
			return false
		}
	}
	return true
}

func (c TermClause) matchAny(values []string) bool {
	for _, p := range c.Patterns {
		for _, v := range values {
			if likeMatch(v, p) {
				return true
			}
		}
	}
	return false
}

// escapeLike escapes LIKE wildcards and the escape character itself.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

type likeToken struct {
	r      rune
	any    bool // %
	single bool // _
}

// likeMatch reports whether s matches a LIKE pattern with '\' as escape.
// Comparison is exact; callers lowercase both sides.
func likeMatch(s, pattern string) bool {
	var toks []likeToken
	pr := []rune(pattern)
	for i := 0; i < len(pr); i++ {
		switch {
		case pr[i] == '\\' && i+1 < len(pr):
			i++
			toks = append(toks, likeToken{r: pr[i]})
		case pr[i] == '%':
			toks = append(toks, likeToken{any: true})
		case pr[i] == '_':
			toks = append(toks, likeToken{single: true})
		default:
			toks = append(toks, likeToken{r: pr[i]})
		}
	}

	sr := []rune(s)
	// match[j] reports whether toks[:i] matches sr[:j].
	match := make([]bool, len(sr)+1)
	match[0] = true
	for _, t := range toks {
		next := make([]bool, len(sr)+1)
		for j := 0; j <= len(sr); j++ {
			switch {
			case t.any:
				next[j] = match[j] || (j > 0 && next[j-1])
			case j == 0:
			case t.single:
				next[j] = match[j-1]
			default:
				next[j] = match[j-1] && sr[j-1] == t.r
			}
		}
		match = next
	}
	return match[len(sr)]
}

func lower(s string) string {
	return strings.ToLower(s)
}
