// Package mapper resolves extracted field names against a destination
// repository schema and coerces values into the destination's types.
package mapper

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// similarityThreshold is the minimum fuzzy score for a name pair to be
// considered the same field. Strictly greater-than.
const similarityThreshold = 0.70

// dateLayouts are the calendar formats the coercer will accept. Output
// is always canonical ISO 8601.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"01-02-2006",
	"02.01.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
}

const canonicalDateLayout = "2006-01-02"

// Result is a destination-ready payload for one document.
type Result struct {
	// Values holds coerced values keyed by destination field name.
	// Dates are canonical strings, decimals float64, integers int64,
	// text plain strings, tables []map[string]string.
	Values map[string]any

	// Mapping records which extraction field fed each destination
	// field, keyed by extraction field name.
	Mapping map[string]string

	// MissingRequired lists required destination fields that resolved
	// to no source, an empty value, or an uncoercible value, in schema
	// declaration order.
	MissingRequired []string
}

// Match pairs extraction field names with destination descriptors.
// Destination fields are considered in declaration order and each
// source field is claimed at most once. Matching priority per
// destination field:
//
//  1. Exact match on case-insensitive, underscore-stripped names.
//  2. Substring containment either direction on stripped names.
//  3. Highest fuzzy similarity above the threshold.
//
// The returned map is keyed by extraction field name.
func Match(schema types.DestinationSchema, sources []string) map[string]string {
	mapping := make(map[string]string)
	claimed := make(map[string]bool)

	// Pass 1: exact.
	for _, dest := range schema.Fields {
		if src := findExact(dest.Name, sources, claimed); src != "" {
			mapping[src] = dest.Name
			claimed[src] = true
		}
	}

	// Pass 2: substring containment.
	for _, dest := range schema.Fields {
		if hasDest(mapping, dest.Name) {
			continue
		}
		if src := findSubstring(dest.Name, sources, claimed); src != "" {
			mapping[src] = dest.Name
			claimed[src] = true
		}
	}

	// Pass 3: fuzzy.
	for _, dest := range schema.Fields {
		if hasDest(mapping, dest.Name) {
			continue
		}
		if src := findSimilar(dest.Name, sources, claimed); src != "" {
			mapping[src] = dest.Name
			claimed[src] = true
		}
	}

	return mapping
}

// Build matches and coerces one document's fields into a destination
// payload. mapping may be nil, in which case names are matched
// automatically; a non-nil mapping (a stored per-tenant override) is
// used as-is. tableCols, when non-empty, restricts which line item
// columns are forwarded to a table-typed destination field.
func Build(schema types.DestinationSchema, mapping map[string]string, fields map[string]string, lineItems []map[string]string, tableCols []string) *Result {
	if mapping == nil {
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		mapping = Match(schema, names)
	}

	// Invert for per-destination lookup.
	byDest := make(map[string]string, len(mapping))
	for src, dest := range mapping {
		byDest[dest] = src
	}

	result := &Result{
		Values:  make(map[string]any),
		Mapping: mapping,
	}

	for _, dest := range schema.Fields {
		if dest.Type == types.FieldTable {
			if len(lineItems) > 0 {
				result.Values[dest.Name] = filterColumns(lineItems, tableCols)
			} else if dest.Required {
				result.MissingRequired = append(result.MissingRequired, dest.Name)
			}
			continue
		}

		src, ok := byDest[dest.Name]
		raw := ""
		if ok {
			raw = strings.TrimSpace(fields[src])
		}
		if raw == "" {
			if dest.Required {
				result.MissingRequired = append(result.MissingRequired, dest.Name)
			}
			continue
		}

		value, ok := coerce(raw, dest)
		if !ok {
			if dest.Required {
				result.MissingRequired = append(result.MissingRequired, dest.Name)
			}
			continue
		}
		result.Values[dest.Name] = value
	}

	if result.MissingRequired == nil {
		result.MissingRequired = []string{}
	}
	return result
}

func hasDest(mapping map[string]string, dest string) bool {
	for _, d := range mapping {
		if d == dest {
			return true
		}
	}
	return false
}

func findExact(dest string, sources []string, claimed map[string]bool) string {
	d := stripName(dest)
	for _, src := range sources {
		if !claimed[src] && stripName(src) == d {
			return src
		}
	}
	return ""
}

func findSubstring(dest string, sources []string, claimed map[string]bool) string {
	d := stripName(dest)
	for _, src := range sources {
		if claimed[src] {
			continue
		}
		s := stripName(src)
		if s == "" || d == "" {
			continue
		}
		if strings.Contains(d, s) || strings.Contains(s, d) {
			return src
		}
	}
	return ""
}

func findSimilar(dest string, sources []string, claimed map[string]bool) string {
	best := ""
	bestScore := similarityThreshold
	for _, src := range sources {
		if claimed[src] {
			continue
		}
		if score := nameSimilarity(dest, src); score > bestScore {
			best = src
			bestScore = score
		}
	}
	return best
}

// nameSimilarity scores two field names in [0,1]. The score is the
// better of the whole-name Levenshtein ratio and the best ratio among
// underscore-delimited token pairs, so compound names that share a
// meaningful token (invoice_number / document_number) score high even
// when their full spellings diverge.
func nameSimilarity(a, b string) float64 {
	score := levenshteinRatio(stripName(a), stripName(b))
	for _, ta := range tokenize(a) {
		for _, tb := range tokenize(b) {
			if len(ta) < 3 || len(tb) < 3 {
				continue
			}
			if r := levenshteinRatio(ta, tb); r > score {
				score = r
			}
		}
	}
	return score
}

func levenshteinRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func stripName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "_", ""))
}

func tokenize(name string) []string {
	return strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
}

func filterColumns(items []map[string]string, cols []string) []map[string]string {
	if len(cols) == 0 {
		return items
	}
	keep := make(map[string]bool, len(cols))
	for _, c := range cols {
		keep[c] = true
	}
	out := make([]map[string]string, 0, len(items))
	for _, item := range items {
		row := make(map[string]string)
		for k, v := range item {
			if keep[k] {
				row[k] = v
			}
		}
		out = append(out, row)
	}
	return out
}

// coerce converts a raw extracted value into the destination type.
// Returns false when the value cannot be represented.
func coerce(raw string, dest types.FieldDescriptor) (any, bool) {
	switch dest.Type {
	case types.FieldDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.Format(canonicalDateLayout), true
			}
		}
		return nil, false
	case types.FieldDecimal:
		v, err := strconv.ParseFloat(stripNumeric(raw), 64)
		if err != nil {
			return nil, false
		}
		return v, true
	case types.FieldInteger:
		v, err := strconv.ParseFloat(stripNumeric(raw), 64)
		if err != nil {
			return nil, false
		}
		return int64(v), true
	default:
		if dest.MaxLength > 0 {
			r := []rune(raw)
			if len(r) > dest.MaxLength {
				return string(r[:dest.MaxLength]), true
			}
		}
		return raw, true
	}
}

// stripNumeric removes currency symbols, grouping separators, and
// whitespace ahead of numeric parsing.
func stripNumeric(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
