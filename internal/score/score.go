// Package score computes per-field and overall document confidence.
//
// The validators are deliberately simple pattern matchers, not ML. They
// live in a table keyed by field class so thresholds can be tuned without
// touching router or state machine logic.
package score

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// Class is the validator class a field name resolves to.
type Class string

const (
	ClassAmount  Class = "amount"
	ClassDate    Class = "date"
	ClassEmail   Class = "email"
	ClassGeneric Class = "generic"
)

var (
	reCurrency = regexp.MustCompile(`^\$?[\d,]+\.\d{2}$`)
	reNumeric  = regexp.MustCompile(`^-?\$?[\d,]+(\.\d+)?$`)
	reEmail    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// dateLayouts are the calendar formats accepted by the date validator.
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

// amountFields and dateFields steer well-known names to their class.
var (
	amountFields = map[string]bool{
		"amount": true, "total": true, "subtotal": true, "tax": true,
		"balance_due": true, "amount_due": true, "discount": true,
	}
	dateFields = map[string]bool{
		"date": true, "invoice_date": true, "due_date": true,
		"issue_date": true, "tx_date": true,
	}
)

// excludedFields never contribute to the overall confidence. The line
// items array has no scalar confidence, and bookkeeping keys describe the
// document rather than its content.
var excludedFields = map[string]bool{
	types.ReservedLineItemsField: true,
	"doc_type":                   true,
	"category":                   true,
	"page_count":                 true,
	"raw_text":                   true,
}

// ClassifyField resolves a field name to its validator class.
func ClassifyField(name string) Class {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case amountFields[n]:
		return ClassAmount
	case dateFields[n] || strings.HasSuffix(n, "_date"):
		return ClassDate
	case n == "email" || strings.HasSuffix(n, "_email"):
		return ClassEmail
	default:
		return ClassGeneric
	}
}

// FieldConfidence scores one extracted value.
// Empty values score 0.30, never zero, so a missing field drags the
// weighted mean down without zeroing it out.
func FieldConfidence(name, value string) float64 {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0.30
	}

	switch ClassifyField(name) {
	case ClassAmount:
		if reCurrency.MatchString(v) {
			return 0.95
		}
		if reNumeric.MatchString(v) {
			return 0.75
		}
		return 0.50
	case ClassDate:
		if parseableDate(v) {
			return 0.93
		}
		return 0.55
	case ClassEmail:
		if reEmail.MatchString(v) {
			return 0.96
		}
		return 0.50
	default:
		return 0.75
	}
}

func parseableDate(v string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, v); err == nil {
			return true
		}
	}
	return false
}

// fieldWeight returns the weight a field carries in the overall mean.
func fieldWeight(name string) float64 {
	n := strings.ToLower(strings.TrimSpace(name))
	switch {
	case n == "amount":
		return 2.0
	case n == "date":
		return 1.5
	case n == "vendor":
		return 1.5
	case strings.HasSuffix(n, "_number"):
		return 1.2
	default:
		return 1.0
	}
}

// Excluded reports whether a field is ignored by the overall mean.
func Excluded(name string) bool {
	return excludedFields[strings.ToLower(strings.TrimSpace(name))]
}

// Overall computes the weighted mean of field confidences, rounded to two
// decimals. Fields named in corrected are human-verified and score 1.0.
// Returns 0 when no scorable fields are present.
func Overall(fields []types.ExtractedField, corrected map[string]bool) float64 {
	var sum, weights float64
	for _, f := range fields {
		if Excluded(f.Name) {
			continue
		}
		conf := f.Confidence
		if corrected[f.Name] {
			conf = 1.0
		}
		w := fieldWeight(f.Name)
		sum += conf * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return math.Round(sum/weights*100) / 100
}
