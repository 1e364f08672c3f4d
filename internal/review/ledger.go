package review

import (
	"github.com/Dweliw01/DocuFlow-sub000/internal/types"
)

// latestPerField projects the ledger to its newest entry per field.
// Entries are last-write-wins by server receipt time; ties at the same
// instant resolve to the later ledger entry.
func latestPerField(corrections []types.Correction) map[string]types.Correction {
	latest := make(map[string]types.Correction)
	for _, c := range corrections {
		prev, ok := latest[c.FieldName]
		if !ok || !c.ReceivedAt.Before(prev.ReceivedAt) {
			latest[c.FieldName] = c
		}
	}
	return latest
}

// CurrentValues merges original extraction output with the ledger's
// current value per field. Originals are never overwritten in the
// store; this projection is how readers see the corrected document.
func CurrentValues(fields []types.ExtractedField, corrections []types.Correction) map[string]string {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		values[f.Name] = f.Value
	}
	for name, c := range latestPerField(corrections) {
		if name == types.ReservedLineItemsField {
			continue
		}
		values[name] = c.CorrectedValue
	}
	return values
}

// CorrectedFields returns the set of field names with at least one
// ledger entry. Scoring treats these as human-verified.
func CorrectedFields(corrections []types.Correction) map[string]bool {
	set := make(map[string]bool)
	for _, c := range corrections {
		if c.FieldName == types.ReservedLineItemsField {
			continue
		}
		set[c.FieldName] = true
	}
	return set
}

// CurrentValue returns the ledger's current value for one field and
// whether any entry exists for it.
func CurrentValue(corrections []types.Correction, field string) (string, bool) {
	c, ok := latestPerField(corrections)[field]
	if !ok {
		return "", false
	}
	return c.CorrectedValue, true
}
