// Package reconcile matches a raw table against a reference table on
// composite keys and carries calibrated reference values into the raw data.
//
// A Session holds the state of one reconciliation: the lookup table built
// from the reference, the result table built from the raw data, and the
// manual overrides applied on top of both.
package reconcile

import (
	"strings"

	"github.com/nconklindev/refmatch/internal/types"
)

const (
	// KeyDelimiter joins the parts of a composite key.
	KeyDelimiter = " | "

	// MissingPlaceholder stands in for missing key values so the same
	// missing pattern always yields the same key.
	MissingPlaceholder = "nan"
)

// KeyPart is the string form of one key column value.
func KeyPart(v types.Value) string {
	if types.IsMissing(v) {
		return MissingPlaceholder
	}
	return types.String(v)
}

// BuildKey joins the values of columns, in order, into a composite key.
func BuildKey(row types.Row, columns []string) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = KeyPart(row[col])
	}
	return strings.Join(parts, KeyDelimiter)
}

// BuildKeys returns the composite key of every row of t.
func BuildKeys(t *types.Table, columns []string) []string {
	keys := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		keys[i] = BuildKey(row, columns)
	}
	return keys
}
