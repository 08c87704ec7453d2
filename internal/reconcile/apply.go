package reconcile

import (
	"strings"

	"github.com/nconklindev/refmatch/internal/types"
)

// Apply writes lookup values into result for every output entry, in order.
// keys[i] is the composite key of result.Rows[i]. A replace entry with a
// backup copies the raw column aside before overwriting it. When several
// entries write the same column the last one wins.
func Apply(result *types.Table, keys []string, outputs []types.OutputConfig, lookup *LookupTable) {
	for _, out := range outputs {
		dest := out.Destination()
		if backup := out.BackupColumn(); backup != "" {
			result.AddColumn(backup)
			for _, row := range result.Rows {
				row[backup] = row[dest]
			}
		}
		result.AddColumn(dest)
		for i, row := range result.Rows {
			row[dest] = lookup.Get(keys[i], out.Field)
		}
	}
}

// UnmatchedRows returns the indices of rows where any configured target
// column is missing.
func UnmatchedRows(result *types.Table, outputs []types.OutputConfig) []int {
	var idx []int
	for i, row := range result.Rows {
		for _, out := range outputs {
			if types.IsMissing(row[out.Destination()]) {
				idx = append(idx, i)
				break
			}
		}
	}
	return idx
}

// UnmatchedItem is one distinct unmatched combination of raw key values.
type UnmatchedItem struct {
	Key    string
	Values []types.Value
}

// UnmatchedSet collects the distinct (key column values, key) tuples of the
// unmatched rows in first-appearance order.
func UnmatchedSet(result *types.Table, keys []string, keyColumns []string, outputs []types.OutputConfig) []UnmatchedItem {
	var items []UnmatchedItem
	seen := make(map[string]bool)
	for _, i := range UnmatchedRows(result, outputs) {
		row := result.Rows[i]
		values := make([]types.Value, len(keyColumns))
		var sig strings.Builder
		sig.WriteString(keys[i])
		for j, col := range keyColumns {
			values[j] = row[col]
			// nil and "nan" share a key but are distinct tuples
			if types.IsMissing(row[col]) {
				sig.WriteString("\x00")
			} else {
				sig.WriteString("\x01" + types.String(row[col]))
			}
		}
		if seen[sig.String()] {
			continue
		}
		seen[sig.String()] = true
		items = append(items, UnmatchedItem{Key: keys[i], Values: values})
	}
	return items
}

// Collision describes an output column that clobbers data.
type Collision struct {
	Column string
	Field  string
	Reason string
}

// CheckCollisions reports output columns that overwrite existing raw
// columns they do not own, and columns written by more than one entry.
// Apply still overwrites in both cases.
func CheckCollisions(rawColumns []string, outputs []types.OutputConfig) []Collision {
	existing := make(map[string]bool, len(rawColumns))
	for _, c := range rawColumns {
		existing[c] = true
	}

	var out []Collision
	writers := make(map[string]string)
	note := func(col, field string) {
		if prev, ok := writers[col]; ok {
			out = append(out, Collision{Column: col, Field: field, Reason: "also written by " + prev})
		}
		writers[col] = field
	}

	for _, o := range outputs {
		dest := o.Destination()
		if o.Mode != types.ModeReplace && existing[dest] {
			out = append(out, Collision{Column: dest, Field: o.Field, Reason: "new column already exists in raw data"})
		}
		if backup := o.BackupColumn(); backup != "" {
			if existing[backup] {
				out = append(out, Collision{Column: backup, Field: o.Field, Reason: "backup column already exists in raw data"})
			}
			note(backup, o.Field)
		}
		note(dest, o.Field)
	}
	return out
}
