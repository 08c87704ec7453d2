package reconcile

import "github.com/nconklindev/refmatch/internal/types"

// ExportMapping rebuilds the reference table from the final lookup state.
// Reference rows get their target columns refreshed; a reference row whose
// key repeats an earlier row is folded into the first one. Lookup keys
// missing from the reference are appended as new rows whose key columns
// come from the first raw row with that key. Keys no raw row carries are
// skipped.
func ExportMapping(ref *types.Table, refKeys []string, lookup *LookupTable, raw *types.Table, rawKeys []string) *types.Table {
	out, _ := exportMapping(ref, refKeys, lookup, raw, rawKeys)
	return out
}

func exportMapping(ref *types.Table, refKeys []string, lookup *LookupTable, raw *types.Table, rawKeys []string) (*types.Table, int) {
	fields := lookup.Fields()
	out := &types.Table{
		Name:    ref.Name,
		Format:  ref.Format,
		Columns: append([]string(nil), ref.Columns...),
	}
	for _, f := range fields {
		out.AddColumn(f)
	}

	seen := make(map[string]bool, len(ref.Rows))
	for _, src := range ref.Clone().Rows {
		key := BuildKey(src, refKeys)
		if seen[key] {
			continue
		}
		seen[key] = true
		for _, f := range fields {
			src[f] = lookup.Get(key, f)
		}
		out.Rows = append(out.Rows, src)
	}

	firstRaw := make(map[string]types.Row)
	for _, row := range raw.Rows {
		key := BuildKey(row, rawKeys)
		if _, ok := firstRaw[key]; !ok {
			firstRaw[key] = row
		}
	}

	synthesized := 0
	for _, key := range lookup.Keys() {
		if seen[key] {
			continue
		}
		src, ok := firstRaw[key]
		if !ok {
			continue
		}
		row := make(types.Row, len(out.Columns))
		for _, c := range out.Columns {
			row[c] = nil
		}
		for i, rk := range refKeys {
			row[rk] = src[rawKeys[i]]
		}
		for _, f := range fields {
			row[f] = lookup.Get(key, f)
		}
		out.Rows = append(out.Rows, row)
		seen[key] = true
		synthesized++
	}
	return out, synthesized
}
