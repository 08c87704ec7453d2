package reconcile

import (
	"strings"

	"github.com/nconklindev/refmatch/internal/types"
)

// Column names of the review and preview tables.
const (
	KeyColumn        = "Original Value"
	OriginalPrefix   = "Original "
	CalibratedPrefix = "Calibrated "
)

// ReviewTable lists the unmatched items for manual entry: the key, the raw
// key column values, and an empty column per target field.
func (s *Session) ReviewTable() *types.Table {
	cols := []string{KeyColumn}
	for _, c := range s.sel.RawKeys {
		cols = append(cols, OriginalPrefix+c)
	}
	for _, f := range s.sel.Fields {
		cols = append(cols, CalibratedPrefix+f)
	}

	t := types.NewTable(cols...)
	for _, item := range s.Unmatched() {
		row := types.Row{KeyColumn: item.Key}
		for i, c := range s.sel.RawKeys {
			row[OriginalPrefix+c] = item.Values[i]
		}
		for _, f := range s.sel.Fields {
			row[CalibratedPrefix+f] = ""
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// PreviewTable lists every lookup key with its current calibrated values.
func (s *Session) PreviewTable() *types.Table {
	lt := s.lookup.Table(KeyColumn)
	t := types.NewTable(KeyColumn)
	for _, f := range s.sel.Fields {
		t.AddColumn(CalibratedPrefix + f)
	}
	for _, src := range lt.Rows {
		row := types.Row{KeyColumn: src[KeyColumn]}
		for _, f := range s.sel.Fields {
			row[CalibratedPrefix+f] = src[f]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// EditsFromTable reads an edited review or preview table back into edits.
// Rows without a key are skipped; missing cells become blank values. Cells
// keep the value the table holds, so untouched cells compare equal to the
// lookup and are not rewritten.
func EditsFromTable(t *types.Table, fields []string) []Edit {
	var edits []Edit
	for _, row := range t.Rows {
		key := types.Display(row[KeyColumn])
		if strings.TrimSpace(key) == "" {
			continue
		}
		e := Edit{Key: key, Values: make(map[string]types.Value, len(fields))}
		for _, f := range fields {
			col := CalibratedPrefix + f
			if !t.HasColumn(col) {
				continue
			}
			e.Values[f] = row[col]
		}
		edits = append(edits, e)
	}
	return edits
}
