package tableio

import (
	"strconv"

	"github.com/nconklindev/refmatch/internal/types"
)

// Transpose swaps rows and columns. Row labels come from the index column
// when present, else from row positions; they become the new column names.
// The old column names move into a new index column.
func Transpose(t *types.Table) *types.Table {
	hasIndex := t.HasColumn(IndexColumn)

	labels := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		if hasIndex {
			labels[i] = types.Display(row[IndexColumn])
		} else {
			labels[i] = strconv.Itoa(i)
		}
	}
	names := normalizeHeaders(append([]string{IndexColumn}, labels...))

	out := types.NewTable(names...)
	out.Name = t.Name
	out.Format = t.Format
	for _, col := range t.Columns {
		if hasIndex && col == IndexColumn {
			continue
		}
		row := make(types.Row, len(names))
		row[names[0]] = col
		for i, src := range t.Rows {
			row[names[i+1]] = src[col]
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}
