package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nconklindev/refmatch/internal/reconcile"
	"github.com/nconklindev/refmatch/internal/types"
)

// Report is the result of a headless run.
type Report struct {
	Summary    types.RunResult `json:"summary" yaml:"summary"`
	Coverage   float64         `json:"coverage" yaml:"coverage"`
	KeyColumns []string        `json:"key_columns" yaml:"key_columns"`
	Unmatched  []UnmatchedRow  `json:"unmatched" yaml:"unmatched"`
}

// UnmatchedRow is one unmatched key with its raw key column values.
type UnmatchedRow struct {
	Key    string   `json:"key" yaml:"key"`
	Values []string `json:"values" yaml:"values"`
}

// NewReport describes s after a run. summary is usually s.Summary() with
// the file names filled in.
func NewReport(s *reconcile.Session, summary types.RunResult) *Report {
	r := &Report{
		Summary:    summary,
		Coverage:   summary.Coverage(),
		KeyColumns: s.Selection().RawKeys,
		Unmatched:  []UnmatchedRow{},
	}
	for _, item := range s.Unmatched() {
		values := make([]string, len(item.Values))
		for i, v := range item.Values {
			values[i] = reconcile.KeyPart(v)
		}
		r.Unmatched = append(r.Unmatched, UnmatchedRow{Key: item.Key, Values: values})
	}
	return r
}

func (f *TableFormatter) formatReport(w io.Writer, r *Report) error {
	s := r.Summary
	summary := Data{
		Headers: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Raw file", s.RawFile},
			{"Reference file", s.ReferenceFile},
			{"Rows processed", strconv.Itoa(s.RowsProcessed)},
			{"Rows matched", strconv.Itoa(s.RowsMatched)},
			{"Rows unmatched", strconv.Itoa(s.RowsUnmatched)},
			{"Coverage", fmt.Sprintf("%.1f%%", r.Coverage*100)},
			{"Overrides", strconv.Itoa(s.Overrides)},
			{"Synthesized rows", strconv.Itoa(s.SynthesizedRows)},
		},
	}
	for _, p := range s.OutputFiles {
		summary.Rows = append(summary.Rows, []string{"Output", p})
	}
	if err := f.formatTable(w, summary); err != nil {
		return err
	}

	if len(r.Unmatched) == 0 {
		_, err := fmt.Fprintln(w, "\nNo unmatched items.")
		return err
	}

	if _, err := fmt.Fprintf(w, "\n%d unmatched item(s):\n", len(r.Unmatched)); err != nil {
		return err
	}
	items := Data{Headers: []string{reconcile.KeyColumn}}
	for _, c := range r.KeyColumns {
		items.Headers = append(items.Headers, reconcile.OriginalPrefix+c)
	}
	for _, u := range r.Unmatched {
		items.Rows = append(items.Rows, append([]string{u.Key}, u.Values...))
	}
	return f.formatTable(w, items)
}
