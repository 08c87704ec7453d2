package types

import "strings"

type SourceFormat string

const (
	FormatCSV    SourceFormat = "csv"
	FormatXLSX   SourceFormat = "xlsx"
	FormatJSON   SourceFormat = "json"
	FormatSQLite SourceFormat = "sqlite"
)

// Row maps a column name to its cell value.
type Row map[string]Value

// Table is a parsed dataset. Columns holds the column order; rows are keyed by name.
type Table struct {
	// Name is the sheet or table the data was read from, empty for CSV/JSON.
	Name    string
	Format  SourceFormat
	Columns []string
	Rows    []Row
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// AddColumn appends name to the column order if it is not already present.
func (t *Table) AddColumn(name string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
}

// AppendRow adds a row built from values in column order.
func (t *Table) AppendRow(values ...Value) {
	row := make(Row, len(t.Columns))
	for i, col := range t.Columns {
		if i < len(values) {
			row[col] = values[i]
		} else {
			row[col] = nil
		}
	}
	t.Rows = append(t.Rows, row)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		Name:    t.Name,
		Format:  t.Format,
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, row := range t.Rows {
		cp := make(Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// Records renders the table as strings, header first. Missing cells are empty.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.Rows)+1)
	records = append(records, append([]string(nil), t.Columns...))
	for _, row := range t.Rows {
		rec := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			rec[i] = Display(row[col])
		}
		records = append(records, rec)
	}
	return records
}

type OutputMode string

const (
	ModeNew     OutputMode = "new"
	ModeReplace OutputMode = "replace"
)

const (
	calibratedPrefix = "Calibrated_"
	originalSuffix   = "_original"
)

// OutputConfig says how one target field lands in the raw table: as a new
// column, or by overwriting an existing raw column with an optional backup.
type OutputConfig struct {
	Field        string     `json:"field" yaml:"field" mapstructure:"field"`
	Mode         OutputMode `json:"mode" yaml:"mode" mapstructure:"mode"`
	Column       string     `json:"column,omitempty" yaml:"column,omitempty" mapstructure:"column"`
	KeepOriginal bool       `json:"keep_original,omitempty" yaml:"keep_original,omitempty" mapstructure:"keep_original"`
	Backup       string     `json:"backup,omitempty" yaml:"backup,omitempty" mapstructure:"backup"`
}

// Destination is the column the calibrated value is written to.
func (c OutputConfig) Destination() string {
	if c.Mode == ModeReplace {
		return c.Column
	}
	name := strings.TrimSpace(c.Column)
	if name == "" {
		return calibratedPrefix + c.Field
	}
	return name
}

// BackupColumn is the column holding pre-replace values, or "" when no
// backup was requested.
func (c OutputConfig) BackupColumn() string {
	if c.Mode != ModeReplace || !c.KeepOriginal {
		return ""
	}
	name := strings.TrimSpace(c.Backup)
	if name == "" {
		return c.Column + originalSuffix
	}
	return name
}

// RunResult summarizes a finished reconciliation.
type RunResult struct {
	RawFile         string   `json:"raw_file,omitempty" yaml:"raw_file,omitempty"`
	ReferenceFile   string   `json:"reference_file,omitempty" yaml:"reference_file,omitempty"`
	OutputFiles     []string `json:"output_files,omitempty" yaml:"output_files,omitempty"`
	RowsProcessed   int      `json:"rows_processed" yaml:"rows_processed"`
	RowsMatched     int      `json:"rows_matched" yaml:"rows_matched"`
	RowsUnmatched   int      `json:"rows_unmatched" yaml:"rows_unmatched"`
	Overrides       int      `json:"overrides" yaml:"overrides"`
	SynthesizedRows int      `json:"synthesized_rows" yaml:"synthesized_rows"`
}

// Coverage is the matched share of processed rows.
func (r *RunResult) Coverage() float64 {
	if r.RowsProcessed == 0 {
		return 0
	}
	return float64(r.RowsMatched) / float64(r.RowsProcessed)
}
