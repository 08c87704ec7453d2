package tableio

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nconklindev/refmatch/internal/errors"
	"github.com/nconklindev/refmatch/internal/logging"
	"github.com/nconklindev/refmatch/internal/reconcile"
	"github.com/nconklindev/refmatch/internal/types"
)

// Output file base names, sheet names and table names.
const (
	ResultBaseName  = "calibrated_data"
	MappingBaseName = "updated_mapping"

	DefaultResultSheet = "Calibrated Data"
	MappingSheet       = "Updated Mapping"
	MappingTable       = "updated_mapping"
)

// DefaultFormats are written when an ExportPlan names none.
var DefaultFormats = []types.SourceFormat{types.FormatCSV, types.FormatXLSX}

// ExportPlan says where and how a session is written.
type ExportPlan struct {
	Dir string
	// Formats lists the table formats for both outputs: csv and/or xlsx.
	Formats []types.SourceFormat
	// ResultSheet names the XLSX result sheet. Empty means the raw sheet
	// name, or DefaultResultSheet when the raw data had none.
	ResultSheet string
	// Progress, when set, receives the fraction of files written. Sends
	// never block.
	Progress chan<- float64
}

// Export writes the result table and the updated mapping of s. The mapping
// is also written as keyed JSON when the reference came from JSON, and as a
// SQLite table when it came from SQLite. It returns the session summary
// with the written paths.
func Export(ctx context.Context, s *reconcile.Session, plan ExportPlan) (*types.RunResult, error) {
	log := logging.FromContext(ctx)

	formats := plan.Formats
	if len(formats) == 0 {
		formats = DefaultFormats
	}
	for _, f := range formats {
		if f != types.FormatCSV && f != types.FormatXLSX {
			return nil, errors.NewUnsupportedError("export format", string(f))
		}
	}

	dir := plan.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewIOError("create", dir, err)
	}

	sheet := plan.ResultSheet
	if sheet == "" {
		sheet = s.Raw().Name
	}
	if sheet == "" {
		sheet = DefaultResultSheet
	}

	result := s.Result()
	mapping := s.ExportMapping()
	refFormat := s.Reference().Format
	sel := s.Selection()

	var jobs []func() (string, error)
	for _, f := range formats {
		switch f {
		case types.FormatCSV:
			jobs = append(jobs,
				writeJob(dir, ResultBaseName+".csv", func(p string) error { return WriteCSV(p, result) }),
				writeJob(dir, MappingBaseName+".csv", func(p string) error { return WriteCSV(p, mapping) }),
			)
		case types.FormatXLSX:
			jobs = append(jobs,
				writeJob(dir, ResultBaseName+".xlsx", func(p string) error { return WriteXLSX(p, sheet, result) }),
				writeJob(dir, MappingBaseName+".xlsx", func(p string) error { return WriteXLSX(p, MappingSheet, mapping) }),
			)
		}
	}
	switch refFormat {
	case types.FormatJSON:
		keys := reconcile.BuildKeys(mapping, sel.ReferenceKeys)
		jobs = append(jobs, writeJob(dir, MappingBaseName+".json", func(p string) error {
			return WriteKeyedJSON(p, keys, mapping, sel.Fields)
		}))
	case types.FormatSQLite:
		jobs = append(jobs, writeJob(dir, MappingBaseName+".sqlite", func(p string) error {
			return WriteSQLite(p, MappingTable, mapping)
		}))
	}

	var written []string
	for i, job := range jobs {
		path, err := job()
		if err != nil {
			return nil, err
		}
		written = append(written, path)
		log.Info().Str("path", path).Msg("Wrote file")

		if plan.Progress != nil {
			select {
			case plan.Progress <- float64(i+1) / float64(len(jobs)):
			default:
			}
		}
	}

	summary := s.Summary()
	summary.OutputFiles = written
	return &summary, nil
}

func writeJob(dir, name string, write func(path string) error) func() (string, error) {
	return func() (string, error) {
		path := filepath.Join(dir, name)
		return path, write(path)
	}
}
