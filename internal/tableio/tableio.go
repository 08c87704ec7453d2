// Package tableio reads and writes the tables refmatch works on: CSV, XLSX,
// JSON and SQLite files.
package tableio

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nconklindev/refmatch/internal/errors"
	"github.com/nconklindev/refmatch/internal/types"
)

// HeaderSearchLimit is how many leading spreadsheet rows are searched for the header.
const HeaderSearchLimit = 20

// ReadOptions selects what part of a file is read.
type ReadOptions struct {
	// Sheet is the XLSX sheet or SQLite table. Empty means the first one.
	Sheet string
	// Transpose swaps rows and columns after reading.
	Transpose bool
}

// DetectFormat maps a file extension to its source format.
func DetectFormat(path string) (types.SourceFormat, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return types.FormatCSV, nil
	case ".xlsx":
		return types.FormatXLSX, nil
	case ".json":
		return types.FormatJSON, nil
	case ".db", ".sqlite", ".sqlite3":
		return types.FormatSQLite, nil
	default:
		return "", errors.NewUnsupportedError("file type", ext)
	}
}

// ListSheets returns the sheets of an XLSX file or the tables of a SQLite
// database. CSV and JSON files have none.
func ListSheets(path string) ([]string, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case types.FormatXLSX:
		return xlsxSheets(path)
	case types.FormatSQLite:
		return sqliteTables(path)
	default:
		return nil, nil
	}
}

// ReadTable reads a whole file into a table.
func ReadTable(path string, opts ReadOptions) (*types.Table, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var t *types.Table
	switch format {
	case types.FormatCSV:
		t, err = readCSV(path)
	case types.FormatXLSX:
		t, err = readXLSX(path, opts.Sheet)
	case types.FormatJSON:
		t, err = readJSON(path)
	case types.FormatSQLite:
		t, err = readSQLite(path, opts.Sheet)
	}
	if err != nil {
		return nil, err
	}
	if opts.Transpose {
		t = Transpose(t)
	}
	return t, nil
}

// buildTable turns a header record and string records into a table. Empty
// cells become missing values; rows longer than the header get extra
// unnamed columns.
func buildTable(name string, format types.SourceFormat, header []string, records [][]string) *types.Table {
	width := len(header)
	for _, rec := range records {
		if len(rec) > width {
			width = len(rec)
		}
	}
	padded := make([]string, width)
	copy(padded, header)

	t := types.NewTable(normalizeHeaders(padded)...)
	t.Name = name
	t.Format = format
	for _, rec := range records {
		values := make([]types.Value, width)
		for i := 0; i < len(rec); i++ {
			if strings.TrimSpace(rec[i]) != "" {
				values[i] = rec[i]
			}
		}
		t.AppendRow(values...)
	}
	return t
}

// normalizeHeaders names blank headers "Unnamed: <i>" and suffixes
// repeated names with ".1", ".2" and so on.
func normalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	used := make(map[string]bool, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		base := name
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s.%d", base, n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// findHeaderRow locates the row that looks most like a header: the one
// among the first HeaderSearchLimit rows with the most non-empty cells,
// provided it has at least two and some contain letters. It returns 0 when
// no row qualifies.
func findHeaderRow(rows [][]string) int {
	maxNonEmpty := 0
	headerIdx := -1

	limit := len(rows)
	if limit > HeaderSearchLimit {
		limit = HeaderSearchLimit
	}

	for i := 0; i < limit; i++ {
		nonEmpty := 0
		hasText := false
		for _, cell := range rows[i] {
			trimmed := strings.TrimSpace(cell)
			if trimmed == "" {
				continue
			}
			nonEmpty++
			if containsLetters(trimmed) {
				hasText = true
			}
		}
		if nonEmpty >= 2 && hasText && nonEmpty > maxNonEmpty {
			maxNonEmpty = nonEmpty
			headerIdx = i
		}
	}

	if headerIdx == -1 {
		return 0
	}
	return headerIdx
}

// containsLetters checks if a string contains any letters
func containsLetters(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}
