package tableio

import (
	"encoding/csv"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/nconklindev/refmatch/internal/errors"
	"github.com/nconklindev/refmatch/internal/types"
)

func readCSV(path string) (*types.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer file.Close()

	// Strips a leading UTF-8 BOM if present.
	decoded := transform.NewReader(file, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewParseError("csv", path, "malformed record", err)
	}
	if len(records) == 0 {
		return nil, errors.NewParseError("csv", path, "empty file", nil)
	}

	return buildTable("", types.FormatCSV, records[0], records[1:]), nil
}

// WriteCSV writes t as UTF-8 CSV with a byte order mark so spreadsheet
// applications detect the encoding.
func WriteCSV(path string, t *types.Table) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.NewIOError("create", path, err)
	}
	defer file.Close()

	encoded := transform.NewWriter(file, unicode.UTF8BOM.NewEncoder())
	writer := csv.NewWriter(encoded)
	if err := writer.WriteAll(t.Records()); err != nil {
		return errors.NewIOError("write", path, err)
	}
	if err := encoded.Close(); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return nil
}
