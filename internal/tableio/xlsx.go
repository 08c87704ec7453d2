package tableio

import (
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nconklindev/refmatch/internal/errors"
	"github.com/nconklindev/refmatch/internal/types"
)

const maxSheetNameLen = 31

func xlsxSheets(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

func readXLSX(path, sheet string) (*types.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx == -1 {
		return nil, errors.NewNotFoundError("sheet", sheet)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.NewParseError("xlsx", path, "reading sheet "+sheet, err)
	}
	if len(rows) == 0 {
		return nil, errors.NewParseError("xlsx", path, "sheet "+sheet+" is empty", nil)
	}

	headerRowIdx := findHeaderRow(rows)
	return buildTable(sheet, types.FormatXLSX, rows[headerRowIdx], rows[headerRowIdx+1:]), nil
}

// WriteXLSX writes t to a single-sheet workbook. The sheet name is cleaned
// of characters Excel rejects and truncated to 31 characters.
func WriteXLSX(path, sheet string, t *types.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	name := SheetName(sheet)
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return errors.NewIOError("write", path, err)
	}

	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return errors.NewIOError("write", path, err)
	}

	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return errors.NewIOError("write", path, err)
	}

	for r, row := range t.Rows {
		cells := make([]interface{}, len(t.Columns))
		for i, c := range t.Columns {
			if v := row[c]; !types.IsMissing(v) {
				cells[i] = v
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := sw.SetRow(cell, cells); err != nil {
			return errors.NewIOError("write", path, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return errors.NewIOError("write", path, err)
	}
	if err := f.SaveAs(path); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return nil
}

// SheetName returns a valid worksheet name for name, or "Sheet1" when
// nothing usable remains.
func SheetName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, name)
	cleaned = strings.Trim(strings.TrimSpace(cleaned), "'")

	runes := []rune(cleaned)
	if len(runes) > maxSheetNameLen {
		cleaned = string(runes[:maxSheetNameLen])
	}
	if cleaned == "" {
		return "Sheet1"
	}
	return cleaned
}
