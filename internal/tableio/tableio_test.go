package tableio

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/nconklindev/refmatch/internal/reconcile"
	"github.com/nconklindev/refmatch/internal/types"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    types.SourceFormat
		wantErr bool
	}{
		{"data.csv", types.FormatCSV, false},
		{"DATA.XLSX", types.FormatXLSX, false},
		{"ref.json", types.FormatJSON, false},
		{"ref.db", types.FormatSQLite, false},
		{"ref.sqlite3", types.FormatSQLite, false},
		{"notes.txt", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := DetectFormat(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DetectFormat(%q) error = %v; wantErr %v", tt.path, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DetectFormat(%q) = %q; want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestNormalizeHeaders(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"Unchanged", []string{"ID", "Name"}, []string{"ID", "Name"}},
		{"Blank", []string{"ID", "", " "}, []string{"ID", "Unnamed: 1", "Unnamed: 2"}},
		{"Duplicates", []string{"A", "A", "A"}, []string{"A", "A.1", "A.2"}},
		{"Suffix already taken", []string{"A", "A.1", "A"}, []string{"A", "A.1", "A.2"}},
		{"Trimmed", []string{" ID "}, []string{"ID"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeHeaders(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("normalizeHeaders(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFindHeaderRow(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want int
	}{
		{"First row", [][]string{{"ID", "Name"}, {"1", "a"}}, 0},
		{"Title above header", [][]string{{"Monthly report"}, {}, {"ID", "Name", "Val"}, {"1", "a", "2"}}, 2},
		{"Numbers only", [][]string{{"1", "2"}, {"3", "4"}}, 0},
		{"Single column", [][]string{{"ID"}, {"A1"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findHeaderRow(tt.rows); got != tt.want {
				t.Errorf("findHeaderRow() = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestReadCSV(t *testing.T) {
	path := writeFile(t, "raw.csv", "\ufeffID,Name,Name\nA1,apple,x\nB2,,y,extra\n")

	tbl, err := ReadTable(path, ReadOptions{})
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}

	wantCols := []string{"ID", "Name", "Name.1", "Unnamed: 3"}
	if !reflect.DeepEqual(tbl.Columns, wantCols) {
		t.Errorf("Columns = %q; want %q", tbl.Columns, wantCols)
	}
	if tbl.Format != types.FormatCSV {
		t.Errorf("Format = %q; want csv", tbl.Format)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(tbl.Rows))
	}
	if tbl.Rows[0]["ID"] != "A1" {
		t.Errorf("BOM not stripped: first cell = %q", tbl.Rows[0]["ID"])
	}
	if tbl.Rows[1]["Name"] != nil {
		t.Errorf("Expected empty cell to be missing, got %v", tbl.Rows[1]["Name"])
	}
	if tbl.Rows[0]["Unnamed: 3"] != nil || tbl.Rows[1]["Unnamed: 3"] != "extra" {
		t.Errorf("Ragged row not padded: %v", tbl.Rows)
	}
}

func TestReadCSV_Empty(t *testing.T) {
	path := writeFile(t, "empty.csv", "")
	if _, err := ReadTable(path, ReadOptions{}); err == nil {
		t.Error("Expected error for empty CSV")
	}
}

func TestWriteCSV(t *testing.T) {
	tbl := types.NewTable("ID", "Val")
	tbl.AppendRow("A1", int64(10))
	tbl.AppendRow("B2", nil)

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := WriteCSV(path, tbl); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		t.Errorf("Expected UTF-8 BOM, got % x", data[:3])
	}

	records, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"ID", "Val"}, {"A1", "10"}, {"B2", ""}}
	if !reflect.DeepEqual(records, want) {
		t.Errorf("records = %q; want %q", records, want)
	}
}

func TestXLSX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ref.xlsx")

	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "Reference export")
	f.SetCellValue("Sheet1", "A3", "ID")
	f.SetCellValue("Sheet1", "B3", "Val")
	f.SetCellValue("Sheet1", "A4", "A1")
	f.SetCellValue("Sheet1", "B4", 10)
	f.SetCellValue("Sheet1", "A5", "B2")
	if _, err := f.NewSheet("Other"); err != nil {
		t.Fatal(err)
	}
	f.SetCellValue("Other", "A1", "Code")
	f.SetCellValue("Other", "B1", "Label")
	f.SetCellValue("Other", "A2", "X")
	f.SetCellValue("Other", "B2", "Ex")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	t.Run("ListSheets", func(t *testing.T) {
		sheets, err := ListSheets(path)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(sheets, []string{"Sheet1", "Other"}) {
			t.Errorf("ListSheets() = %q", sheets)
		}
	})

	t.Run("Detects header below title", func(t *testing.T) {
		tbl, err := ReadTable(path, ReadOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(tbl.Columns, []string{"ID", "Val"}) {
			t.Errorf("Columns = %q", tbl.Columns)
		}
		if len(tbl.Rows) != 2 {
			t.Fatalf("Expected 2 rows, got %d", len(tbl.Rows))
		}
		if tbl.Rows[0]["Val"] != "10" {
			t.Errorf("Val = %v; want 10", tbl.Rows[0]["Val"])
		}
		if tbl.Rows[1]["Val"] != nil {
			t.Errorf("Expected missing Val, got %v", tbl.Rows[1]["Val"])
		}
		if tbl.Name != "Sheet1" {
			t.Errorf("Name = %q", tbl.Name)
		}
	})

	t.Run("Named sheet", func(t *testing.T) {
		tbl, err := ReadTable(path, ReadOptions{Sheet: "Other"})
		if err != nil {
			t.Fatal(err)
		}
		if tbl.Rows[0]["Label"] != "Ex" {
			t.Errorf("Label = %v", tbl.Rows[0]["Label"])
		}
	})

	t.Run("Missing sheet", func(t *testing.T) {
		if _, err := ReadTable(path, ReadOptions{Sheet: "Nope"}); err == nil {
			t.Error("Expected error for missing sheet")
		}
	})

	t.Run("Write and read back", func(t *testing.T) {
		tbl := types.NewTable("Key", "Calibrated")
		tbl.AppendRow("A1", int64(10))
		tbl.AppendRow("B2", nil)

		out := filepath.Join(dir, "out.xlsx")
		if err := WriteXLSX(out, "Raw: data/2024", tbl); err != nil {
			t.Fatalf("WriteXLSX failed: %v", err)
		}
		sheets, err := ListSheets(out)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(sheets, []string{"Raw data2024"}) {
			t.Errorf("sheets = %q", sheets)
		}

		back, err := ReadTable(out, ReadOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if back.Rows[0]["Calibrated"] != "10" || back.Rows[1]["Calibrated"] != nil {
			t.Errorf("Rows = %v", back.Rows)
		}
	})
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Calibrated Data", "Calibrated Data"},
		{"a/b\\c?d*e[f]g:h", "abcdefgh"},
		{"'quoted'", "quoted"},
		{"", "Sheet1"},
		{"[]", "Sheet1"},
		{"abcdefghijklmnopqrstuvwxyz0123456789", "abcdefghijklmnopqrstuvwxyz01234"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := SheetName(tt.input); got != tt.want {
				t.Errorf("SheetName(%q) = %q; want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestReadJSON(t *testing.T) {
	t.Run("Records", func(t *testing.T) {
		path := writeFile(t, "raw.json", `[{"ID":"A1","N":10.0},{"N":1.5,"ID":"B2","Extra":null}]`)
		tbl, err := ReadTable(path, ReadOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(tbl.Columns, []string{"ID", "N", "Extra"}) {
			t.Errorf("Columns = %q", tbl.Columns)
		}
		if tbl.Rows[0]["N"] != int64(10) {
			t.Errorf("Expected integral float as int64, got %#v", tbl.Rows[0]["N"])
		}
		if tbl.Rows[1]["N"] != 1.5 {
			t.Errorf("N = %#v", tbl.Rows[1]["N"])
		}
		if tbl.Rows[0]["Extra"] != nil {
			t.Errorf("Extra = %#v", tbl.Rows[0]["Extra"])
		}
	})

	t.Run("Columns", func(t *testing.T) {
		path := writeFile(t, "ref.json", `{"Val":{"r1":"10","r2":"20"},"Unit":{"r2":"g","r1":"kg"}}`)
		tbl, err := ReadTable(path, ReadOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(tbl.Columns, []string{"index", "Val", "Unit"}) {
			t.Errorf("Columns = %q", tbl.Columns)
		}
		if tbl.Rows[0]["index"] != "r1" || tbl.Rows[0]["Unit"] != "kg" {
			t.Errorf("Rows = %v", tbl.Rows)
		}
	})

	t.Run("Transpose", func(t *testing.T) {
		path := writeFile(t, "ref.json", `{"A1":{"Val":"10","Unit":"kg"},"B2":{"Val":"20"}}`)
		tbl, err := ReadTable(path, ReadOptions{Transpose: true})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(tbl.Columns, []string{"index", "Val", "Unit"}) {
			t.Errorf("Columns = %q", tbl.Columns)
		}
		if len(tbl.Rows) != 2 {
			t.Fatalf("Expected 2 rows, got %d", len(tbl.Rows))
		}
		if tbl.Rows[1]["index"] != "B2" || tbl.Rows[1]["Val"] != "20" || tbl.Rows[1]["Unit"] != nil {
			t.Errorf("Row = %v", tbl.Rows[1])
		}
	})

	t.Run("Nested values kept as text", func(t *testing.T) {
		path := writeFile(t, "raw.json", `[{"ID":"A1","Tags":["x", "y"]}]`)
		tbl, err := ReadTable(path, ReadOptions{})
		if err != nil {
			t.Fatal(err)
		}
		if tbl.Rows[0]["Tags"] != `["x","y"]` {
			t.Errorf("Tags = %#v", tbl.Rows[0]["Tags"])
		}
	})

	t.Run("Scalar document", func(t *testing.T) {
		path := writeFile(t, "bad.json", `42`)
		if _, err := ReadTable(path, ReadOptions{}); err == nil {
			t.Error("Expected error for scalar document")
		}
	})
}

func TestTranspose_Positional(t *testing.T) {
	tbl := types.NewTable("ID", "Val")
	tbl.AppendRow("A1", "10")
	tbl.AppendRow("B2", "20")

	got := Transpose(tbl)
	if !reflect.DeepEqual(got.Columns, []string{"index", "0", "1"}) {
		t.Errorf("Columns = %q", got.Columns)
	}
	if got.Rows[1]["index"] != "Val" || got.Rows[1]["1"] != "20" {
		t.Errorf("Rows = %v", got.Rows)
	}
}

func TestWriteKeyedJSON(t *testing.T) {
	tbl := types.NewTable("ID", "Val", "Note")
	tbl.AppendRow("B2", int64(20), "x")
	tbl.AppendRow("A1", nil, "y")
	tbl.AppendRow("B2", int64(99), "dup")

	path := filepath.Join(t.TempDir(), "mapping.json")
	if err := WriteKeyedJSON(path, []string{"B2", "A1", "B2"}, tbl, []string{"Val"}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"B2\": {\n    \"Val\": 20\n  },\n  \"A1\": {\n    \"Val\": null\n  }\n}\n"
	if string(data) != want {
		t.Errorf("got\n%s\nwant\n%s", data, want)
	}
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.sqlite")

	tbl := types.NewTable("ID", "Val", "Note")
	tbl.AppendRow("A1", int64(10), "has \"quotes\"")
	tbl.AppendRow("B2", 2.5, nil)
	if err := WriteSQLite(path, "mapping", tbl); err != nil {
		t.Fatalf("WriteSQLite failed: %v", err)
	}

	sheets, err := ListSheets(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sheets, []string{"mapping"}) {
		t.Errorf("ListSheets() = %q", sheets)
	}

	back, err := ReadTable(path, ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if back.Name != "mapping" || back.Format != types.FormatSQLite {
		t.Errorf("Name = %q, Format = %q", back.Name, back.Format)
	}
	if !reflect.DeepEqual(back.Rows, tbl.Rows) {
		t.Errorf("Rows = %#v; want %#v", back.Rows, tbl.Rows)
	}

	if _, err := ReadTable(path, ReadOptions{Sheet: "nope"}); err == nil {
		t.Error("Expected error for missing table")
	}
	if _, err := ReadTable(filepath.Join(t.TempDir(), "absent.db"), ReadOptions{}); err == nil {
		t.Error("Expected error for missing database")
	}
}

func TestExport(t *testing.T) {
	raw := types.NewTable("ID", "Name")
	raw.Name = "Batch 1"
	raw.AppendRow("A1", "apple")
	raw.AppendRow("B2", "banana")

	ref := types.NewTable("ID", "Val")
	ref.Format = types.FormatJSON
	ref.AppendRow("A1", "10")

	s, err := reconcile.NewSession(context.Background(), raw, ref, reconcile.Selection{
		RawKeys:       []string{"ID"},
		ReferenceKeys: []string{"ID"},
		Fields:        []string{"Val"},
		Outputs:       []types.OutputConfig{{Field: "Val", Mode: types.ModeNew, Column: "Calibrated"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApplyOverride(reconcile.Override{Key: "B2", Field: "Val", Value: "20"}); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(t.TempDir(), "out")
	progress := make(chan float64, 10)
	res, err := Export(context.Background(), s, ExportPlan{Dir: dir, Progress: progress})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	want := []string{
		filepath.Join(dir, "calibrated_data.csv"),
		filepath.Join(dir, "updated_mapping.csv"),
		filepath.Join(dir, "calibrated_data.xlsx"),
		filepath.Join(dir, "updated_mapping.xlsx"),
		filepath.Join(dir, "updated_mapping.json"),
	}
	if !reflect.DeepEqual(res.OutputFiles, want) {
		t.Errorf("OutputFiles = %q; want %q", res.OutputFiles, want)
	}
	for _, p := range want {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("Expected %s to exist: %v", p, err)
		}
	}
	if res.RowsUnmatched != 0 || res.SynthesizedRows != 1 {
		t.Errorf("summary = %+v", res)
	}
	if len(progress) != len(want) {
		t.Errorf("Expected %d progress updates, got %d", len(want), len(progress))
	}

	sheets, err := ListSheets(filepath.Join(dir, "calibrated_data.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sheets, []string{"Batch 1"}) {
		t.Errorf("result sheets = %q", sheets)
	}

	mapping, err := ReadTable(filepath.Join(dir, "updated_mapping.csv"), ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(mapping.Rows) != 2 || mapping.Rows[1]["ID"] != "B2" || mapping.Rows[1]["Val"] != "20" {
		t.Errorf("mapping rows = %v", mapping.Rows)
	}

	if _, err := Export(context.Background(), s, ExportPlan{Dir: dir, Formats: []types.SourceFormat{types.FormatJSON}}); err == nil {
		t.Error("Expected error for unsupported export format")
	}
}

func TestExport_UntouchedPreviewKeepsJSONTypes(t *testing.T) {
	refPath := writeFile(t, "ref.json", `[{"ID":"A1","Val":10},{"ID":"B2","Val":2.5}]`)
	ref, err := ReadTable(refPath, ReadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	raw := types.NewTable("ID")
	raw.AppendRow("A1")
	raw.AppendRow("B2")

	s, err := reconcile.NewSession(context.Background(), raw, ref, reconcile.Selection{
		RawKeys:       []string{"ID"},
		ReferenceKeys: []string{"ID"},
		Fields:        []string{"Val"},
		Outputs:       []types.OutputConfig{{Field: "Val", Mode: types.ModeNew, Column: "C"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	edits := reconcile.EditsFromTable(s.PreviewTable(), []string{"Val"})
	if _, err := s.ApplyEdits(reconcile.StagePreview, edits); err != nil {
		t.Fatal(err)
	}
	if got := s.Lookup().Get("A1", "Val"); got != int64(10) {
		t.Errorf("lookup A1 = %#v; want int64(10)", got)
	}
	if got := s.Result().Rows[0]["C"]; got != int64(10) {
		t.Errorf("result C = %#v; want int64(10)", got)
	}

	dir := t.TempDir()
	res, err := Export(context.Background(), s, ExportPlan{Dir: dir, Formats: []types.SourceFormat{types.FormatCSV}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Overrides != 0 {
		t.Errorf("Overrides = %d; want 0", res.Overrides)
	}
	data, err := os.ReadFile(filepath.Join(dir, MappingBaseName+".json"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"Val": 10`, `"Val": 2.5`} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("updated mapping missing %s:\n%s", want, data)
		}
	}
}
