package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nconklindev/refmatch/internal/errors"
	"github.com/nconklindev/refmatch/internal/output"
	"github.com/nconklindev/refmatch/internal/tableio"
	"github.com/nconklindev/refmatch/internal/types"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	a := New("1.2.3", "abc123", "2026-10-19")
	root := a.createRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// fixture writes a raw and a reference CSV. A and B share a key with the
// reference; C has none.
func fixture(t *testing.T) (dir, raw, ref string) {
	t.Helper()
	dir = t.TempDir()
	raw = writeFile(t, dir, "raw.csv", "ID,Site,Val\nA,1,x\nB,2,y\nC,3,z\n")
	ref = writeFile(t, dir, "ref.csv", "Code,Region,Val\nA,1,10\nB,2,20\n")
	return dir, raw, ref
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "refmatch 1.2.3\ncommit: abc123\nbuilt: 2026-10-19\n", stdout)
}

func TestRunDryRunJSON(t *testing.T) {
	dir, raw, ref := fixture(t)
	outDir := filepath.Join(dir, "out")

	stdout, _, err := execute(t, "run", "-q",
		"--raw", raw, "--reference", ref,
		"--raw-keys", "ID,Site", "--reference-keys", "Code,Region",
		"--fields", "Val", "--new", "Val=Calibrated",
		"--output-dir", outDir, "--dry-run", "-o", "json")
	require.NoError(t, err)

	var report output.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 3, report.Summary.RowsProcessed)
	assert.Equal(t, 2, report.Summary.RowsMatched)
	assert.Equal(t, 1, report.Summary.RowsUnmatched)
	assert.Equal(t, raw, report.Summary.RawFile)
	assert.Empty(t, report.Summary.OutputFiles)
	assert.Equal(t, []string{"ID", "Site"}, report.KeyColumns)
	require.Len(t, report.Unmatched, 1)
	assert.Equal(t, "C | 3", report.Unmatched[0].Key)
	assert.Equal(t, []string{"C", "3"}, report.Unmatched[0].Values)

	assert.NoDirExists(t, outDir)
}

func TestRunOverridesAndExport(t *testing.T) {
	dir, raw, ref := fixture(t)
	outDir := filepath.Join(dir, "out")
	overrides := writeFile(t, dir, "fixes.yaml", `review:
  - key: "C | 3"
    values:
      Val: 30
`)

	stdout, _, err := execute(t, "run", "-q",
		"--raw", raw, "--reference", ref,
		"--raw-keys", "ID,Site", "--reference-keys", "Code,Region",
		"--fields", "Val", "--replace-keep", "Val=Val",
		"--overrides", overrides, "--formats", "csv",
		"--output-dir", outDir, "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "rows_unmatched: 0")
	assert.Contains(t, stdout, "overrides: 1")

	result, err := tableio.ReadTable(filepath.Join(outDir, tableio.ResultBaseName+".csv"), tableio.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ID", "Site", "Val", "Val_original"}, result.Columns)
	assert.Equal(t, "30", result.Rows[2]["Val"])
	assert.Equal(t, "z", result.Rows[2]["Val_original"])

	mapping, err := tableio.ReadTable(filepath.Join(outDir, tableio.MappingBaseName+".csv"), tableio.ReadOptions{})
	require.NoError(t, err)
	require.Len(t, mapping.Rows, 3)
	assert.Equal(t, types.Row{"Code": "C", "Region": "3", "Val": "30"}, mapping.Rows[2])

	assert.NoFileExists(t, filepath.Join(outDir, tableio.ResultBaseName+".xlsx"))
}

func TestRunTemplate(t *testing.T) {
	dir, raw, ref := fixture(t)
	template := filepath.Join(dir, "todo.yaml")

	_, _, err := execute(t, "run", "-q",
		"--raw", raw, "--reference", ref,
		"--raw-keys", "ID,Site", "--reference-keys", "Code,Region",
		"--fields", "Val", "--new", "Val=",
		"--template", template, "--dry-run", "-o", "json")
	require.NoError(t, err)

	data, err := os.ReadFile(template)
	require.NoError(t, err)
	assert.Contains(t, string(data), "C | 3")
}

func TestRunMissingInputs(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	_, _, err := execute(t, "run", "-q", "-o", "json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	var missing *errors.MissingInputError
	require.True(t, errors.As(err, &missing))
	assert.Contains(t, missing.Missing, "raw file")
}

func TestRunBadOutputFormat(t *testing.T) {
	_, raw, ref := fixture(t)
	_, _, err := execute(t, "run", "-q", "--raw", raw, "--reference", ref, "-o", "xml")
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestSheets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "book.xlsx")
	tbl := types.NewTable("ID")
	tbl.AppendRow("A")
	require.NoError(t, tableio.WriteXLSX(path, "Batch 1", tbl))

	stdout, _, err := execute(t, "sheets", path, "-o", "json")
	require.NoError(t, err)
	var sheets []string
	require.NoError(t, json.Unmarshal([]byte(stdout), &sheets))
	assert.Equal(t, []string{"Batch 1"}, sheets)

	stdout, _, err = execute(t, "sheets", path, "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Batch 1")

	csvPath := writeFile(t, dir, "plain.csv", "ID\nA\n")
	_, stderr, err := execute(t, "sheets", csvPath)
	require.NoError(t, err)
	assert.Contains(t, stderr, "has no sheets")
}

func TestParseOutputFlags(t *testing.T) {
	outputs, err := parseOutputFlags(&runFlags{
		newOutputs:     []string{"Val=Cal"},
		replaceOutputs: []string{"Unit=Unit"},
		keepOutputs:    []string{"Code=Code:Code (raw)"},
	})
	require.NoError(t, err)
	assert.Equal(t, []types.OutputConfig{
		{Field: "Val", Mode: types.ModeNew, Column: "Cal"},
		{Field: "Unit", Mode: types.ModeReplace, Column: "Unit"},
		{Field: "Code", Mode: types.ModeReplace, Column: "Code", KeepOriginal: true, Backup: "Code (raw)"},
	}, outputs)

	_, err = parseOutputFlags(&runFlags{replaceOutputs: []string{"Unit"}})
	assert.Error(t, err)
}
