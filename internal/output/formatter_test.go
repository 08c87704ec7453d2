package output

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nconklindev/refmatch/internal/errors"
	"github.com/nconklindev/refmatch/internal/reconcile"
	"github.com/nconklindev/refmatch/internal/types"
)

func sampleReport(t *testing.T) *Report {
	t.Helper()
	raw := types.NewTable("ID", "Site")
	raw.AppendRow("A1", "N")
	raw.AppendRow("B2", nil)
	ref := types.NewTable("ID", "Site", "Val")
	ref.AppendRow("A1", "N", "10")

	s, err := reconcile.NewSession(context.Background(), raw, ref, reconcile.Selection{
		RawKeys:       []string{"ID", "Site"},
		ReferenceKeys: []string{"ID", "Site"},
		Fields:        []string{"Val"},
		Outputs:       []types.OutputConfig{{Field: "Val", Mode: types.ModeNew}},
	})
	require.NoError(t, err)

	summary := s.Summary()
	summary.RawFile = "raw.csv"
	summary.ReferenceFile = "ref.csv"
	return NewReport(s, summary)
}

func TestNewReport(t *testing.T) {
	r := sampleReport(t)
	assert.Equal(t, 2, r.Summary.RowsProcessed)
	assert.Equal(t, 1, r.Summary.RowsMatched)
	assert.InDelta(t, 0.5, r.Coverage, 1e-9)
	assert.Equal(t, []string{"ID", "Site"}, r.KeyColumns)
	assert.Equal(t, []UnmatchedRow{{Key: "B2 | nan", Values: []string{"B2", "nan"}}}, r.Unmatched)
}

func TestFormatters(t *testing.T) {
	r := sampleReport(t)

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(FormatJSON).Format(&buf, r))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, 0.5, decoded["coverage"])
		summary := decoded["summary"].(map[string]any)
		assert.Equal(t, "raw.csv", summary["raw_file"])
		assert.EqualValues(t, 1, summary["rows_unmatched"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(FormatYAML).Format(&buf, r))

		var decoded Report
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, r.Unmatched, decoded.Unmatched)
		assert.Equal(t, 2, decoded.Summary.RowsProcessed)
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewFormatter(FormatTable).Format(&buf, r))
		out := buf.String()
		assert.Contains(t, out, "raw.csv")
		assert.Contains(t, out, "50.0%")
		assert.Contains(t, out, "1 unmatched item(s)")
		assert.Contains(t, out, "B2 | nan")
	})

	t.Run("table of types.Table", func(t *testing.T) {
		tbl := types.NewTable("Key", "Val")
		tbl.AppendRow("A1", int64(10))
		tbl.AppendRow("B2", nil)

		var buf bytes.Buffer
		require.NoError(t, (&TableFormatter{}).Format(&buf, tbl))
		out := strings.ToUpper(buf.String())
		assert.Contains(t, out, "KEY")
		assert.Contains(t, out, "A1")
		assert.Contains(t, out, "10")
	})

	t.Run("table falls back to json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, (&TableFormatter{}).Format(&buf, map[string]int{"n": 1}))
		assert.JSONEq(t, `{"n":1}`, buf.String())
	})
}

func TestFromTable(t *testing.T) {
	tbl := types.NewTable("A", "B")
	tbl.AppendRow("x", nil)
	assert.Equal(t, Data{Headers: []string{"A", "B"}, Rows: [][]string{{"x", ""}}}, FromTable(tbl))
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "JSON", "yaml", ""} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("xml")
	assert.True(t, errors.IsValidationError(err))

	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}
