package tableio

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/nconklindev/refmatch/internal/errors"
	"github.com/nconklindev/refmatch/internal/types"
)

// IndexColumn holds the row labels of column-oriented JSON and of
// transposed tables.
const IndexColumn = "index"

// readJSON accepts an array of records or an object of columns, each
// column an object of row label to value (or an array of values). Key order
// is kept as written.
func readJSON(path string) (*types.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("read", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, errors.NewParseError("json", path, "invalid document", err)
	}

	var t *types.Table
	switch tok {
	case json.Delim('['):
		t, err = decodeRecords(dec)
	case json.Delim('{'):
		t, err = decodeColumns(dec)
	default:
		return nil, errors.NewParseError("json", path, "expected an array of records or an object of columns", nil)
	}
	if err != nil {
		return nil, errors.NewParseError("json", path, err.Error(), err)
	}
	t.Format = types.FormatJSON
	return t, nil
}

func decodeRecords(dec *json.Decoder) (*types.Table, error) {
	var columns []string
	seen := make(map[string]bool)
	var rows []types.Row

	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, err
		}
		keys, values, err := decodeObject(dec)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
		rows = append(rows, values)
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, err
	}

	t := types.NewTable(columns...)
	for _, values := range rows {
		row := make(types.Row, len(columns))
		for _, c := range columns {
			row[c] = values[c]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func decodeColumns(dec *json.Decoder) (*types.Table, error) {
	var columns []string
	var labels []string
	labelSeen := make(map[string]bool)
	cells := make(map[string]map[string]types.Value)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		col := tok.(string)

		tok, err = dec.Token()
		if err != nil {
			return nil, err
		}
		var keys []string
		var values map[string]types.Value
		switch tok {
		case json.Delim('{'):
			keys, values, err = decodeObject(dec)
		case json.Delim('['):
			keys, values, err = decodeArray(dec)
		default:
			return nil, errors.New("column " + strconv.Quote(col) + " is not an object or array")
		}
		if err != nil {
			return nil, err
		}

		for _, k := range keys {
			if !labelSeen[k] {
				labelSeen[k] = true
				labels = append(labels, k)
			}
		}
		columns = append(columns, col)
		cells[col] = values
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}

	names := normalizeHeaders(append([]string{IndexColumn}, columns...))
	t := types.NewTable(names...)
	for _, label := range labels {
		row := make(types.Row, len(names))
		row[names[0]] = label
		for i, col := range columns {
			row[names[i+1]] = cells[col][label]
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// decodeObject reads the members of an object whose opening brace was
// already consumed, through the closing brace.
func decodeObject(dec *json.Decoder) ([]string, map[string]types.Value, error) {
	var keys []string
	values := make(map[string]types.Value)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key := tok.(string)
		v, err := decodeValue(dec)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = v
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}

// decodeArray reads array elements labelled by position.
func decodeArray(dec *json.Decoder) ([]string, map[string]types.Value, error) {
	var keys []string
	values := make(map[string]types.Value)
	for i := 0; dec.More(); i++ {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, nil, err
		}
		key := strconv.Itoa(i)
		keys = append(keys, key)
		values[key] = v
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, nil, err
	}
	return keys, values, nil
}

// decodeValue reads one cell. Nested objects and arrays are kept as their
// compact JSON text.
func decodeValue(dec *json.Decoder) (types.Value, error) {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return nil, err
		}
		return buf.String(), nil
	}

	inner := json.NewDecoder(bytes.NewReader(trimmed))
	inner.UseNumber()
	var v any
	if err := inner.Decode(&v); err != nil {
		return nil, err
	}
	if n, ok := v.(json.Number); ok {
		return numberValue(n), nil
	}
	return v, nil
}

// numberValue returns integral numbers as int64 and the rest as float64.
func numberValue(n json.Number) types.Value {
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err == io.EOF {
		return errors.New("unexpected end of document")
	}
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return errors.New("expected " + want.String())
	}
	return nil
}

// WriteKeyedJSON writes t as an object keyed by keys[i], each value an
// object of the given fields. Repeated keys keep their first row.
func WriteKeyedJSON(path string, keys []string, t *types.Table, fields []string) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	written := make(map[string]bool, len(keys))
	for i, row := range t.Rows {
		key := keys[i]
		if written[key] {
			continue
		}
		if len(written) > 0 {
			buf.WriteByte(',')
		}
		written[key] = true

		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteString(":{")
		for j, f := range fields {
			if j > 0 {
				buf.WriteByte(',')
			}
			name, _ := json.Marshal(f)
			buf.Write(name)
			buf.WriteByte(':')

			var v types.Value
			if !types.IsMissing(row[f]) {
				v = row[f]
			}
			val, err := json.Marshal(v)
			if err != nil {
				return errors.NewIOError("encode", path, err)
			}
			buf.Write(val)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return errors.NewIOError("encode", path, err)
	}
	out.WriteByte('\n')

	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return nil
}
