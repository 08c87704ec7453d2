package reconcile

import "github.com/nconklindev/refmatch/internal/types"

// LookupTable maps a composite key to the calibrated value of each target
// field. Keys keep their first insertion order.
type LookupTable struct {
	fields  []string
	keys    []string
	entries map[string]map[string]types.Value
}

// NewLookupTable returns an empty table for the given target fields.
func NewLookupTable(fields []string) *LookupTable {
	return &LookupTable{
		fields:  append([]string(nil), fields...),
		entries: make(map[string]map[string]types.Value),
	}
}

// BuildLookup indexes reference rows by composite key. Duplicate keys are
// resolved last-row-wins.
func BuildLookup(ref *types.Table, keyColumns, fields []string) *LookupTable {
	lt := NewLookupTable(fields)
	for _, row := range ref.Rows {
		entry := make(map[string]types.Value, len(fields))
		for _, f := range fields {
			entry[f] = row[f]
		}
		lt.put(BuildKey(row, keyColumns), entry)
	}
	return lt
}

func (lt *LookupTable) put(key string, entry map[string]types.Value) {
	if _, ok := lt.entries[key]; !ok {
		lt.keys = append(lt.keys, key)
	}
	lt.entries[key] = entry
}

// Get returns the value for key and field, or nil when either is absent.
func (lt *LookupTable) Get(key, field string) types.Value {
	v, _ := lt.Lookup(key, field)
	return v
}

// Lookup is Get that also reports whether a value was stored.
func (lt *LookupTable) Lookup(key, field string) (types.Value, bool) {
	entry, ok := lt.entries[key]
	if !ok {
		return nil, false
	}
	v, ok := entry[field]
	return v, ok
}

// Set stores value for key and field, creating the key if needed.
func (lt *LookupTable) Set(key, field string, value types.Value) {
	entry, ok := lt.entries[key]
	if !ok {
		entry = make(map[string]types.Value, len(lt.fields))
		lt.put(key, entry)
	}
	entry[field] = value
}

func (lt *LookupTable) Has(key string) bool {
	_, ok := lt.entries[key]
	return ok
}

// Keys returns the keys in insertion order.
func (lt *LookupTable) Keys() []string {
	return append([]string(nil), lt.keys...)
}

func (lt *LookupTable) Fields() []string {
	return append([]string(nil), lt.fields...)
}

func (lt *LookupTable) Len() int {
	return len(lt.keys)
}

// Table renders the lookup as keyColumn followed by one column per field.
func (lt *LookupTable) Table(keyColumn string) *types.Table {
	t := types.NewTable(append([]string{keyColumn}, lt.fields...)...)
	for _, key := range lt.keys {
		row := make(types.Row, len(lt.fields)+1)
		row[keyColumn] = key
		for _, f := range lt.fields {
			row[f] = lt.entries[key][f]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}
