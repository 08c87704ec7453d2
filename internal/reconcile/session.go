package reconcile

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nconklindev/refmatch/internal/errors"
	"github.com/nconklindev/refmatch/internal/logging"
	"github.com/nconklindev/refmatch/internal/types"
)

// Selection is the user's choice of key columns, target fields and outputs.
// RawKeys and ReferenceKeys are paired by position.
type Selection struct {
	RawKeys       []string
	ReferenceKeys []string
	Fields        []string
	Outputs       []types.OutputConfig
}

// Validate checks that every required input is present and names existing
// columns. The session is only built from a valid selection.
func (s Selection) Validate(raw, ref *types.Table) error {
	var missing []string
	if len(s.RawKeys) == 0 {
		missing = append(missing, "raw key columns")
	}
	if len(s.ReferenceKeys) == 0 {
		missing = append(missing, "reference key columns")
	}
	if len(s.Fields) == 0 {
		missing = append(missing, "target fields")
	}
	if len(s.Outputs) == 0 {
		missing = append(missing, "output configuration")
	}
	if len(missing) > 0 {
		return &errors.MissingInputError{Missing: missing}
	}

	if len(s.RawKeys) != len(s.ReferenceKeys) {
		return errors.NewValidationError("reference key columns", s.ReferenceKeys,
			"must pair one-to-one with the raw key columns")
	}
	for _, c := range s.RawKeys {
		if !raw.HasColumn(c) {
			return errors.NewNotFoundError("raw column", c)
		}
	}
	for _, c := range append(append([]string(nil), s.ReferenceKeys...), s.Fields...) {
		if !ref.HasColumn(c) {
			return errors.NewNotFoundError("reference column", c)
		}
	}

	fields := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		for _, k := range s.ReferenceKeys {
			if f == k {
				return errors.NewValidationError("target fields", f, "a reference key column cannot be a target field")
			}
		}
		fields[f] = true
	}
	for _, out := range s.Outputs {
		if !fields[out.Field] {
			return errors.NewValidationError("outputs", out.Field, "field is not a selected target field")
		}
		switch out.Mode {
		case types.ModeNew:
		case types.ModeReplace:
			if out.Column == "" {
				return errors.NewValidationError("outputs", out.Field, "replace needs a raw column")
			}
			if !raw.HasColumn(out.Column) {
				return errors.NewNotFoundError("raw column", out.Column)
			}
		default:
			return errors.NewValidationError("outputs", out.Mode, "mode must be new or replace")
		}
	}
	return nil
}

// Session is the state of one reconciliation run. The lookup and result
// tables are mutated in place by overrides.
type Session struct {
	raw    *types.Table
	ref    *types.Table
	sel    Selection
	lookup *LookupTable
	result *types.Table
	keys   []string
	rows   map[string][]int
	log    *zerolog.Logger

	overrides int
}

// NewSession builds the lookup table from ref and applies it to a copy of raw.
func NewSession(ctx context.Context, raw, ref *types.Table, sel Selection) (*Session, error) {
	if err := sel.Validate(raw, ref); err != nil {
		return nil, err
	}

	s := &Session{
		raw:    raw,
		ref:    ref,
		sel:    sel,
		lookup: BuildLookup(ref, sel.ReferenceKeys, sel.Fields),
		result: raw.Clone(),
		log:    logging.FromContext(ctx),
	}
	s.keys = BuildKeys(s.result, sel.RawKeys)
	s.rows = make(map[string][]int)
	for i, k := range s.keys {
		s.rows[k] = append(s.rows[k], i)
	}

	for _, c := range CheckCollisions(raw.Columns, sel.Outputs) {
		s.log.Warn().
			Str("column", c.Column).
			Str("field", c.Field).
			Msg(c.Reason)
	}

	Apply(s.result, s.keys, sel.Outputs, s.lookup)

	s.log.Info().
		Int("reference_keys", s.lookup.Len()).
		Int("raw_rows", len(raw.Rows)).
		Int("unmatched_rows", len(UnmatchedRows(s.result, sel.Outputs))).
		Msg("Applied reference mapping")
	return s, nil
}

func (s *Session) Selection() Selection { return s.sel }

// Lookup returns the live lookup table; overrides mutate it.
func (s *Session) Lookup() *LookupTable { return s.lookup }

// Result returns the live result table; overrides mutate it.
func (s *Session) Result() *types.Table { return s.result }

func (s *Session) Raw() *types.Table { return s.raw }

func (s *Session) Reference() *types.Table { return s.ref }

// Keys returns the composite key of each result row.
func (s *Session) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Overrides counts the overrides applied so far.
func (s *Session) Overrides() int {
	return s.overrides
}

// Unmatched returns the current unmatched set.
func (s *Session) Unmatched() []UnmatchedItem {
	return UnmatchedSet(s.result, s.keys, s.sel.RawKeys, s.sel.Outputs)
}

// UnmatchedRowCount is the number of result rows with a missing target.
func (s *Session) UnmatchedRowCount() int {
	return len(UnmatchedRows(s.result, s.sel.Outputs))
}

// Summary describes the session for reporting. SynthesizedRows is the
// number of rows ExportMapping would add for the current lookup.
func (s *Session) Summary() types.RunResult {
	unmatched := s.UnmatchedRowCount()
	_, synthesized := exportMapping(s.ref, s.sel.ReferenceKeys, s.lookup, s.raw, s.sel.RawKeys)
	return types.RunResult{
		RowsProcessed:   len(s.result.Rows),
		RowsMatched:     len(s.result.Rows) - unmatched,
		RowsUnmatched:   unmatched,
		Overrides:       s.overrides,
		SynthesizedRows: synthesized,
	}
}

// ExportMapping builds the updated reference mapping from the current lookup.
func (s *Session) ExportMapping() *types.Table {
	out, synthesized := exportMapping(s.ref, s.sel.ReferenceKeys, s.lookup, s.raw, s.sel.RawKeys)
	s.log.Info().
		Int("rows", len(out.Rows)).
		Int("synthesized", synthesized).
		Msg("Built updated mapping")
	return out
}
