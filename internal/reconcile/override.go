package reconcile

import (
	"strings"

	"github.com/nconklindev/refmatch/internal/errors"
	"github.com/nconklindev/refmatch/internal/types"
)

// Stage identifies which review surface an edit came from.
type Stage string

const (
	StageReview  Stage = "review"
	StagePreview Stage = "preview"
)

// Override is a manual correction of one field for one key.
type Override struct {
	Key   string
	Field string
	Value types.Value
}

// Edit is one edited row of a review surface: a key and a value per field.
// Blank values mean "no change".
type Edit struct {
	Key    string
	Values map[string]types.Value
}

// applyOverride writes o into the lookup table and into every result row
// with the same key, for every output bound to the field. Blank values and
// values that display the same as the stored one are ignored, so the stored
// value keeps its type. It reports whether anything was written.
func applyOverride(lookup *LookupTable, result *types.Table, rows []int, outputs []types.OutputConfig, o Override) bool {
	text := types.Display(o.Value)
	if strings.TrimSpace(text) == "" {
		return false
	}
	if cur, ok := lookup.Lookup(o.Key, o.Field); ok && types.Display(cur) == text {
		return false
	}
	lookup.Set(o.Key, o.Field, o.Value)
	for _, out := range outputs {
		if out.Field != o.Field {
			continue
		}
		dest := out.Destination()
		for _, i := range rows {
			result.Rows[i][dest] = o.Value
		}
	}
	return true
}

// ApplyOverride applies a single override to the session.
func (s *Session) ApplyOverride(o Override) (bool, error) {
	if !s.isField(o.Field) {
		return false, errors.NewValidationError("override", o.Field, "not a selected target field")
	}
	applied := applyOverride(s.lookup, s.result, s.rows[o.Key], s.sel.Outputs, o)
	if applied {
		s.overrides++
		s.log.Debug().
			Str("key", o.Key).
			Str("field", o.Field).
			Interface("value", o.Value).
			Msg("Applied override")
	}
	return applied, nil
}

// ApplyEdits applies the edited rows of one review stage in presentation
// order, fields in selection order. Later edits of the same key and field
// win. It returns the number of overrides written.
func (s *Session) ApplyEdits(stage Stage, edits []Edit) (int, error) {
	for _, e := range edits {
		for f := range e.Values {
			if !s.isField(f) {
				return 0, errors.NewValidationError(string(stage), f, "not a selected target field")
			}
		}
	}

	n := 0
	for _, e := range edits {
		for _, f := range s.sel.Fields {
			v, ok := e.Values[f]
			if !ok {
				continue
			}
			applied, err := s.ApplyOverride(Override{Key: e.Key, Field: f, Value: v})
			if err != nil {
				return n, err
			}
			if applied {
				n++
			}
		}
	}
	s.log.Info().
		Str("stage", string(stage)).
		Int("overrides", n).
		Int("unmatched_rows", s.UnmatchedRowCount()).
		Msg("Applied manual mapping")
	return n, nil
}

func (s *Session) isField(f string) bool {
	for _, x := range s.sel.Fields {
		if x == f {
			return true
		}
	}
	return false
}
