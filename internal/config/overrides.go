package config

import (
	"os"

	"github.com/goccy/go-yaml"

	"github.com/nconklindev/refmatch/internal/errors"
	"github.com/nconklindev/refmatch/internal/reconcile"
	"github.com/nconklindev/refmatch/internal/types"
)

// OverrideFile holds manual mappings for a headless run. The review rows
// are applied first, then the preview rows, matching the terminal UI.
//
//	review:
//	  - key: "B2 | North"
//	    values:
//	      Val: "20"
//	preview:
//	  - key: A1
//	    values:
//	      Val: "11"
type OverrideFile struct {
	Review  []OverrideRow `yaml:"review,omitempty"`
	Preview []OverrideRow `yaml:"preview,omitempty"`
}

// OverrideRow maps target fields to values for one composite key. Blank
// values are ignored.
type OverrideRow struct {
	Key    string         `yaml:"key"`
	Values map[string]any `yaml:"values"`
}

// LoadOverrides reads an override file.
func LoadOverrides(path string) (*OverrideFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIOError("read", path, err)
	}
	var f OverrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.NewParseError("yaml", path, "invalid override file", err)
	}
	return &f, nil
}

// Apply runs both stages against s and returns the number of overrides written.
func (f *OverrideFile) Apply(s *reconcile.Session) (int, error) {
	total := 0
	for _, stage := range []reconcile.Stage{reconcile.StageReview, reconcile.StagePreview} {
		n, err := s.ApplyEdits(stage, f.Edits(stage))
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Edits converts the rows of one stage.
func (f *OverrideFile) Edits(stage reconcile.Stage) []reconcile.Edit {
	rows := f.Review
	if stage == reconcile.StagePreview {
		rows = f.Preview
	}

	edits := make([]reconcile.Edit, 0, len(rows))
	for _, r := range rows {
		e := reconcile.Edit{Key: r.Key, Values: make(map[string]types.Value, len(r.Values))}
		for field, v := range r.Values {
			e.Values[field] = types.Display(v)
		}
		edits = append(edits, e)
	}
	return edits
}

// Template returns an override file with one blank review row per
// unmatched item, ready to be filled in.
func Template(items []reconcile.UnmatchedItem, fields []string) *OverrideFile {
	f := &OverrideFile{}
	for _, item := range items {
		values := make(map[string]any, len(fields))
		for _, field := range fields {
			values[field] = ""
		}
		f.Review = append(f.Review, OverrideRow{Key: item.Key, Values: values})
	}
	return f
}

// WriteOverrides writes f as YAML.
func WriteOverrides(path string, f *OverrideFile) error {
	data, err := yaml.MarshalWithOptions(f, yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return errors.NewIOError("encode", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return nil
}
