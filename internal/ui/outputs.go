package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nconklindev/refmatch/internal/types"
)

// outputsForm configures one output per target field.
type outputsForm struct {
	rawColumns []string
	entries    []types.OutputConfig
	// replaceIdx is the raw column each entry replaces when in replace mode.
	replaceIdx []int
	cursor     int
	editing    bool
	input      textinput.Model
}

func newOutputsForm(fields, rawColumns []string) outputsForm {
	f := outputsForm{
		rawColumns: append([]string(nil), rawColumns...),
		entries:    make([]types.OutputConfig, len(fields)),
		replaceIdx: make([]int, len(fields)),
		input:      textinput.New(),
	}
	f.input.Prompt = "name: "
	f.input.CharLimit = 128
	for i, field := range fields {
		f.entries[i] = types.OutputConfig{Field: field, Mode: types.ModeNew}
		// Start replace mode on the same-named raw column when there is one.
		for j, c := range rawColumns {
			if c == field {
				f.replaceIdx[i] = j
				break
			}
		}
	}
	return f
}

// Outputs returns the configured outputs in field order.
func (f outputsForm) Outputs() []types.OutputConfig {
	return append([]types.OutputConfig(nil), f.entries...)
}

func (f outputsForm) Editing() bool { return f.editing }

func (f outputsForm) Update(msg tea.KeyMsg) (outputsForm, tea.Cmd) {
	if f.editing {
		switch msg.String() {
		case "enter":
			f = f.commit(strings.TrimSpace(f.input.Value()))
			f.editing = false
			f.input.Blur()
			return f, nil
		case "esc":
			f.editing = false
			f.input.Blur()
			return f, nil
		}
		var cmd tea.Cmd
		f.input, cmd = f.input.Update(msg)
		return f, cmd
	}

	if len(f.entries) == 0 {
		return f, nil
	}
	e := &f.entries[f.cursor]
	switch msg.String() {
	case "up", "k":
		if f.cursor > 0 {
			f.cursor--
		}
	case "down", "j":
		if f.cursor < len(f.entries)-1 {
			f.cursor++
		}
	case "m":
		if e.Mode == types.ModeReplace {
			*e = types.OutputConfig{Field: e.Field, Mode: types.ModeNew}
		} else if len(f.rawColumns) > 0 {
			e.Mode = types.ModeReplace
			e.Column = f.rawColumns[f.replaceIdx[f.cursor]]
		}
	case "left", "h", "right", "l":
		if e.Mode != types.ModeReplace {
			break
		}
		n := len(f.rawColumns)
		step := 1
		if msg.String() == "left" || msg.String() == "h" {
			step = n - 1
		}
		f.replaceIdx[f.cursor] = (f.replaceIdx[f.cursor] + step) % n
		e.Column = f.rawColumns[f.replaceIdx[f.cursor]]
	case "o":
		if e.Mode == types.ModeReplace {
			e.KeepOriginal = !e.KeepOriginal
			e.Backup = ""
		}
	case "e":
		if e.Mode == types.ModeNew {
			f.input.SetValue(e.Destination())
		} else if e.KeepOriginal {
			f.input.SetValue(e.BackupColumn())
		} else {
			break
		}
		f.editing = true
		f.input.CursorEnd()
		return f, f.input.Focus()
	}
	return f, nil
}

// commit stores an edited name. New mode edits the column name, replace
// mode edits the backup name.
func (f outputsForm) commit(name string) outputsForm {
	e := &f.entries[f.cursor]
	if e.Mode == types.ModeNew {
		e.Column = name
	} else {
		e.Backup = name
	}
	return f
}

func (f outputsForm) View() string {
	var s strings.Builder
	for i, e := range f.entries {
		cursor := " "
		if f.cursor == i {
			cursor = ">"
		}

		var detail string
		if e.Mode == types.ModeNew {
			detail = fmt.Sprintf("new column %q", e.Destination())
		} else {
			detail = fmt.Sprintf("replace %q", e.Column)
			if e.KeepOriginal {
				detail += fmt.Sprintf(", keep original as %q", e.BackupColumn())
			}
		}
		line := fmt.Sprintf("%s %-20s %s", cursor, e.Field, detail)
		if f.cursor == i {
			line = SelectedStyle.Render(line)
		} else {
			line = UnselectedStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}
	if f.editing {
		s.WriteString("\n")
		s.WriteString(f.input.View())
		s.WriteString("\n")
	}
	return s.String()
}
