package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/nconklindev/refmatch/internal/types"
)

const maxCellWidth = 24

// grid is an editable view over a table. Only columns accepted by the
// editable predicate take input; edits write straight into the table. When
// adding is enabled, rows added with "a" are editable in every column.
type grid struct {
	table    *types.Table
	editable func(col string) bool
	canAdd   bool
	fixed    int
	row, col int
	editing  bool
	input    textinput.Model
}

func newGrid(t *types.Table, editable func(col string) bool) grid {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 256
	g := grid{table: t, editable: editable, fixed: len(t.Rows), input: in}
	// Start on the first editable column.
	for i, c := range t.Columns {
		if editable(c) {
			g.col = i
			break
		}
	}
	return g
}

func (g grid) Editing() bool { return g.editing }

// withAdd lets the user append rows.
func (g grid) withAdd() grid {
	g.canAdd = true
	return g
}

func (g grid) cellEditable(row, col int) bool {
	return g.editable(g.table.Columns[col]) || (g.canAdd && row >= g.fixed)
}

func (g grid) startEdit() (grid, tea.Cmd) {
	g.editing = true
	g.input.SetValue(types.Display(g.table.Rows[g.row][g.table.Columns[g.col]]))
	g.input.CursorEnd()
	return g, g.input.Focus()
}

func (g grid) Update(msg tea.KeyMsg) (grid, tea.Cmd) {
	if g.editing {
		switch msg.String() {
		case "enter":
			g.table.Rows[g.row][g.table.Columns[g.col]] = g.input.Value()
			g.editing = false
			g.input.Blur()
			return g, nil
		case "esc":
			g.editing = false
			g.input.Blur()
			return g, nil
		}
		var cmd tea.Cmd
		g.input, cmd = g.input.Update(msg)
		return g, cmd
	}

	switch msg.String() {
	case "up", "k":
		if g.row > 0 {
			g.row--
		}
	case "down", "j":
		if g.row < len(g.table.Rows)-1 {
			g.row++
		}
	case "left", "h":
		if g.col > 0 {
			g.col--
		}
	case "right", "l":
		if g.col < len(g.table.Columns)-1 {
			g.col++
		}
	case "enter":
		if len(g.table.Rows) == 0 || !g.cellEditable(g.row, g.col) {
			break
		}
		return g.startEdit()
	case "a":
		if !g.canAdd || len(g.table.Columns) == 0 {
			break
		}
		row := make(types.Row, len(g.table.Columns))
		for _, c := range g.table.Columns {
			row[c] = ""
		}
		g.table.Rows = append(g.table.Rows, row)
		g.row = len(g.table.Rows) - 1
		g.col = 0
		return g.startEdit()
	}
	return g, nil
}

// View renders at most height rows around the cursor row.
func (g grid) View(height int) string {
	t := g.table
	if len(t.Rows) == 0 {
		return SubtitleStyle.Render("(nothing to show)")
	}

	start, end := window(g.row, len(t.Rows), height)
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = ansi.StringWidth(c)
		for _, row := range t.Rows[start:end] {
			if w := ansi.StringWidth(types.Display(row[c])); w > widths[i] {
				widths[i] = w
			}
		}
		if widths[i] > maxCellWidth {
			widths[i] = maxCellWidth
		}
	}

	lines := make([]string, 0, end-start+1)
	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = cell(HeaderCellStyle, c, widths[i])
	}
	lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, header...))

	for r := start; r < end; r++ {
		cells := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			text := types.Display(t.Rows[r][c])
			style := CellStyle
			if g.cellEditable(r, i) {
				style = EditableCellStyle
			}
			if r == g.row && i == g.col {
				style = CursorCellStyle
				if g.editing {
					text = g.input.Value() + "_"
				}
			}
			cells[i] = cell(style, text, widths[i])
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(lines, "\n")
}

func cell(style lipgloss.Style, text string, width int) string {
	text = ansi.Truncate(text, width, "…")
	return style.Width(width + style.GetPaddingRight()).Render(text)
}
