package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// columnList is a multi-select list that remembers the order items were
// picked in. Key columns pair by that order.
type columnList struct {
	items  []string
	cursor int
	order  []int
	// limit caps the number of picks; 0 means no cap.
	limit int
}

func newColumnList(items []string, limit int) columnList {
	return columnList{items: append([]string(nil), items...), limit: limit}
}

func (l columnList) Update(msg tea.KeyMsg) columnList {
	switch msg.String() {
	case "up", "k":
		if l.cursor > 0 {
			l.cursor--
		}
	case "down", "j":
		if l.cursor < len(l.items)-1 {
			l.cursor++
		}
	case " ", "x":
		l = l.toggle(l.cursor)
	case "backspace":
		if len(l.order) > 0 {
			l.order = l.order[:len(l.order)-1]
		}
	}
	return l
}

func (l columnList) toggle(i int) columnList {
	if i < 0 || i >= len(l.items) {
		return l
	}
	if pos := l.position(i); pos >= 0 {
		l.order = append(append([]int(nil), l.order[:pos]...), l.order[pos+1:]...)
		return l
	}
	if l.limit > 0 && len(l.order) >= l.limit {
		return l
	}
	l.order = append(append([]int(nil), l.order...), i)
	return l
}

// position returns the pick order of item i, or -1.
func (l columnList) position(i int) int {
	for pos, idx := range l.order {
		if idx == i {
			return pos
		}
	}
	return -1
}

// Selected returns the picked items in pick order.
func (l columnList) Selected() []string {
	out := make([]string, len(l.order))
	for i, idx := range l.order {
		out[i] = l.items[idx]
	}
	return out
}

// View renders at most height rows around the cursor.
func (l columnList) View(height int) string {
	if len(l.items) == 0 {
		return SubtitleStyle.Render("(no columns)")
	}

	start, end := window(l.cursor, len(l.items), height)
	var s strings.Builder
	for i := start; i < end; i++ {
		cursor := " "
		if l.cursor == i {
			cursor = ">"
		}
		mark := "   "
		if pos := l.position(i); pos >= 0 {
			mark = fmt.Sprintf("%2d.", pos+1)
		}
		line := fmt.Sprintf("%s [%s] %s", cursor, mark, l.items[i])

		switch {
		case l.cursor == i:
			line = SelectedStyle.Render(line)
		case l.position(i) >= 0:
			line = CheckedStyle.Render(line)
		default:
			line = UnselectedStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}
	if end-start < len(l.items) {
		s.WriteString(SubtitleStyle.Render(fmt.Sprintf("  %d-%d of %d", start+1, end, len(l.items))))
		s.WriteString("\n")
	}
	return s.String()
}

// window returns the [start, end) range of at most size items that keeps
// cursor visible.
func window(cursor, total, size int) (int, int) {
	if size <= 0 || total <= size {
		return 0, total
	}
	start := cursor - size/2
	if start < 0 {
		start = 0
	}
	if start+size > total {
		start = total - size
	}
	return start, start + size
}
