package ui

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent = lipgloss.Color("#2EC4B6")
	colorAlt    = lipgloss.Color("#90E0EF")
	colorMuted  = lipgloss.Color("#6B7280")
	colorText   = lipgloss.Color("#FFFFFF")
	colorError  = lipgloss.Color("#FF4757")
	colorWarn   = lipgloss.Color("#FFB84D")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			MarginTop(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginBottom(1)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	UnselectedStyle = lipgloss.NewStyle().
			Foreground(colorText)

	CheckedStyle = lipgloss.NewStyle().
			Foreground(colorAlt).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	WarnStyle = lipgloss.NewStyle().
			Foreground(colorWarn)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(colorAlt).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2)

	// Grid cells.
	HeaderCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent).
			PaddingRight(2)

	CellStyle = lipgloss.NewStyle().
			Foreground(colorText).
			PaddingRight(2)

	EditableCellStyle = lipgloss.NewStyle().
				Foreground(colorAlt).
				PaddingRight(2)

	CursorCellStyle = lipgloss.NewStyle().
			Reverse(true).
			Bold(true).
			PaddingRight(2)
)
