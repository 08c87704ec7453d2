// Package ui is the interactive terminal workflow: pick the raw and
// reference files, choose keys, fields and outputs, fix unmatched keys by
// hand and export.
package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nconklindev/refmatch/internal/logging"
	"github.com/nconklindev/refmatch/internal/reconcile"
	"github.com/nconklindev/refmatch/internal/tableio"
	"github.com/nconklindev/refmatch/internal/types"
)

type state int

const (
	stateRawPicker state = iota
	stateRawSheet
	stateRefPicker
	stateRefSheet
	stateRawKeys
	stateRefKeys
	stateFields
	stateOutputs
	stateReview
	statePreview
	stateExporting
	stateComplete
	stateError
)

type role int

const (
	roleRaw role = iota
	roleRef
)

func (r role) String() string {
	if r == roleRaw {
		return "raw"
	}
	return "reference"
}

// Options configures the workflow.
type Options struct {
	// Dir is where both file pickers start. Empty means the working directory.
	Dir string
	// Export is the plan used for the final export; Progress is set by the model.
	Export tableio.ExportPlan
}

// source is a picked file and how to read it.
type source struct {
	path      string
	format    types.SourceFormat
	sheets    []string
	cursor    int
	transpose bool
}

func (s source) readOptions() tableio.ReadOptions {
	opts := tableio.ReadOptions{Transpose: s.transpose}
	if s.cursor < len(s.sheets) {
		opts.Sheet = s.sheets[s.cursor]
	}
	return opts
}

// needsChoice reports whether the user has a sheet or orientation to pick.
func (s source) needsChoice() bool {
	return len(s.sheets) > 1 || s.format == types.FormatJSON
}

type Model struct {
	ctx   context.Context
	opts  Options
	state state

	rawPicker filepicker.Model
	refPicker filepicker.Model
	raw       source
	ref       source
	rawTable  *types.Table
	refTable  *types.Table

	rawKeys columnList
	refKeys columnList
	fields  columnList
	outputs outputsForm

	session *reconcile.Session
	grid    grid
	notice  string

	result       *types.RunResult
	err          error
	width        int
	height       int
	progress     progress.Model
	progressChan chan float64
	resultChan   chan exportResultMsg
}

type sourceLoadedMsg struct {
	role role
	src  source
	err  error
}

type tableLoadedMsg struct {
	role  role
	table *types.Table
	err   error
}

type sessionReadyMsg struct {
	session *reconcile.Session
	err     error
}

type exportResultMsg struct {
	result *types.RunResult
	err    error
}

type exportCompleteMsg struct {
	result *types.RunResult
	err    error
}

type progressMsg float64

type waitForProgressMsg struct{}

// New returns the initial model. The logger in ctx receives workflow logs.
func New(ctx context.Context, opts Options) Model {
	return Model{
		ctx:       ctx,
		opts:      opts,
		state:     stateRawPicker,
		rawPicker: newFilePicker(opts.Dir),
		refPicker: newFilePicker(opts.Dir),
		progress:  progress.New(progress.WithGradient(string(colorAccent), string(colorAlt))),
	}
}

func newFilePicker(dir string) filepicker.Model {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".csv", ".xlsx", ".json", ".db", ".sqlite", ".sqlite3"}
	fp.CurrentDirectory = dir
	if fp.CurrentDirectory == "" {
		fp.CurrentDirectory, _ = os.Getwd()
	}

	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(colorAccent)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(colorAlt)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(colorAlt)
	fp.Styles.File = lipgloss.NewStyle().Foreground(colorText)
	fp.Styles.Permission = lipgloss.NewStyle().Foreground(colorMuted)
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	fp.Styles.FileSize = lipgloss.NewStyle().Foreground(colorMuted)
	return fp
}

func (m Model) Init() tea.Cmd {
	return m.rawPicker.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		height := msg.Height - 14
		if height < 5 {
			height = 5
		}
		m.rawPicker.SetHeight(height)
		m.refPicker.SetHeight(height)
		m.progress.Width = max(min(msg.Width-12, 60), 10)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sourceLoadedMsg:
		if msg.err != nil {
			return m.fail(msg.err)
		}
		if msg.role == roleRaw {
			m.raw = msg.src
			if m.raw.needsChoice() {
				m.state = stateRawSheet
				return m, nil
			}
			return m, m.loadTable(roleRaw, m.raw)
		}
		m.ref = msg.src
		if m.ref.needsChoice() {
			m.state = stateRefSheet
			return m, nil
		}
		return m, m.loadTable(roleRef, m.ref)

	case tableLoadedMsg:
		if msg.err != nil {
			return m.fail(msg.err)
		}
		logging.FromContext(m.ctx).Info().
			Str("role", msg.role.String()).
			Int("rows", len(msg.table.Rows)).
			Int("columns", len(msg.table.Columns)).
			Msg("Loaded table")
		if msg.role == roleRaw {
			m.rawTable = msg.table
			m.state = stateRefPicker
			return m, m.refPicker.Init()
		}
		m.refTable = msg.table
		m.rawKeys = newColumnList(m.rawTable.Columns, 0)
		m.state = stateRawKeys
		return m, nil

	case sessionReadyMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
			m.state = stateOutputs
			return m, nil
		}
		m.session = msg.session
		m.notice = ""
		if len(m.session.Unmatched()) == 0 {
			return m.startPreview()
		}
		m.grid = newGrid(m.session.ReviewTable(), isCalibrated)
		m.state = stateReview
		return m, nil

	case exportCompleteMsg:
		if msg.err != nil {
			return m.fail(msg.err)
		}
		msg.result.RawFile = m.raw.path
		msg.result.ReferenceFile = m.ref.path
		m.result = msg.result
		m.state = stateComplete
		return m, nil

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case progressMsg:
		if m.state == stateExporting {
			cmd := m.progress.SetPercent(float64(msg))
			return m, tea.Batch(cmd, waitForProgress(m.progressChan, m.resultChan))
		}
		return m, nil

	case waitForProgressMsg:
		return m, waitForProgress(m.progressChan, m.resultChan)
	}

	return m.updatePickers(msg)
}

// updatePickers forwards non-key messages, such as directory reads, to the
// active file picker.
func (m Model) updatePickers(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.state {
	case stateRawPicker:
		m.rawPicker, cmd = m.rawPicker.Update(msg)
		if ok, path := m.rawPicker.DidSelectFile(msg); ok {
			return m, loadSource(roleRaw, path)
		}
	case stateRefPicker:
		m.refPicker, cmd = m.refPicker.Update(msg)
		if ok, path := m.refPicker.DidSelectFile(msg); ok {
			return m, loadSource(roleRef, path)
		}
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.state {
	case stateRawPicker, stateRefPicker:
		if msg.String() == "q" {
			return m, tea.Quit
		}
		return m.updatePickers(msg)

	case stateRawSheet, stateRefSheet:
		src := &m.raw
		r := roleRaw
		if m.state == stateRefSheet {
			src, r = &m.ref, roleRef
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "up", "k":
			if src.cursor > 0 {
				src.cursor--
			}
		case "down", "j":
			if src.cursor < len(src.sheets)-1 {
				src.cursor++
			}
		case "t":
			src.transpose = !src.transpose
		case "enter":
			return m, m.loadTable(r, *src)
		}
		return m, nil

	case stateRawKeys:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "enter":
			if len(m.rawKeys.Selected()) == 0 {
				m.notice = "Select at least one raw key column"
				return m, nil
			}
			m.notice = ""
			m.refKeys = newColumnList(m.refTable.Columns, len(m.rawKeys.Selected()))
			m.state = stateRefKeys
			return m, nil
		}
		m.rawKeys = m.rawKeys.Update(msg)
		return m, nil

	case stateRefKeys:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "esc":
			m.notice = ""
			m.state = stateRawKeys
			return m, nil
		case "enter":
			if want := len(m.rawKeys.Selected()); len(m.refKeys.Selected()) != want {
				m.notice = fmt.Sprintf("Select %d reference key column(s), one per raw key", want)
				return m, nil
			}
			m.notice = ""
			m.fields = newColumnList(fieldCandidates(m.refTable.Columns, m.refKeys.Selected()), 0)
			m.state = stateFields
			return m, nil
		}
		m.refKeys = m.refKeys.Update(msg)
		return m, nil

	case stateFields:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "esc":
			m.notice = ""
			m.state = stateRefKeys
			return m, nil
		case "enter":
			if len(m.fields.Selected()) == 0 {
				m.notice = "Select at least one target field"
				return m, nil
			}
			m.notice = ""
			m.outputs = newOutputsForm(m.fields.Selected(), m.rawTable.Columns)
			m.state = stateOutputs
			return m, nil
		}
		m.fields = m.fields.Update(msg)
		return m, nil

	case stateOutputs:
		if !m.outputs.Editing() {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "esc":
				m.notice = ""
				m.state = stateFields
				return m, nil
			case "enter":
				return m, m.buildSession()
			}
		}
		var cmd tea.Cmd
		m.outputs, cmd = m.outputs.Update(msg)
		return m, cmd

	case stateReview, statePreview:
		if !m.grid.Editing() {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "n", "tab":
				return m.commitStage()
			}
		}
		var cmd tea.Cmd
		m.grid, cmd = m.grid.Update(msg)
		return m, cmd

	case stateComplete, stateError:
		switch msg.String() {
		case "q", "enter", "esc":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m Model) fail(err error) (tea.Model, tea.Cmd) {
	logging.FromContext(m.ctx).Error().Err(err).Msg("Workflow failed")
	m.err = err
	m.state = stateError
	return m, nil
}

// commitStage applies the edits of the current review surface and moves on.
func (m Model) commitStage() (tea.Model, tea.Cmd) {
	stage := reconcile.StageReview
	if m.state == statePreview {
		stage = reconcile.StagePreview
	}
	edits := reconcile.EditsFromTable(m.grid.table, m.session.Selection().Fields)
	if _, err := m.session.ApplyEdits(stage, edits); err != nil {
		return m.fail(err)
	}
	if stage == reconcile.StageReview {
		return m.startPreview()
	}
	m.state = stateExporting
	return m.export()
}

func (m Model) startPreview() (tea.Model, tea.Cmd) {
	m.grid = newGrid(m.session.PreviewTable(), isCalibrated).withAdd()
	m.state = statePreview
	return m, nil
}

func isCalibrated(col string) bool {
	return strings.HasPrefix(col, reconcile.CalibratedPrefix)
}

// fieldCandidates lists reference columns that are not key columns.
func fieldCandidates(columns, keys []string) []string {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	var out []string
	for _, c := range columns {
		if !isKey[c] {
			out = append(out, c)
		}
	}
	return out
}

func loadSource(r role, path string) tea.Cmd {
	return func() tea.Msg {
		format, err := tableio.DetectFormat(path)
		if err != nil {
			return sourceLoadedMsg{role: r, err: err}
		}
		sheets, err := tableio.ListSheets(path)
		return sourceLoadedMsg{role: r, src: source{path: path, format: format, sheets: sheets}, err: err}
	}
}

func (m Model) loadTable(r role, src source) tea.Cmd {
	return func() tea.Msg {
		t, err := tableio.ReadTable(src.path, src.readOptions())
		return tableLoadedMsg{role: r, table: t, err: err}
	}
}

func (m Model) buildSession() tea.Cmd {
	sel := reconcile.Selection{
		RawKeys:       m.rawKeys.Selected(),
		ReferenceKeys: m.refKeys.Selected(),
		Fields:        m.fields.Selected(),
		Outputs:       m.outputs.Outputs(),
	}
	ctx, raw, ref := m.ctx, m.rawTable, m.refTable
	return func() tea.Msg {
		s, err := reconcile.NewSession(ctx, raw, ref, sel)
		return sessionReadyMsg{session: s, err: err}
	}
}

func (m Model) export() (Model, tea.Cmd) {
	m.progressChan = make(chan float64, 100)
	m.resultChan = make(chan exportResultMsg, 1)

	ctx := m.ctx
	session := m.session
	plan := m.opts.Export
	plan.Progress = m.progressChan
	progressChan := m.progressChan
	resultChan := m.resultChan

	cmd := tea.Batch(
		func() tea.Msg {
			go func() {
				result, err := tableio.Export(ctx, session, plan)
				resultChan <- exportResultMsg{result: result, err: err}
				close(progressChan)
				close(resultChan)
			}()
			return waitForProgressMsg{}
		},
		m.progress.Init(),
	)
	return m, cmd
}

func waitForProgress(progressChan chan float64, resultChan chan exportResultMsg) tea.Cmd {
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		p, ok := <-progressChan
		if !ok {
			res, ok := <-resultChan
			if ok {
				return exportCompleteMsg(res)
			}
			return nil
		}
		return progressMsg(p)
	}
}

func (m Model) View() string {
	switch m.state {
	case stateRawPicker:
		return m.viewPicker("Select the raw data file", m.rawPicker)
	case stateRefPicker:
		return m.viewPicker("Select the reference mapping file", m.refPicker)
	case stateRawSheet:
		return m.viewSource("Raw data", m.raw)
	case stateRefSheet:
		return m.viewSource("Reference mapping", m.ref)
	case stateRawKeys:
		return m.viewColumns("Raw key columns",
			"Pick the raw columns that make up the key, in order", m.rawKeys)
	case stateRefKeys:
		return m.viewColumns("Reference key columns",
			fmt.Sprintf("Pick %d reference column(s) in the same order: %s",
				len(m.rawKeys.Selected()), strings.Join(m.rawKeys.Selected(), ", ")), m.refKeys)
	case stateFields:
		return m.viewColumns("Target fields",
			"Pick the reference columns to carry into the raw data", m.fields)
	case stateOutputs:
		return m.viewOutputs()
	case stateReview, statePreview:
		return m.viewGrid()
	case stateExporting:
		return m.viewExporting()
	case stateComplete:
		return m.viewComplete()
	case stateError:
		return m.viewError()
	}
	return ""
}

func (m Model) listHeight() int {
	h := m.height - 12
	if h < 5 {
		h = 5
	}
	return h
}

func (m Model) viewPicker(subtitle string, fp filepicker.Model) string {
	var s strings.Builder
	s.WriteString(TitleStyle.Render("refmatch"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(subtitle + " (csv, xlsx, json, sqlite)"))
	s.WriteString("\n\n")
	s.WriteString(fp.View())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("enter: select • q: quit"))
	return s.String()
}

func (m Model) viewSource(title string, src source) string {
	var s strings.Builder
	s.WriteString(TitleStyle.Render(title))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("File: " + filepath.Base(src.path)))
	s.WriteString("\n")

	for i, name := range src.sheets {
		line := "  " + name
		if src.cursor == i {
			line = SelectedStyle.Render("> " + name)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}

	transpose := "[ ]"
	if src.transpose {
		transpose = "[x]"
	}
	s.WriteString(fmt.Sprintf("\nSwap rows and columns: %s\n", transpose))
	s.WriteString(HelpStyle.Render("↑/↓: sheet • t: swap rows and columns • enter: load • q: quit"))
	return BoxStyle.Render(s.String())
}

func (m Model) viewColumns(title, subtitle string, list columnList) string {
	var s strings.Builder
	s.WriteString(TitleStyle.Render(title))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(subtitle))
	s.WriteString("\n")
	s.WriteString(list.View(m.listHeight()))
	s.WriteString(m.viewNotice())
	s.WriteString(HelpStyle.Render("↑/↓: navigate • space: pick/unpick • backspace: undo • enter: next • esc: back • q: quit"))
	return BoxStyle.Render(s.String())
}

func (m Model) viewOutputs() string {
	var s strings.Builder
	s.WriteString(TitleStyle.Render("Outputs"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Choose where each field lands in the raw data"))
	s.WriteString("\n")
	s.WriteString(m.outputs.View())
	s.WriteString(m.viewNotice())
	s.WriteString(HelpStyle.Render("m: new/replace • ←/→: replace column • o: keep original • e: edit name • enter: run • esc: back"))
	return BoxStyle.Render(s.String())
}

func (m Model) viewGrid() string {
	var s strings.Builder
	if m.state == stateReview {
		s.WriteString(TitleStyle.Render("Unmatched keys"))
		s.WriteString("\n")
		s.WriteString(SubtitleStyle.Render(fmt.Sprintf(
			"%d key(s) have no reference entry. Fill in the Calibrated cells; blanks stay unmatched.",
			len(m.grid.table.Rows))))
	} else {
		s.WriteString(TitleStyle.Render("Mapping preview"))
		s.WriteString("\n")
		s.WriteString(SubtitleStyle.Render("Every key in the mapping. Edits here are written back before export."))
	}
	s.WriteString("\n")
	s.WriteString(m.grid.View(m.listHeight()))
	s.WriteString("\n")
	help := "arrows: move • enter: edit/save • esc: cancel edit • n: apply and continue • q: quit"
	if m.state == statePreview {
		help = "arrows: move • enter: edit/save • a: add key • esc: cancel edit • n: apply and continue • q: quit"
	}
	s.WriteString(HelpStyle.Render(help))
	return s.String()
}

func (m Model) viewNotice() string {
	if m.notice == "" {
		return "\n"
	}
	return "\n" + WarnStyle.Render(m.notice) + "\n\n"
}

func (m Model) viewExporting() string {
	var s strings.Builder
	s.WriteString(TitleStyle.Render("Exporting..."))
	s.WriteString("\n\n")
	s.WriteString("Writing calibrated data and the updated mapping...")
	s.WriteString("\n\n")
	s.WriteString(m.progress.View())
	return BoxStyle.Render(s.String())
}

func (m Model) viewComplete() string {
	var s strings.Builder
	r := m.result

	s.WriteString(TitleStyle.Render("✓ Export Complete!"))
	s.WriteString("\n\n")

	maxPathLen := m.width - 20
	if maxPathLen < 30 {
		maxPathLen = 30
	}

	s.WriteString(fmt.Sprintf("Raw:       %s\n", truncatePath(r.RawFile, maxPathLen)))
	s.WriteString(fmt.Sprintf("Reference: %s\n", truncatePath(r.ReferenceFile, maxPathLen)))
	s.WriteString("\n")
	for _, f := range r.OutputFiles {
		s.WriteString(SuccessStyle.Render("→ " + truncatePath(f, maxPathLen)))
		s.WriteString("\n")
	}
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Rows processed: %d\n", r.RowsProcessed))
	s.WriteString(fmt.Sprintf("Rows matched:   %d\n", r.RowsMatched))
	if r.RowsUnmatched > 0 {
		s.WriteString(WarnStyle.Render(fmt.Sprintf("Rows unmatched: %d", r.RowsUnmatched)))
	} else {
		s.WriteString("Rows unmatched: 0")
	}
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Overrides:      %d\n", r.Overrides))
	if r.SynthesizedRows > 0 {
		s.WriteString(fmt.Sprintf("New mapping rows: %d\n", r.SynthesizedRows))
	}
	s.WriteString("\nCoverage\n")
	s.WriteString(m.progress.ViewAs(r.Coverage()))
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("Press enter to exit"))
	return BoxStyle.Render(s.String())
}

func (m Model) viewError() string {
	var s strings.Builder
	s.WriteString(ErrorStyle.Render("✗ Error"))
	s.WriteString("\n\n")
	s.WriteString(m.err.Error())
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("Press enter to exit"))
	return BoxStyle.Render(s.String())
}

func truncatePath(path string, limit int) string {
	if len(path) > limit {
		return "..." + path[len(path)-limit+3:]
	}
	return path
}
