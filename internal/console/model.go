// Package console is the instructor's terminal UI over the results engine.
package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-exam-console/internal/results"
)

type mode int

const (
	modeBrowse mode = iota
	modeSearch
	modeEdit
	modeConfirmApprove
	modeConfirmDelete
)

const (
	fieldTotal = iota
	fieldAI
	fieldName
	fieldCount
)

var (
	sortCycle   = []results.SortField{results.SortByName, results.SortByTotal, results.SortBySubmitted, results.SortByCheating}
	statusCycle = []string{results.StatusAll, "submitted", "in_progress", "graded", "pending", "confirmed"}

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#9b59b6"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f8c8d"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ecc71"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f39c12"))
)

// Options configures the console model.
type Options struct {
	ExamID    uint
	ExportDir string
	Logger    zerolog.Logger
	// Chart defaults to a lazily probed lipgloss renderer.
	Chart *results.Capability[*ChartRenderer]
}

// Model is the bubbletea model of the results screen.
type Model struct {
	ctx       context.Context
	view      *results.View
	exporter  *results.Exporter
	examID    uint
	exportDir string
	logger    zerolog.Logger
	chart     *results.Capability[*ChartRenderer]

	mode     mode
	loaded   bool
	busy     string
	table    table.Model
	search   textinput.Model
	fields   []textinput.Model
	focus    int
	spinner  spinner.Model
	snapshot results.Snapshot
	editor   *results.Editor

	pendingDelete uint
	notice        string
	noticeErr     bool
	noticeSeq     int
}

// New builds the model. The exam is loaded by Init.
func New(ctx context.Context, view *results.View, exporter *results.Exporter, opts Options) Model {
	if opts.Chart == nil {
		opts.Chart = NewChartCapability(nil)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#3498db"))

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "name or student id"
	search.CharLimit = 64

	fields := make([]textinput.Model, fieldCount)
	for i, label := range []string{"Total score: ", "AI score:    ", "Name:        "} {
		input := textinput.New()
		input.Prompt = label
		input.CharLimit = 64
		fields[i] = input
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 6},
			{Title: "Student", Width: 22},
			{Title: "Status", Width: 11},
			{Title: "Score", Width: 6},
			{Title: "AI", Width: 5},
			{Title: "Total", Width: 6},
			{Title: "Conf", Width: 4},
			{Title: "Submitted", Width: 17},
			{Title: "Duration", Width: 9},
			{Title: "Cheat", Width: 5},
		}),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	styles := table.DefaultStyles()
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#ecf0f1")).Background(lipgloss.Color("#34495e"))
	t.SetStyles(styles)

	return Model{
		ctx:       ctx,
		view:      view,
		exporter:  exporter,
		examID:    opts.ExamID,
		exportDir: opts.ExportDir,
		logger:    opts.Logger.With().Str("component", "console").Logger(),
		chart:     opts.Chart,
		busy:      "loading exam",
		table:     t,
		search:    search,
		fields:    fields,
		spinner:   s,
	}
}

// Init loads the exam and warms the chart renderer.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		selectExamCmd(m.ctx, m.view, m.examID),
		warmChartCmd(m.chart),
		m.spinner.Tick,
	)
}

// Update handles key presses and engine notifications.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeEdit:
			return m.updateEditor(msg)
		case modeConfirmApprove, modeConfirmDelete:
			return m.updateConfirm(msg)
		default:
			return m.updateBrowse(msg)
		}

	case viewEventMsg:
		m.sync()
		return m, nil

	case examLoadedMsg:
		m.busy = ""
		if msg.err != nil {
			return m.fail("load exam", msg.err)
		}
		m.loaded = true
		m.sync()
		return m, nil

	case refreshedMsg:
		m.busy = ""
		if msg.err != nil {
			return m.fail("refresh", msg.err)
		}
		m.sync()
		return m, nil

	case editorOpenedMsg:
		m.busy = ""
		if msg.err != nil {
			return m.fail("open", msg.err)
		}
		m.startEditing(msg.editor)
		return m, nil

	case savedMsg:
		m.busy = ""
		return m.handleSaved(msg.err)

	case evidenceReloadedMsg:
		m.busy = ""
		return m, nil

	case approvedMsg:
		m.busy = ""
		if msg.err != nil {
			return m.fail("approve all", msg.err)
		}
		m.sync()
		return m.notify(fmt.Sprintf("%d submissions approved", msg.approved), false)

	case deletedMsg:
		m.busy = ""
		if msg.err != nil {
			return m.fail("delete", msg.err)
		}
		m.sync()
		return m.notify(fmt.Sprintf("results of student %d deleted", msg.studentID), false)

	case exportedMsg:
		m.busy = ""
		if msg.err != nil {
			return m.fail("export", msg.err)
		}
		text := fmt.Sprintf("exported %d rows to %s", msg.artifact.Rows, msg.path)
		if msg.artifact.FellBack {
			text += " (workbook unavailable, wrote csv)"
		} else if msg.artifact.ImagesMissing > 0 {
			text += fmt.Sprintf(" (%d images missing)", msg.artifact.ImagesMissing)
		}
		return m.notify(text, false)

	case chartReadyMsg:
		if msg.err != nil {
			m.logger.Warn().Err(msg.err).Msg("chart renderer unavailable")
		}
		return m, nil

	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.loaded {
		if msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.mode = modeSearch
		m.search.SetValue(m.snapshot.Query.Search)
		return m, m.search.Focus()
	case "s":
		query := m.view.Query()
		query.Sort = nextSort(query.Sort)
		m.view.SetQuery(query)
		m.sync()
		return m, nil
	case "o":
		query := m.view.Query()
		query.Descending = !query.Descending
		m.view.SetQuery(query)
		m.sync()
		return m, nil
	case "f":
		query := m.view.Query()
		query.Status = nextStatus(query.Status)
		m.view.SetQuery(query)
		m.sync()
		return m, nil
	case "R":
		m.busy = "refreshing"
		return m, refreshCmd(m.ctx, m.view)
	case "enter":
		row, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.busy = "opening"
		return m, openEditorCmd(m.ctx, m.view, row.StudentID)
	case "a":
		m.mode = modeConfirmApprove
		return m, nil
	case "d":
		row, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.pendingDelete = row.StudentID
		m.mode = modeConfirmDelete
		return m, nil
	case "e":
		m.busy = "exporting csv"
		return m, exportCmd(m.ctx, m.exporter, m.view, m.exportDir, results.FormatCSV)
	case "x":
		m.busy = "exporting xlsx"
		return m, exportCmd(m.ctx, m.exporter, m.view, m.exportDir, results.FormatXLSX)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.mode = modeBrowse
		m.search.Blur()
		return m, nil
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.search.Blur()
		m.search.SetValue("")
		m.applySearch()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.applySearch()
	return m, cmd
}

func (m *Model) applySearch() {
	query := m.view.Query()
	query.Search = m.search.Value()
	m.view.SetQuery(query)
	m.sync()
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	current := m.mode
	m.mode = modeBrowse
	switch msg.String() {
	case "y", "Y":
		if current == modeConfirmApprove {
			m.busy = "approving"
			return m, approveCmd(m.ctx, m.view)
		}
		m.busy = "deleting"
		return m, deleteCmd(m.ctx, m.view, m.pendingDelete)
	}
	m.pendingDelete = 0
	return m, nil
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	editor := m.editor
	if editor == nil || editor.Closed() {
		m.stopEditing()
		return m, nil
	}
	if m.busy != "" {
		return m, nil
	}

	if editor.State() == results.EditorConfirming {
		switch msg.String() {
		case "y", "Y":
			m.busy = "saving"
			return m, saveCmd(m.ctx, editor, true)
		case "n", "N", "esc":
			editor.CancelConfirmation()
			return m.notify("decrease cancelled", false)
		}
		return m, nil
	}

	switch msg.Type {
	case tea.KeyEsc:
		editor.Close()
		m.stopEditing()
		return m, nil
	case tea.KeyTab, tea.KeyShiftTab:
		step := 1
		if msg.Type == tea.KeyShiftTab {
			step = fieldCount - 1
		}
		m.fields[m.focus].Blur()
		m.focus = (m.focus + step) % fieldCount
		return m, m.fields[m.focus].Focus()
	case tea.KeyCtrlE:
		m.busy = "reloading evidence"
		return m, reloadEvidenceCmd(m.ctx, editor)
	case tea.KeyEnter:
		if err := m.applyFields(editor); err != nil {
			return m.notify(err.Error(), true)
		}
		m.busy = "saving"
		return m, saveCmd(m.ctx, editor, false)
	}

	var cmd tea.Cmd
	m.fields[m.focus], cmd = m.fields[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) applyFields(editor *results.Editor) error {
	total, err := parseScore("total score", m.fields[fieldTotal].Value())
	if err != nil {
		return err
	}
	ai, err := parseScore("ai score", m.fields[fieldAI].Value())
	if err != nil {
		return err
	}
	if err := editor.SetTotalScore(total); err != nil {
		return err
	}
	if err := editor.SetAIScore(ai); err != nil {
		return err
	}
	return editor.SetStudentName(m.fields[fieldName].Value())
}

func (m Model) handleSaved(err error) (tea.Model, tea.Cmd) {
	switch {
	case err == nil:
		m.sync()
		return m.notify("score saved", false)
	case errors.Is(err, results.ErrConfirmationRequired):
		return m, nil
	case errors.Is(err, results.ErrScoreOutOfRange):
		return m.notify("scores must be between 0 and 10", true)
	default:
		return m.fail("save", err)
	}
}

func (m *Model) startEditing(editor *results.Editor) {
	m.editor = editor
	m.mode = modeEdit
	row := editor.Row()
	m.fields[fieldTotal].SetValue(strconv.FormatFloat(row.TotalScore, 'f', -1, 64))
	m.fields[fieldAI].SetValue(strconv.FormatFloat(row.AIScore, 'f', -1, 64))
	m.fields[fieldName].SetValue(row.StudentName)
	for i := range m.fields {
		m.fields[i].Blur()
	}
	m.focus = fieldTotal
	m.fields[fieldTotal].Focus()
}

func (m *Model) stopEditing() {
	m.editor = nil
	if m.mode == modeEdit {
		m.mode = modeBrowse
	}
}

// sync copies the view state into the table.
func (m *Model) sync() {
	m.snapshot = m.view.Snapshot()
	rows := make([]table.Row, len(m.snapshot.Rows))
	for i, row := range m.snapshot.Rows {
		rows[i] = tableRow(row)
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}

	if m.editor != nil && (m.editor.Closed() || m.view.Editor() != m.editor) {
		m.stopEditing()
	}
}

func (m Model) selected() (results.Row, bool) {
	cursor := m.table.Cursor()
	if cursor < 0 || cursor >= len(m.snapshot.Rows) {
		return results.Row{}, false
	}
	return m.snapshot.Rows[cursor], true
}

func (m Model) notify(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.noticeSeq++
	m.notice = text
	m.noticeErr = isErr
	return m, clearNoticeAfter(m.noticeSeq)
}

func (m Model) fail(action string, err error) (tea.Model, tea.Cmd) {
	m.logger.Error().Err(err).Str("action", action).Msg("console action failed")
	return m.notify(fmt.Sprintf("%s failed: %v", action, err), true)
}

// View renders the screen.
func (m Model) View() string {
	var b strings.Builder

	if !m.loaded {
		if m.busy != "" {
			fmt.Fprintf(&b, "%s %s...\n", m.spinner.View(), m.busy)
		}
		b.WriteString(m.renderNotice())
		return b.String()
	}

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(renderChart(m.chart, m.snapshot.Summary.ScoreDistribution))
	b.WriteString("\n")
	b.WriteString(m.table.View())
	b.WriteString("\n")

	switch m.mode {
	case modeSearch:
		b.WriteString(m.search.View() + "\n")
	case modeEdit:
		b.WriteString(m.renderEditor())
	case modeConfirmApprove:
		b.WriteString(promptStyle.Render(fmt.Sprintf("Approve all %d submissions of this exam? (y/n)", m.snapshot.Total)) + "\n")
	case modeConfirmDelete:
		b.WriteString(promptStyle.Render(fmt.Sprintf("Delete every attempt of student %d? (y/n)", m.pendingDelete)) + "\n")
	}

	if m.busy != "" {
		fmt.Fprintf(&b, "%s %s...\n", m.spinner.View(), m.busy)
	}
	b.WriteString(m.renderNotice())
	b.WriteString(mutedStyle.Render(m.help()) + "\n")
	return b.String()
}

func (m Model) renderHeader() string {
	exam := m.snapshot.Exam
	summary := m.snapshot.Summary
	query := m.snapshot.Query

	title := titleStyle.Render(exam.Title)
	if !exam.ScheduledAt.IsZero() {
		title += mutedStyle.Render("  " + exam.ScheduledAt.Format("2006-01-02 15:04"))
	}

	stats := fmt.Sprintf("submissions %d  submitted %d  confirmed %d  pending %d  avg %.2f  high %.2f  low %.2f  cheating %d",
		summary.TotalSubmissions, summary.SubmittedCount, summary.ConfirmedCount, summary.PendingCount,
		summary.AverageTotal, summary.HighestTotal, summary.LowestTotal, summary.TotalCheating)

	order := "asc"
	if query.Descending {
		order = "desc"
	}
	status := query.Status
	if status == "" {
		status = results.StatusAll
	}
	filter := fmt.Sprintf("showing %d of %d  sort %s %s  status %s", len(m.snapshot.Rows), m.snapshot.Total, sortName(query.Sort), order, status)
	if query.Search != "" {
		filter += fmt.Sprintf("  search %q", query.Search)
	}

	return title + "\n" + stats + "\n" + mutedStyle.Render(filter) + "\n"
}

func (m Model) renderEditor() string {
	editor := m.editor
	if editor == nil {
		return ""
	}
	row := editor.Row()
	baseTotal, baseAI := editor.Baseline()

	var b strings.Builder
	fmt.Fprintf(&b, "%s  submission %d  %s\n", titleStyle.Render(row.StudentName), row.SubmissionID, mutedStyle.Render(editor.State().String()))
	fmt.Fprintf(&b, "baseline %.2f + %.2f = %.2f\n", baseTotal, baseAI, baseTotal+baseAI)
	for _, field := range m.fields {
		b.WriteString(field.View() + "\n")
	}
	if err := editor.LastError(); err != nil {
		b.WriteString(errorStyle.Render(err.Error()) + "\n")
	}
	if editor.State() == results.EditorConfirming {
		b.WriteString(promptStyle.Render(fmt.Sprintf("Total drops from %.2f to %.2f. Save anyway? (y/n)", baseTotal+baseAI, row.Total())) + "\n")
	}

	b.WriteString(evidenceLine("face", editor.FaceImage(), row.HasFaceImage) + "\n")
	b.WriteString(evidenceLine("card", editor.CardImage(), row.HasStudentCard) + "\n")

	if detail, ok := editor.QuestionDetail(); ok {
		line := fmt.Sprintf("questions %d  answers %d  attempts %d", len(detail.Questions), len(detail.Answers), detail.AttemptCount)
		if detail.IsBestAttempt {
			line += "  best attempt"
		}
		if detail.ReplacesSubmissionID != nil {
			line += fmt.Sprintf("  replaces #%d", *detail.ReplacesSubmissionID)
		}
		b.WriteString(line + "\n")
	} else {
		b.WriteString(mutedStyle.Render("question detail unavailable") + "\n")
	}

	if log, ok := editor.ProctoringLog(); ok {
		fmt.Fprintf(&b, "proctoring %d events  high %d  medium %d  low %d\n",
			log.Total, log.CountsBySeverity["high"], log.CountsBySeverity["medium"], log.CountsBySeverity["low"])
	} else {
		b.WriteString(mutedStyle.Render("proctoring log unavailable") + "\n")
	}

	return panelStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n"
}

func (m Model) renderNotice() string {
	if m.notice == "" {
		return ""
	}
	if m.noticeErr {
		return errorStyle.Render(m.notice) + "\n"
	}
	return okStyle.Render(m.notice) + "\n"
}

func (m Model) help() string {
	switch m.mode {
	case modeEdit:
		return "tab next field • enter save • ctrl+e reload evidence • esc close"
	case modeSearch:
		return "enter keep filter • esc clear"
	case modeConfirmApprove, modeConfirmDelete:
		return "y confirm • any other key cancels"
	default:
		return "enter grade • / search • s sort • o order • f status • a approve all • d delete • e csv • x xlsx • R refresh • q quit"
	}
}

func evidenceLine(kind string, handle *results.ImageHandle, expected bool) string {
	switch {
	case !expected:
		return mutedStyle.Render(kind + ": none")
	case handle == nil || handle.Bytes() == nil:
		return mutedStyle.Render(kind + ": unavailable")
	default:
		return fmt.Sprintf("%s: %s %.1f KB", kind, handle.ContentType(), float64(len(handle.Bytes()))/1024)
	}
}

func tableRow(row results.Row) table.Row {
	submitted := "-"
	if row.SubmittedAt != nil {
		submitted = row.SubmittedAt.Local().Format("2006-01-02 15:04")
	}
	confirmed := "no"
	if row.IsConfirmed() {
		confirmed = "yes"
	}
	return table.Row{
		strconv.FormatUint(uint64(row.StudentID), 10),
		row.StudentName,
		row.Status,
		fmt.Sprintf("%.2f", row.TotalScore),
		fmt.Sprintf("%.2f", row.AIScore),
		fmt.Sprintf("%.2f", row.Total()),
		confirmed,
		submitted,
		row.DurationLabel(),
		strconv.Itoa(row.CheatingCount),
	}
}

func parseScore(field, raw string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", field)
	}
	return value, nil
}

func nextSort(current results.SortField) results.SortField {
	for i, field := range sortCycle {
		if field == current {
			return sortCycle[(i+1)%len(sortCycle)]
		}
	}
	return sortCycle[1]
}

func nextStatus(current string) string {
	if current == "" {
		current = results.StatusAll
	}
	for i, status := range statusCycle {
		if status == current {
			return statusCycle[(i+1)%len(statusCycle)]
		}
	}
	return results.StatusAll
}

func sortName(field results.SortField) string {
	if field == "" {
		return string(results.SortByName)
	}
	return string(field)
}
