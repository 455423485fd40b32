package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/surprisetalk/commentsheet/internal/comments"
	"github.com/surprisetalk/commentsheet/internal/listview"
)

// styles
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	cursorStyle = lipgloss.NewStyle().Background(lipgloss.Color("4")).Foreground(lipgloss.Color("15"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(7)
)

type mode int

const (
	modeNormal mode = iota
	modeSearch
	modeEdit
	modeConfirmDelete
	modeDetail
)

func (m mode) String() string {
	switch m {
	case modeSearch:
		return "SEARCH"
	case modeEdit:
		return "EDIT"
	case modeConfirmDelete:
		return "DELETE?"
	case modeDetail:
		return "DETAIL"
	}
	return "NORMAL"
}

// edit form fields
const (
	fieldName = iota
	fieldEmail
	fieldBody
	fieldCount
)

type model struct {
	list   *listview.List
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	width  int
	height int
	mode   mode
	cursor int // row within the current page
	status string

	// search
	search    textinput.Model
	debounce  time.Duration
	searchSeq int

	// edit
	inputs []textinput.Model
	focus  int

	// delete confirmation
	pendingDelete int

	spinner   spinner.Model
	detail    viewport.Model
	pageSizes []listview.PageSize
	reloads   *rate.Limiter
}

type modelOption func(*model)

func withDebounce(d time.Duration) modelOption {
	return func(m *model) { m.debounce = d }
}

func withPageSizes(sizes []listview.PageSize) modelOption {
	return func(m *model) {
		if len(sizes) > 0 {
			m.pageSizes = sizes
		}
	}
}

func withReloadLimiter(l *rate.Limiter) modelOption {
	return func(m *model) { m.reloads = l }
}

func initialModel(ctx context.Context, list *listview.List, logger *zap.Logger, opts ...modelOption) model {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)

	si := textinput.New()
	si.Prompt = "/ "
	si.Placeholder = "search name, email or body"
	si.CharLimit = 200
	si.Width = 40
	si.SetValue(list.Params().Search)

	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		in := textinput.New()
		in.Prompt = ""
		in.CharLimit = 2000
		in.Width = 60
		inputs[i] = in
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = statusStyle

	m := model{
		list:      list,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		search:    si,
		inputs:    inputs,
		spinner:   sp,
		detail:    viewport.New(80, 20),
		pageSizes: listview.PageSizeOptions,
		reloads:   newReloadLimiter(0),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.detail.Width = max(msg.Width-2, 10)
		m.detail.Height = max(msg.Height-4, 3)
		return m, nil
	case loadedMsg:
		return m.applyLoaded(msg), nil
	case searchTickMsg:
		if msg.seq == m.searchSeq {
			m.applySearch(msg.query)
		}
		return m, nil
	case spinner.TickMsg:
		if !m.list.Loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.teardown()
			return m, tea.Quit
		}
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeEdit:
			return m.updateEdit(msg)
		case modeConfirmDelete:
			return m.updateConfirmDelete(msg)
		case modeDetail:
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

// --- List (normal) ---

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	rows := m.list.Paginated()
	switch msg.String() {
	case "q":
		m.teardown()
		return m, tea.Quit
	case "r":
		return m.reload()
	}
	if m.list.State() != listview.Ready {
		return m, nil
	}

	switch msg.String() {
	case "/":
		m.mode = modeSearch
		return m, m.search.Focus()
	case "esc":
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.searchSeq++
			m.applySearch("")
		}
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(rows)-1 {
			m.cursor++
		}
	case "right", "l", "n", "pgdown":
		m.list.NextPage()
		m.cursor = 0
	case "left", "h", "p", "pgup":
		m.list.PrevPage()
		m.cursor = 0
	case "1", "2", "3", "4":
		i, _ := strconv.Atoi(msg.String())
		m.list.SortBy(listview.Columns[i-1])
	case "o":
		m.list.SortBy(m.list.Params().Column)
	case "+":
		m.list.SetPageSize(listview.NextPageSize(m.pageSizes, m.list.Params().PageSize))
		m.cursor = 0
	case "enter", "e":
		if c, ok := m.selected(rows); ok {
			return m.startEdit(c.ID)
		}
	case "d":
		if c, ok := m.selected(rows); ok {
			m.mode = modeConfirmDelete
			m.pendingDelete = c.ID
		}
	case "v":
		if c, ok := m.selected(rows); ok {
			m.mode = modeDetail
			m.detail.SetContent(renderDetail(c, m.detail.Width))
			m.detail.GotoTop()
		}
	}
	return m, nil
}

func (m model) selected(rows []comments.Comment) (comments.Comment, bool) {
	if m.cursor < 0 || m.cursor >= len(rows) {
		return comments.Comment{}, false
	}
	return rows[m.cursor], true
}

func (m *model) clampCursor() {
	n := len(m.list.Paginated())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// --- Search ---

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.mode = modeNormal
		m.search.Blur()
		// leaving the box applies any pending debounced query
		m.searchSeq++
		m.applySearch(m.search.Value())
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m, searchCmd := m.queueSearch(m.search.Value())
	return m, tea.Batch(cmd, searchCmd)
}

// --- Edit ---

func (m model) startEdit(id int) (tea.Model, tea.Cmd) {
	if !m.list.StartEdit(id) {
		return m, nil
	}
	draft, _ := m.list.Draft()
	m.inputs[fieldName].SetValue(draft.Name)
	m.inputs[fieldEmail].SetValue(draft.Email)
	m.inputs[fieldBody].SetValue(draft.Body)
	m.mode = modeEdit
	m.focus = fieldName
	return m, m.focusInput()
}

func (m *model) focusInput() tea.Cmd {
	var cmd tea.Cmd
	for i := range m.inputs {
		if i == m.focus {
			cmd = m.inputs[i].Focus()
			continue
		}
		m.inputs[i].Blur()
	}
	return cmd
}

func (m model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.syncDraft()
		if m.list.SaveEdit() {
			m.status = "saved"
		}
		m.mode = modeNormal
		m.blurInputs()
		return m, nil
	case "esc":
		m.list.CancelEdit()
		m.mode = modeNormal
		m.blurInputs()
		return m, nil
	case "tab", "down":
		m.focus = (m.focus + 1) % fieldCount
		return m, m.focusInput()
	case "shift+tab", "up":
		m.focus = (m.focus + fieldCount - 1) % fieldCount
		return m, m.focusInput()
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	m.syncDraft()
	return m, cmd
}

// syncDraft copies the form into the list's edit buffer.
func (m model) syncDraft() {
	draft, ok := m.list.Draft()
	if !ok {
		return
	}
	draft.Name = m.inputs[fieldName].Value()
	draft.Email = m.inputs[fieldEmail].Value()
	draft.Body = m.inputs[fieldBody].Value()
	m.list.SetDraft(draft)
}

func (m *model) blurInputs() {
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

// --- Delete ---

func (m model) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "y" {
		if m.list.DeleteComment(m.pendingDelete) {
			m.status = fmt.Sprintf("deleted #%d", m.pendingDelete)
		}
		m.clampCursor()
	}
	m.mode = modeNormal
	m.pendingDelete = 0
	return m, nil
}

// --- Detail ---

func (m model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "v":
		m.mode = modeNormal
		return m, nil
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func renderDetail(c comments.Comment, width int) string {
	wrap := lipgloss.NewStyle().Width(max(width, 20))
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("#%d", c.ID)))
	b.WriteString("\n\n")
	b.WriteString(labelStyle.Render("name") + c.Name + "\n")
	b.WriteString(labelStyle.Render("email") + c.Email + "\n\n")
	b.WriteString(wrap.Render(c.Body))
	return b.String()
}

// --- View ---

func (m model) View() string {
	if m.width == 0 {
		return "loading..."
	}
	if m.mode == modeDetail {
		return m.detail.View() + "\n" + dimStyle.Render(" j/k scroll  esc back")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(" Comments"))
	if m.list.State() == listview.Ready {
		filtered := listview.Count(m.list.Filtered())
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %d of %d", filtered, m.list.Len())))
	}
	b.WriteString("\n")

	switch m.list.State() {
	case listview.Initializing, listview.Loading:
		b.WriteString(" " + m.spinner.View() + " loading comments...\n")
		return b.String()
	case listview.LoadFailed:
		b.WriteString(errorStyle.Render(" error loading comments: "+m.list.Err().Error()) + "\n")
		b.WriteString(dimStyle.Render(" r retry  q quit"))
		return b.String()
	case listview.Closed:
		return b.String()
	}

	// search bar
	if m.mode == modeSearch {
		b.WriteString(" " + m.search.View())
	} else if q := m.list.Params().Search; q != "" {
		b.WriteString(dimStyle.Render(" search: ") + q)
	} else {
		b.WriteString(dimStyle.Render(" / to search"))
	}
	b.WriteString("\n")

	rows := m.list.Paginated()
	widths := m.computeColWidths(rows)
	b.WriteString(m.viewHeader(widths))
	b.WriteString("\n")

	var sep strings.Builder
	for ci, w := range widths {
		sep.WriteString(dimStyle.Render(strings.Repeat("─", w+2)))
		if ci < len(widths)-1 {
			sep.WriteString(dimStyle.Render("┼"))
		}
	}
	b.WriteString(sep.String())
	b.WriteString("\n")

	if len(rows) == 0 {
		b.WriteString(dimStyle.Render(" no comments on this page") + "\n")
	}
	editID, editing := m.list.EditID()
	for ri, c := range rows {
		cells := []string{strconv.Itoa(c.ID), c.Name, c.Email, c.Body}
		for ci, val := range cells {
			cell := " " + alignCell(flatten(val), listview.Columns[ci], widths[ci]) + " "
			if ri == m.cursor {
				b.WriteString(cursorStyle.Render(cell))
			} else {
				b.WriteString(cell)
			}
			if ci < len(cells)-1 {
				b.WriteString(dimStyle.Render("│"))
			}
		}
		if editing && c.ID == editID {
			b.WriteString(statusStyle.Render(" ✎"))
		}
		b.WriteString("\n")
	}

	if m.mode == modeEdit {
		b.WriteString("\n")
		b.WriteString(m.viewEditForm())
	}

	// status bar
	p := m.list.Params()
	status := fmt.Sprintf(" page %d/%d  rows %s  sort %s %s  %s",
		p.Page, m.list.TotalPages(), p.PageSize, p.Column, p.Order, m.mode)
	if m.mode == modeConfirmDelete {
		status += fmt.Sprintf("  delete #%d? y/n", m.pendingDelete)
	}
	if m.status != "" {
		status += "  " + m.status
	}
	b.WriteString(statusStyle.Render(status))
	b.WriteString("\n")

	b.WriteString(dimStyle.Render(m.help()))
	return b.String()
}

func (m model) help() string {
	switch m.mode {
	case modeSearch:
		return " type to filter  enter/esc done"
	case modeEdit:
		return " tab next field  enter save  esc cancel"
	case modeConfirmDelete:
		return " y delete  any other key keeps it"
	}
	return " j/k move  n/p page  1-4 sort  o order  + rows  / search  e edit  d delete  v view  r reload  q quit"
}

func (m model) viewHeader(widths []int) string {
	p := m.list.Params()
	var hdr strings.Builder
	for ci, col := range listview.Columns {
		name := string(col)
		if col == p.Column {
			if p.Order == listview.Asc {
				name += " ▲"
			} else {
				name += " ▼"
			}
		}
		hdr.WriteString(headerStyle.Render(" " + alignCell(name, listview.ColumnName, widths[ci]) + " "))
		if ci < len(listview.Columns)-1 {
			hdr.WriteString(dimStyle.Render("│"))
		}
	}
	return hdr.String()
}

func (m model) viewEditForm() string {
	id, _ := m.list.EditID()
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf(" editing #%d", id)))
	b.WriteString("\n")
	labels := [fieldCount]string{"name", "email", "body"}
	for i, in := range m.inputs {
		b.WriteString(" " + labelStyle.Render(labels[i]) + in.View() + "\n")
	}
	return b.String()
}

// computeColWidths sizes id, name and email to their content (capped) and gives the
// body whatever is left of the terminal.
func (m model) computeColWidths(rows []comments.Comment) []int {
	widths := make([]int, len(listview.Columns))
	for i, c := range listview.Columns {
		widths[i] = max(len(c)+2, 4)
	}
	for _, r := range rows {
		widths[0] = max(widths[0], len(strconv.Itoa(r.ID)))
		widths[1] = max(widths[1], lipgloss.Width(flatten(r.Name)))
		widths[2] = max(widths[2], lipgloss.Width(flatten(r.Email)))
	}
	// cap at reasonable max
	for i := 1; i <= 2; i++ {
		widths[i] = min(widths[i], 30)
	}
	used := 0
	for _, w := range widths[:3] {
		used += w + 3 // padding + separator
	}
	widths[3] = max(m.width-used-2, 10)
	return widths
}

// flatten collapses whitespace so multi-line bodies fit one table row.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func alignCell(s string, col listview.Column, width int) string {
	if lipgloss.Width(s) > width {
		return ansi.Truncate(s, width, "…")
	}
	pad := strings.Repeat(" ", width-lipgloss.Width(s))
	if col == listview.ColumnID {
		// right-align numbers
		return pad + s
	}
	return s + pad
}
