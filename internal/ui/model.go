package ui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/gubarz/mdview/internal/config"
	"github.com/gubarz/mdview/internal/document"
	"github.com/gubarz/mdview/internal/outline"
	"github.com/gubarz/mdview/internal/preprocess"
	"github.com/gubarz/mdview/internal/view"
	"github.com/gubarz/mdview/internal/watch"
	"github.com/gubarz/mdview/internal/workspace"
)

const (
	outlineWidth = 32
	chromeLines  = 3 // tabs + divider + status
)

var clipboardWrite = clipboard.WriteAll

// ============================================================================
// Messages
// ============================================================================

// snippetsMsg arrives after a render cache stored a result
type snippetsMsg struct{}

// watchMsg carries one changed path from the file watcher
type watchMsg struct {
	path   string
	closed bool
}

// reconcileMsg asks the model to reload files whose changes settled
type reconcileMsg struct{}

func waitForSnippets(n *view.Notifier) tea.Cmd {
	if n == nil {
		return nil
	}
	return func() tea.Msg {
		<-n.C()
		return snippetsMsg{}
	}
}

func waitForWatch(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		path, ok := <-ch
		return watchMsg{path: path, closed: !ok}
	}
}

func reconcileLater() tea.Cmd {
	return tea.Tick(watch.Debounce/2, func(time.Time) tea.Msg {
		return reconcileMsg{}
	})
}

// ============================================================================
// Model
// ============================================================================

// Options wires the viewer to the rest of the application
type Options struct {
	Workspace   *workspace.Workspace
	Renderer    *view.Renderer // optional, drives the render caches
	Notifier    *view.Notifier // signals finished renders
	ShowOutline bool
	Log         *slog.Logger
}

// model is the Bubble Tea model of the document viewer
type model struct {
	ws       *workspace.Workspace
	renderer *view.Renderer
	notifier *view.Notifier
	log      *slog.Logger

	width    int
	height   int
	viewport viewport.Model
	search   textinput.Model
	quitting bool

	searching     bool
	caseSensitive bool

	showOutline   bool
	outlineCursor int
	outlineOffset int

	// what the viewport currently shows
	shown      *document.Document
	shownWidth int
	shownTheme string
	shownOpts  preprocess.Options
	rawLines   int

	snippets     view.Result
	watching     bool
	reconciling  bool
	status       string
	statusIsErr  bool
	renderFailed error
}

func newModel(opts Options) model {
	ti := textinput.New()
	ti.Placeholder = "Find in document..."
	ti.Prompt = "/ "
	ti.CharLimit = 256

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	return model{
		ws:          opts.Workspace,
		renderer:    opts.Renderer,
		notifier:    opts.Notifier,
		log:         log.With("component", "ui"),
		viewport:    viewport.New(80, 20),
		search:      ti,
		showOutline: opts.ShowOutline,
		watching:    opts.Workspace.AutoReload(),
	}
}

// Init implements tea.Model
func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForSnippets(m.notifier)}
	if m.ws.AutoReload() {
		cmds = append(cmds, waitForWatch(m.ws.WatchEvents()))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.search.Width = max(msg.Width-4, 10)
		m.layout()
		m.refresh(false)
		return m, nil

	case snippetsMsg:
		m.resolveSnippets()
		return m, waitForSnippets(m.notifier)

	case watchMsg:
		if msg.closed {
			m.watching = false
			return m, nil
		}
		cmds := []tea.Cmd{waitForWatch(m.ws.WatchEvents())}
		if m.ws.HandleEvent(msg.path, time.Now()) && !m.reconciling {
			m.reconciling = true
			cmds = append(cmds, reconcileLater())
		}
		return m, tea.Batch(cmds...)

	case reconcileMsg:
		active := m.ws.Active().ID
		for _, id := range m.ws.ProcessPending(time.Now()) {
			if id == active {
				m.refresh(false)
			}
		}
		if m.ws.PendingReloads() > 0 {
			return m, reconcileLater()
		}
		m.reconciling = false
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleKey processes keyboard input while browsing
func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return tea.Quit, true
	case "/":
		m.searching = true
		m.search.SetValue("")
		m.search.Focus()
		m.layout()
		return textinput.Blink, true
	case "n":
		if match, ok := m.ws.FindNext(); ok {
			m.scrollToLine(match.Line)
		}
		m.setMatchStatus()
		return nil, true
	case "N":
		if match, ok := m.ws.FindPrev(); ok {
			m.scrollToLine(match.Line)
		}
		m.setMatchStatus()
		return nil, true
	case "o":
		m.showOutline = !m.showOutline
		config.SetShowOutline(m.showOutline)
		m.layout()
		m.refresh(false)
		return nil, true
	case "]":
		m.moveOutline(1)
		return nil, true
	case "[":
		m.moveOutline(-1)
		return nil, true
	case "enter":
		if item, ok := m.selectedHeading(); ok {
			m.scrollToLine(item.Line)
		}
		return nil, true
	case "y":
		m.copyAnchor()
		return nil, true
	case "tab":
		m.ws.Cycle(1)
		m.outlineCursor, m.outlineOffset = 0, 0
		m.refresh(true)
		return nil, true
	case "shift+tab":
		m.ws.Cycle(-1)
		m.outlineCursor, m.outlineOffset = 0, 0
		m.refresh(true)
		return nil, true
	case "r":
		if err := m.ws.ReloadActive(); err != nil {
			m.setError(err)
		} else {
			m.setStatus("reloaded " + m.ws.Active().Name())
		}
		m.refresh(false)
		return nil, true
	case "a":
		return m.toggleAutoReload(), true
	case "t":
		m.toggleTheme()
		return nil, true
	}
	return nil, false
}

// updateSearch handles input while the find prompt is open
func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+c":
		m.searching = false
		m.search.Blur()
		m.layout()
		return m, nil
	case "alt+c":
		m.caseSensitive = !m.caseSensitive
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		m.layout()
		m.ws.Find(m.search.Value(), m.caseSensitive)
		if match, idx, _ := m.ws.FindSelected(); idx >= 0 {
			m.scrollToLine(match.Line)
		}
		m.setMatchStatus()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *model) toggleAutoReload() tea.Cmd {
	on := !m.ws.AutoReload()
	if err := m.ws.SetAutoReload(on); err != nil {
		m.setError(err)
		return nil
	}
	config.SetAutoReload(on)
	if !on {
		m.setStatus("auto-reload off")
		return nil
	}
	m.setStatus("auto-reload on")
	if m.watching {
		return nil
	}
	m.watching = true
	return waitForWatch(m.ws.WatchEvents())
}

func (m *model) toggleTheme() {
	theme := "light"
	if m.ws.Theme() == "light" {
		theme = "dark"
	}
	m.ws.SetTheme(theme)
	config.SetTheme(theme)
	uiStyles.Load(theme)
	m.setStatus("theme " + theme)
	m.refresh(false)
}

func (m *model) copyAnchor() {
	item, ok := m.selectedHeading()
	if !ok {
		m.setStatus("no heading selected")
		return
	}
	anchor := "#" + item.Slug
	if err := clipboardWrite(anchor); err != nil {
		m.setError(fmt.Errorf("copy anchor: %w", err))
		return
	}
	m.setStatus("copied " + anchor)
}

// ============================================================================
// Content
// ============================================================================

// layout sizes the viewport to the space left by the chrome
func (m *model) layout() {
	w := m.width
	if m.showOutline && w > outlineWidth*2 {
		w -= outlineWidth + 2
	}
	h := m.height - chromeLines
	if m.searching {
		h--
	}
	m.viewport.Width = max(w, 10)
	m.viewport.Height = max(h, 1)
}

// refresh re-renders the active document if it, the width, the theme or
// the options changed. top scrolls back to the first line.
func (m *model) refresh(top bool) {
	doc := m.ws.Active()
	theme := m.ws.Theme()
	opts := m.ws.Options()
	if doc == m.shown && m.viewport.Width == m.shownWidth && theme == m.shownTheme && opts == m.shownOpts {
		if top {
			m.viewport.GotoTop()
		}
		return
	}
	sameDoc := m.shown != nil && m.shown.ID == doc.ID

	content, err := renderTerminal(doc, opts, theme, m.viewport.Width)
	if err != nil {
		m.log.Warn("terminal render failed", "doc", doc.Name(), "error", err)
		m.renderFailed = err
		content = doc.Raw
	} else {
		m.renderFailed = nil
	}

	m.viewport.SetContent(content)
	if top || !sameDoc {
		m.viewport.GotoTop()
	}
	m.shown, m.shownWidth, m.shownTheme, m.shownOpts = doc, m.viewport.Width, theme, opts
	m.rawLines = strings.Count(doc.Raw, "\n") + 1
	m.outlineCursor = clamp(m.outlineCursor, 0, max(len(doc.Outline)-1, 0))
	m.resolveSnippets()
}

// resolveSnippets requests math and diagram renders for the active
// document so the status line can report their progress.
func (m *model) resolveSnippets() {
	if m.renderer == nil || m.shown == nil {
		return
	}
	res, err := m.renderer.Render(m.shown.Transformed)
	if err != nil {
		m.log.Warn("html render failed", "error", err)
		return
	}
	res.HTML = ""
	m.snippets = res
}

// renderTerminal renders a document for the terminal. Diagrams stay fenced
// code since a terminal cannot show SVG.
func renderTerminal(doc *document.Document, opts preprocess.Options, theme string, width int) (string, error) {
	opts.RenderMermaid = false
	if doc.Repo != nil {
		opts.RepoURL = doc.Repo.BaseURL
	}
	md := preprocess.Process(doc.Raw, opts)

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(glamourStyle(theme)),
		glamour.WithWordWrap(max(width-2, 20)),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	return r.Render(md)
}

// scrollToLine maps a source line onto the rendered content. Rendering
// changes line counts, so the position is proportional.
func (m *model) scrollToLine(line int) {
	total := m.viewport.TotalLineCount()
	if total == 0 || m.rawLines == 0 {
		return
	}
	m.viewport.SetYOffset(line * total / m.rawLines)
}

// ============================================================================
// Outline
// ============================================================================

func (m *model) moveOutline(delta int) {
	doc := m.ws.Active()
	if len(doc.Outline) == 0 {
		return
	}
	m.outlineCursor = clamp(m.outlineCursor+delta, 0, len(doc.Outline)-1)
}

func (m *model) selectedHeading() (outline.Item, bool) {
	doc := m.ws.Active()
	if m.outlineCursor >= len(doc.Outline) {
		return outline.Item{}, false
	}
	return doc.Outline[m.outlineCursor], true
}

func (m *model) renderOutline(height int) string {
	doc := m.ws.Active()
	b := getBuilder()
	defer putBuilder(b)

	if len(doc.Outline) == 0 {
		b.WriteString(uiStyles.Dim.Render("no headings"))
	}
	start, end := scrollWindow(m.outlineCursor, len(doc.Outline), height, &m.outlineOffset)
	for i := start; i < end; i++ {
		item := doc.Outline[i]
		indent := strings.Repeat("  ", clamp(item.Level-1, 0, 5))
		line := truncate.StringWithTail(indent+item.Title, outlineWidth, "…")
		if i == m.outlineCursor {
			b.WriteString(uiStyles.OutlineSelected.Width(outlineWidth).Render(line))
		} else {
			b.WriteString(uiStyles.Outline.Render(line))
		}
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return uiStyles.OutlineBorder.Width(outlineWidth + 1).Height(height).Render(b.String())
}

// ============================================================================
// View
// ============================================================================

// View implements tea.Model
func (m model) View() string {
	if m.quitting {
		return ""
	}

	b := getBuilder()
	defer putBuilder(b)

	b.WriteString(m.renderTabs())
	b.WriteString("\n")

	body := m.viewport.View()
	if m.showOutline && m.width > outlineWidth*2 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderOutline(m.viewport.Height), body)
	}
	b.WriteString(body)
	b.WriteString("\n")

	b.WriteString(uiStyles.Divider.Render(strings.Repeat("─", max(m.width, 1))))
	b.WriteString("\n")
	if m.searching {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	b.WriteString(m.renderStatus())
	return b.String()
}

func (m model) renderTabs() string {
	active := m.ws.Active().ID
	var tabs []string
	for _, doc := range m.ws.Documents() {
		if doc.ID == active {
			tabs = append(tabs, uiStyles.ActiveTab.Render(doc.Name()))
		} else {
			tabs = append(tabs, uiStyles.Tab.Render(doc.Name()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m model) renderStatus() string {
	parts := []string{fmt.Sprintf("%3.f%%", m.viewport.ScrollPercent()*100)}
	if m.ws.AutoReload() {
		parts = append(parts, "auto-reload")
	}
	if m.snippets.Pending > 0 {
		parts = append(parts, fmt.Sprintf("rendering %d", m.snippets.Pending))
	}
	if m.snippets.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", m.snippets.Failed))
	}
	if m.caseSensitive {
		parts = append(parts, "Aa")
	}
	line := uiStyles.Status.Render(strings.Join(parts, " • "))

	switch {
	case m.status != "" && m.statusIsErr:
		line += "  " + uiStyles.Error.Render(m.status)
	case m.status != "":
		line += "  " + uiStyles.Status.Render(m.status)
	case m.renderFailed != nil:
		line += "  " + uiStyles.Error.Render(m.renderFailed.Error())
	}
	return line
}

func (m *model) setStatus(s string) {
	m.status, m.statusIsErr = s, false
}

func (m *model) setError(err error) {
	m.status, m.statusIsErr = err.Error(), true
}

func (m *model) setMatchStatus() {
	_, idx, total := m.ws.FindSelected()
	if total == 0 {
		m.setStatus("no matches")
		return
	}
	m.setStatus(fmt.Sprintf("match %d/%d", idx+1, total))
}
