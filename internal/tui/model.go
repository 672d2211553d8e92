// Package tui renders the student workspace as a three-pane terminal UI:
// the exercise list, the editor with its results, and the assistant.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/history"
	"github.com/felixgeelhaar/chatsql/internal/i18n"
	"github.com/felixgeelhaar/chatsql/internal/workspace"
)

const (
	sidebarWidth   = 34
	assistantWidth = 44
	chromeHeight   = 4
)

type pane int

const (
	paneList pane = iota
	paneEditor
	paneChat
)

// doneMsg reports that a workspace operation finished; the view re-reads
// every snapshot when it arrives
type doneMsg struct {
	status  string
	history *history.Result
}

// Options tune the workspace view
type Options struct {
	WordWrap int
}

// Model is the bubbletea model of the workspace
type Model struct {
	ctx      context.Context
	shell    *workspace.Shell
	styles   Styles
	renderer *glamour.TermRenderer
	wordWrap int

	editor  textarea.Model
	input   textinput.Model
	chat    viewport.Model
	spinner spinner.Model

	focus         pane
	cursor        int
	shownExercise *domain.Exercise
	history       *history.Result
	status        string
	busy          int
	width         int
	height        int
}

// New creates the workspace view over shell. ctx carries the localizer and
// is passed to every operation.
func New(ctx context.Context, shell *workspace.Shell, opts Options) Model {
	if opts.WordWrap <= 0 {
		opts.WordWrap = assistantWidth - 6
	}

	ed := textarea.New()
	ed.ShowLineNumbers = true
	ed.Placeholder = domain.DefaultQuery
	ed.SetWidth(60)
	ed.SetHeight(8)

	in := textinput.New()
	in.Placeholder = "Ask the assistant..."
	in.Prompt = "│ "
	in.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(opts.WordWrap),
	)

	return Model{
		ctx:      ctx,
		shell:    shell,
		styles:   DefaultStyles(),
		renderer: renderer,
		wordWrap: opts.WordWrap,
		editor:   ed,
		input:    in,
		chat:     viewport.New(assistantWidth-4, 20),
		spinner:  sp,
		focus:    paneList,
	}
}

// Run starts the workspace in the alternate screen and blocks until quit
func Run(ctx context.Context, shell *workspace.Shell, opts Options) error {
	p := tea.NewProgram(New(ctx, shell, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.start(func(ctx context.Context) doneMsg {
			m.shell.Mount(ctx)
			return doneMsg{}
		}),
	)
}

// start runs fn off the UI goroutine and keeps the spinner going while
// anything is in flight. The busy count is bumped by the caller's copy of
// the model, so callers must return the updated model.
func (m *Model) start(fn func(ctx context.Context) doneMsg) tea.Cmd {
	m.busy++
	ctx := m.ctx
	cmd := func() tea.Msg { return fn(ctx) }
	if m.busy == 1 {
		return tea.Batch(cmd, m.spinner.Tick)
	}
	return cmd
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case doneMsg:
		if m.busy > 0 {
			m.busy--
		}
		if msg.status != "" {
			m.status = msg.status
		}
		if msg.history != nil {
			m.history = msg.history
		}
		m.sync()
		return m, nil

	case spinner.TickMsg:
		if m.busy == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.cycleFocus()
		return m, nil
	case "ctrl+b":
		m.shell.ToggleSidebar(m.ctx)
		if !m.shell.Layout().SidebarOpen && m.focus == paneList {
			m.cycleFocus()
		}
		m.resize()
		return m, nil
	case "ctrl+a":
		m.shell.ToggleAssistant(m.ctx)
		if !m.shell.Layout().AssistantOpen && m.focus == paneChat {
			m.cycleFocus()
		}
		m.resize()
		return m, nil
	case "ctrl+r":
		return m, m.start(m.execute)
	case "ctrl+s":
		return m, m.start(m.submit)
	case "ctrl+d":
		demo := !m.shell.Demo()
		return m, m.start(func(ctx context.Context) doneMsg {
			m.shell.SetDemoMode(ctx, demo)
			return doneMsg{status: fmt.Sprintf("demo mode: %v", demo)}
		})
	case "ctrl+h":
		return m, m.start(m.loadHistory)
	case "ctrl+l":
		m.shell.Assistant.Clear()
		m.sync()
		return m, nil
	}

	switch m.focus {
	case paneList:
		return m.handleListKey(msg)
	case paneEditor:
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		m.shell.Editor.SetQuery(m.editor.Value())
		return m, cmd
	case paneChat:
		if msg.Type == tea.KeyEnter {
			text := m.input.Value()
			if strings.TrimSpace(text) == "" {
				return m, nil
			}
			m.input.Reset()
			return m, m.start(func(ctx context.Context) doneMsg {
				if err := m.shell.Ask(ctx, text); err != nil {
					return doneMsg{status: err.Error()}
				}
				return doneMsg{}
			})
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.shell.Browse.Snapshot()
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(snap.Exercises)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(snap.Exercises) {
			id := snap.Exercises[m.cursor].ID
			m.history = nil
			return m, m.start(func(ctx context.Context) doneMsg {
				if err := m.shell.Browse.Select(ctx, id); err != nil {
					return doneMsg{status: err.Error()}
				}
				return doneMsg{}
			})
		}
	case "d":
		next := nextDifficulty(snap.Filter.Difficulty)
		return m, m.start(func(ctx context.Context) doneMsg {
			_ = m.shell.Browse.SetDifficulty(ctx, next)
			return doneMsg{}
		})
	case "t":
		next := nextTag(snap.Tags, snap.Filter.Tag)
		return m, m.start(func(ctx context.Context) doneMsg {
			if next == "" {
				m.shell.Browse.SetTag(ctx, "")
			} else {
				m.shell.Browse.ToggleTag(ctx, next)
			}
			return doneMsg{}
		})
	case "T":
		if snap.Filter.Tag != "" {
			current := snap.Filter.Tag
			return m, m.start(func(ctx context.Context) doneMsg {
				m.shell.Browse.ToggleTag(ctx, current)
				return doneMsg{}
			})
		}
	case "c":
		return m, m.start(func(ctx context.Context) doneMsg {
			m.shell.Browse.ClearFilters(ctx)
			return doneMsg{}
		})
	}
	return m, nil
}

func (m Model) execute(ctx context.Context) doneMsg {
	if err := m.shell.Editor.Execute(ctx); err != nil {
		return doneMsg{status: err.Error()}
	}
	return doneMsg{}
}

func (m Model) submit(ctx context.Context) doneMsg {
	if err := m.shell.Editor.Submit(ctx); err != nil {
		return doneMsg{status: err.Error()}
	}
	return doneMsg{}
}

func (m Model) loadHistory(ctx context.Context) doneMsg {
	res, err := m.shell.LoadHistory(ctx)
	if err != nil {
		return doneMsg{status: err.Error()}
	}
	return doneMsg{history: &res}
}

func (m *Model) cycleFocus() {
	layout := m.shell.Layout()
	for i := 0; i < 3; i++ {
		m.focus = (m.focus + 1) % 3
		if m.focus == paneList && !layout.SidebarOpen {
			continue
		}
		if m.focus == paneChat && !layout.AssistantOpen {
			continue
		}
		break
	}

	m.editor.Blur()
	m.input.Blur()
	switch m.focus {
	case paneEditor:
		m.editor.Focus()
	case paneChat:
		m.input.Focus()
	}
}

// sync pulls the state holders into the widgets
func (m *Model) sync() {
	snap := m.shell.Browse.Snapshot()
	if m.cursor >= len(snap.Exercises) {
		m.cursor = max(len(snap.Exercises)-1, 0)
	}

	ed := m.shell.Editor.Snapshot()
	if ed.Exercise != m.shownExercise {
		m.shownExercise = ed.Exercise
		m.editor.SetValue(ed.Query)
		m.history = nil
	}
	if !ed.HasExercise && m.editor.Value() != "" {
		m.editor.SetValue("")
	}

	m.chat.SetContent(renderMessages(m.styles, m.renderer, m.shell.Assistant.Messages(), m.chat.Width))
	m.chat.GotoBottom()
}

func (m *Model) resize() {
	if m.width == 0 {
		return
	}
	layout := m.shell.Layout()
	center := m.width
	if layout.SidebarOpen {
		center -= sidebarWidth
	}
	if layout.AssistantOpen {
		center -= assistantWidth
	}
	m.editor.SetWidth(max(center-4, 20))
	m.input.Width = assistantWidth - 6
	m.chat.Width = assistantWidth - 4
	m.chat.Height = max(m.height-chromeHeight-6, 5)
}

func (m Model) View() string {
	layout := m.shell.Layout()
	bodyHeight := max(m.height-chromeHeight, 10)

	var panes []string
	if layout.SidebarOpen {
		list := renderExerciseList(m.ctx, m.styles, m.shell.Browse.Snapshot(), m.cursor, sidebarWidth)
		panes = append(panes, m.paneStyle(paneList).Width(sidebarWidth-2).Height(bodyHeight).Render(list))
	}

	centerWidth := m.width
	if layout.SidebarOpen {
		centerWidth -= sidebarWidth
	}
	if layout.AssistantOpen {
		centerWidth -= assistantWidth
	}
	panes = append(panes, m.paneStyle(paneEditor).Width(max(centerWidth-2, 20)).Height(bodyHeight).Render(m.centerView()))

	if layout.AssistantOpen {
		chat := m.chat.View() + "\n" + m.input.View()
		panes = append(panes, m.paneStyle(paneChat).Width(assistantWidth-2).Height(bodyHeight).Render(chat))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		lipgloss.JoinHorizontal(lipgloss.Top, panes...),
		m.footerView(),
	)
}

func (m Model) paneStyle(p pane) lipgloss.Style {
	if m.focus == p {
		return m.styles.FocusedPane
	}
	return m.styles.Pane
}

func (m Model) centerView() string {
	ed := m.shell.Editor.Snapshot()
	parts := []string{
		renderExercise(m.ctx, m.styles, ed.Exercise, ed.Loading),
		m.editor.View(),
	}
	if r := renderResult(m.ctx, m.styles, ed.Result); r != "" {
		parts = append(parts, r)
	}
	if r := renderSubmit(m.ctx, m.styles, ed.SubmitResult); r != "" {
		parts = append(parts, r)
	}
	if h := renderHistory(m.ctx, m.styles, m.history); h != "" {
		parts = append(parts, h)
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) headerView() string {
	title := m.styles.Header.Render("chatsql")
	if m.shell.Demo() {
		title += " " + m.styles.Banner.Render(i18n.T(m.ctx, i18n.MsgDemoBanner))
	}
	return title
}

func (m Model) footerView() string {
	help := "tab focus · ctrl+r run · ctrl+s submit · ctrl+h history · ctrl+d demo · ctrl+b/ctrl+a panes · ctrl+c quit"
	if m.focus == paneList {
		help = "j/k move · enter select · d difficulty · t tag · T clear tag · c clear · " + help
	}
	line := help
	if m.busy > 0 {
		line = m.spinner.View() + " " + line
	}
	if m.status != "" {
		line += "\n" + m.status
	}
	return m.styles.Footer.Render(line)
}

func nextDifficulty(d domain.Difficulty) domain.Difficulty {
	for i, v := range domain.Difficulties {
		if v == d {
			return domain.Difficulties[(i+1)%len(domain.Difficulties)]
		}
	}
	return domain.DifficultyAll
}

// nextTag walks "" -> tags[0] -> ... -> tags[n-1] -> ""
func nextTag(tags []string, current string) string {
	if current == "" {
		if len(tags) == 0 {
			return ""
		}
		return tags[0]
	}
	for i, t := range tags {
		if t == current && i+1 < len(tags) {
			return tags[i+1]
		}
	}
	return ""
}
