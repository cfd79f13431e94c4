package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"concierge/pkg/chat"
	"concierge/pkg/client"
	"concierge/pkg/tasks"
)

// updateMsg is sent whenever the session reports a visible change.
type updateMsg struct{}

// noticeMsg carries a one-line result shown in the footer.
type noticeMsg string

// waitForUpdate blocks on the session's update channel.
func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return updateMsg{}
	}
}

// Pane selects which half of the screen has focus.
type Pane int

const (
	// ChatPane shows the transcript and the message input.
	ChatPane Pane = iota
	// TasksPane shows the task cards.
	TasksPane
)

// Model is the Bubble Tea model for the concierge chat screen.
type Model struct {
	ctx     context.Context
	session session
	theme   Theme
	origin  string

	snap   client.Snapshot
	pane   Pane
	cursor int

	input      textinput.Model
	filter     textinput.Model
	filtering  bool
	transcript viewport.Model
	spin       spinner.Model
	notice     string

	width  int
	height int
}

func newModel(ctx context.Context, s session, origin string) Model {
	in := textinput.New()
	in.Placeholder = "Message concierge…"
	in.Prompt = "› "
	in.Focus()

	f := textinput.New()
	f.Prompt = "filter: "
	f.Placeholder = "s:NEXT p:A"

	return Model{
		ctx:        ctx,
		session:    s,
		theme:      DefaultTheme(),
		origin:     origin,
		snap:       s.Snapshot(),
		input:      in,
		filter:     f,
		transcript: viewport.New(80, 20),
		spin:       spinner.New(spinner.WithSpinner(spinner.MiniDot)),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick, waitForUpdate(m.session.Updates()))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshTranscript()

	case updateMsg:
		m.snap = m.session.Snapshot()
		m.clampCursor()
		m.refreshTranscript()
		return m, waitForUpdate(m.session.Updates())

	case noticeMsg:
		m.notice = string(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}
	if key == "tab" && !m.filtering {
		if m.pane == ChatPane {
			m.pane = TasksPane
			m.input.Blur()
		} else {
			m.pane = ChatPane
			m.input.Focus()
		}
		return m, nil
	}

	if m.filtering {
		return m.handleFilterKeys(msg)
	}
	if m.pane == TasksPane {
		return m.handleTaskKeys(key)
	}
	return m.handleChatKeys(msg)
}

func (m Model) handleChatKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "enter":
		text := m.input.Value()
		m.input.Reset()
		if _, _, err := m.session.Send(text); err != nil {
			m.notice = "send: " + err.Error()
		}
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleTaskKeys(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "q", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.snap.Tasks)-1 {
			m.cursor++
		}
	case " ", "x", "enter":
		if m.cursor < len(m.snap.Tasks) {
			return m, m.toggleCmd(m.snap.Tasks[m.cursor].ID)
		}
	case "r":
		return m, m.refreshCmd()
	case "/":
		m.filtering = true
		m.filter.SetValue(m.snap.Filter.String())
		m.filter.CursorEnd()
		cmd := m.filter.Focus()
		return m, cmd
	}
	return m, nil
}

func (m Model) handleFilterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filtering = false
		m.filter.Blur()
		return m, nil
	case "enter":
		f, err := tasks.ParseFilter(m.filter.Value())
		if err != nil {
			m.notice = err.Error()
			return m, nil
		}
		m.filtering = false
		m.filter.Blur()
		m.session.SetFilter(f)
		m.cursor = 0
		m.notice = ""
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

func (m Model) toggleCmd(id string) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		err := s.Toggle(ctx, id)
		switch {
		case err == nil:
			return noticeMsg("")
		case errors.Is(err, tasks.ErrMutationInFlight):
			return noticeMsg("another update is still in flight")
		default:
			return noticeMsg("update failed, reverted: " + err.Error())
		}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		if err := s.RefreshTasks(ctx); err != nil {
			return noticeMsg("refresh failed: " + err.Error())
		}
		return noticeMsg("")
	}
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.snap.Tasks) {
		m.cursor = max(0, len(m.snap.Tasks)-1)
	}
}

// layout sizes the transcript to the left half of the screen.
func (m *Model) layout() {
	chatWidth := m.width / 2
	m.transcript.Width = max(20, chatWidth-2)
	m.transcript.Height = max(3, m.height-6)
	m.input.Width = max(10, chatWidth-4)
}

func (m *Model) refreshTranscript() {
	atBottom := m.transcript.AtBottom()
	m.transcript.SetContent(m.renderEntries())
	if atBottom {
		m.transcript.GotoBottom()
	}
}

func (m Model) renderEntries() string {
	var lines []string
	for _, e := range m.snap.Entries {
		switch {
		case e.Message != nil && e.Message.Sender == chat.SenderUser:
			lines = append(lines, m.theme.UserLine(e.Message))
		case e.Message != nil:
			lines = append(lines, m.theme.SystemLine(e.Message))
		case e.Batch != nil:
			if e.Batch.Header != "" {
				lines = append(lines, lipgloss.NewStyle().Bold(true).Render(e.Batch.Header))
			}
			if len(e.Batch.Tasks) == 0 {
				lines = append(lines, lipgloss.NewStyle().Foreground(m.theme.Muted).Render(tasks.EmptyBatchMessage))
			}
			for _, t := range e.Batch.Tasks {
				lines = append(lines, m.theme.Card(tasks.NewCard(t), false))
			}
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderTasks() string {
	var b strings.Builder
	header := lipgloss.NewStyle().Bold(true).Render("Tasks") + "  " +
		lipgloss.NewStyle().Foreground(m.theme.Muted).Render(tasks.CountLabel(len(m.snap.Tasks)))
	if !m.snap.Filter.IsZero() {
		header += "  " + lipgloss.NewStyle().Foreground(m.theme.Warning).Render(m.snap.Filter.String())
	}
	b.WriteString(header + "\n")

	if m.filtering {
		b.WriteString(m.filter.View() + "\n")
	}

	switch {
	case !m.snap.TasksReady:
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.Muted).Render("Loading…"))
	case len(m.snap.Tasks) == 0:
		b.WriteString(lipgloss.NewStyle().Foreground(m.theme.Muted).Render(tasks.EmptyMessage(m.snap.TaskTotal)))
	default:
		for i, t := range m.snap.Tasks {
			card := m.theme.Card(tasks.NewCard(t), m.pane == TasksPane && i == m.cursor)
			if t.ID == m.snap.Pending {
				card += " " + m.spin.View()
			}
			b.WriteString(card + "\n")
		}
	}
	return b.String()
}

// View implements tea.Model.
func (m Model) View() string {
	status := m.theme.ConnectionDot(m.snap.Connection) + "  " +
		lipgloss.NewStyle().Foreground(m.theme.Muted).Render(m.origin)

	chatCol := m.transcript.View()
	if m.snap.Typing {
		chatCol += "\n" + m.spin.View() + " concierge is typing…"
	}
	chatCol += "\n" + m.input.View()

	half := max(20, m.width/2)
	border := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(m.theme.Muted)
	active := border.BorderForeground(m.theme.Primary)
	chatBox, taskBox := border, border
	if m.pane == ChatPane {
		chatBox = active
	} else {
		taskBox = active
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		chatBox.Width(half-2).Render(chatCol),
		taskBox.Width(max(20, m.width-half-2)).Render(m.renderTasks()),
	)

	footer := lipgloss.NewStyle().Foreground(m.theme.Muted).Render("tab switch pane · enter send · space toggle · / filter · r refresh · ctrl+c quit")
	if m.notice != "" {
		footer = lipgloss.NewStyle().Foreground(m.theme.Error).Render(m.notice)
	}
	return fmt.Sprintf("%s\n%s\n%s", status, body, footer)
}

// runTUI runs the full-screen chat until the user quits or ctx ends.
func runTUI(ctx context.Context, s session, origin string) error {
	p := tea.NewProgram(newModel(ctx, s, origin), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
