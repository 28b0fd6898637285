// Package tui is the terminal front end: one session, one conversation,
// replies streamed into a scrolling transcript.
package tui

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"oshaberi/internal/chat"
	"oshaberi/internal/llm"
)

const temperatureStep = 0.1

type (
	streamTokenMsg struct {
		text string
	}
	turnDoneMsg struct {
		result chat.TurnResult
		err    error
	}
)

// Model is the bubbletea model for an interactive chat.
type Model struct {
	ctx     context.Context
	chat    *chat.Chat
	session *chat.Session

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	markdown *glamour.TermRenderer

	events    chan tea.Msg
	streaming bool
	partial   string
	alert     string
	err       error

	ready  bool
	width  int
	height int
}

func New(ctx context.Context, c *chat.Chat, sess *chat.Session) Model {
	ta := textarea.New()
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter")
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.Focus()

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	m := Model{
		ctx:      ctx,
		chat:     c,
		session:  sess,
		textarea: ta,
		spinner:  s,
		viewport: viewport.New(80, 20),
		events:   make(chan tea.Msg, 64),
	}
	m.textarea.Placeholder = m.snapshot().Style.Placeholder
	m.markdown = newMarkdown(80)
	return m
}

// Run drives the model until the user quits or ctx ends.
func Run(ctx context.Context, c *chat.Chat, sess *chat.Session) error {
	p := tea.NewProgram(New(ctx, c, sess), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func newMarkdown(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

func (m Model) snapshot() chat.Snapshot {
	return m.session.Snapshot()
}

func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if m.session.ConfirmResetPending() {
			return m.updateConfirm(msg)
		}
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+s":
			m.cycleStyle()
			return m, nil
		case "ctrl+up":
			m.nudgeTemperature(temperatureStep)
			return m, nil
		case "ctrl+down":
			m.nudgeTemperature(-temperatureStep)
			return m, nil
		case "ctrl+r":
			if !m.streaming {
				m.session.RequestReset()
			}
			return m, nil
		case "enter":
			if m.streaming {
				return m, nil
			}
			return m.submit()
		}
		if !m.streaming {
			var cmd tea.Cmd
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}

	case streamTokenMsg:
		m.partial += msg.text
		m.refresh()
		return m, waitForEvent(m.events)

	case turnDoneMsg:
		m.finishTurn(msg)
		return m, nil

	case spinner.TickMsg:
		if m.streaming {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.session.ConfirmReset()
		m.alert = ""
		m.refresh()
	case "n", "N", "esc":
		m.session.CancelReset()
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) cycleStyle() {
	if _, err := m.session.CycleStyle(); err != nil {
		m.err = err
		return
	}
	m.alert = ""
	m.textarea.Placeholder = m.snapshot().Style.Placeholder
	m.refresh()
}

func (m *Model) nudgeTemperature(delta float64) {
	t := math.Round((m.session.Temperature()+delta)*10) / 10
	t = math.Max(chat.MinTemperature, math.Min(chat.MaxTemperature, t))
	if err := m.session.SetTemperature(t); err != nil {
		m.err = err
	}
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.textarea.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}
	m.textarea.Reset()
	m.streaming = true
	m.partial = ""
	m.alert = ""
	m.err = nil

	go m.runTurn(text)

	m.refreshWithPending(text)
	return m, tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// runTurn streams one reply into events. It always ends with turnDoneMsg.
func (m Model) runTurn(text string) {
	result, err := m.chat.Turn(m.ctx, m.session, text, func(fragment string) error {
		select {
		case m.events <- streamTokenMsg{text: fragment}:
			return nil
		case <-m.ctx.Done():
			return m.ctx.Err()
		}
	})
	select {
	case m.events <- turnDoneMsg{result: result, err: err}:
	case <-m.ctx.Done():
	}
}

func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

func (m *Model) finishTurn(msg turnDoneMsg) {
	m.streaming = false
	m.partial = ""
	switch {
	case msg.err != nil:
		m.err = msg.err
	case msg.result.Alert != nil:
		m.alert = msg.result.Alert.Message
	}
	m.refresh()
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	headerHeight := 3
	inputHeight := 4
	footerHeight := 2
	vpHeight := max(height-headerHeight-inputHeight-footerHeight, 3)
	contentWidth := max(width-2, 20)

	m.viewport.Width = contentWidth
	m.viewport.Height = vpHeight
	m.textarea.SetWidth(contentWidth - 4)
	m.markdown = newMarkdown(contentWidth - 4)
	m.ready = true
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.transcript(""))
	m.viewport.GotoBottom()
}

// refreshWithPending shows the user's text before the turn goroutine has
// appended it to the session.
func (m *Model) refreshWithPending(text string) {
	m.viewport.SetContent(m.transcript(text))
	m.viewport.GotoBottom()
}

func (m Model) transcript(pending string) string {
	var b strings.Builder
	messages := m.snapshot().Messages
	if pending != "" && !endsWithUser(messages, pending) {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: pending})
	}
	for _, msg := range messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	if m.streaming && m.partial != "" {
		b.WriteString(assistantLabelStyle.Render("Assistant"))
		b.WriteString("\n")
		b.WriteString(userTextStyle.Render(m.partial))
		b.WriteString("\n")
	}
	return b.String()
}

func endsWithUser(messages []llm.Message, text string) bool {
	if len(messages) == 0 {
		return false
	}
	last := messages[len(messages)-1]
	return last.Role == llm.RoleUser && last.Content == text
}

func (m Model) renderMessage(msg llm.Message) string {
	if msg.Role == llm.RoleUser {
		return userLabelStyle.Render("You") + "\n" + userTextStyle.Render(msg.Content) + "\n"
	}
	body := msg.Content
	if m.markdown != nil {
		if out, err := m.markdown.Render(msg.Content); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}
	return assistantLabelStyle.Render("Assistant") + "\n" + body + "\n"
}

func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}
	snap := m.snapshot()

	title := snap.Style.Title
	if title == "" {
		title = snap.Style.Key
	}
	header := headerStyle.Width(max(m.width-2, 20)).Render(lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render(title),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(fmt.Sprintf("%s  temperature %.1f", snap.Style.Key, snap.Temperature)),
	))

	sections := []string{header, m.viewport.View()}

	if m.alert != "" {
		sections = append(sections, alertStyle.Render(m.alert))
	}
	if m.err != nil {
		sections = append(sections, alertStyle.Render(m.err.Error()))
	}

	switch {
	case snap.ConfirmReset:
		sections = append(sections, confirmStyle.Render("Reset the conversation? (y/n)"))
	case m.streaming:
		sections = append(sections, inputPanelStyle.Render(m.spinner.View()+" "+hintStyle.Render("replying...")))
	default:
		sections = append(sections, inputPanelStyle.Render(m.textarea.View()))
	}

	sections = append(sections, hintStyle.Render("enter send • alt+enter newline • ctrl+s style • ctrl+↑/↓ temperature • ctrl+r reset • ctrl+c quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
