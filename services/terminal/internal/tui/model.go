// Package tui is the interactive terminal for the portfolio: a welcome box,
// the command history and an input line with slash-command suggestions.
package tui

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"termfolio/pkg/commands"
	"termfolio/pkg/domain"
	"termfolio/pkg/input"
)

// NicknameKey is the preference key the nickname is remembered under.
const NicknameKey = "nickname"

const requestTimeout = 15 * time.Second

const (
	commandPlaceholder  = "Type a command..."
	nicknamePlaceholder = "Please enter your name:"
	waitingHint         = "Waiting for your response..."
)

// Prefs persists small values between runs.
type Prefs interface {
	Load(key string) (string, bool)
	Save(key, value string) error
}

type Options struct {
	Backend Backend
	// Prefs remembers the nickname. Nil keeps it in memory only.
	Prefs Prefs
	// LastLogin is the previous visit; zero means first visit.
	LastLogin time.Time
	Now       func() time.Time
}

type commandsMsg struct {
	cmds []domain.Command
	err  error
}

type replyMsg struct {
	index int
	reply Reply
	err   error
}

type downloadMsg struct {
	index int
	path  string
	err   error
}

type nicknameMsg struct {
	err error
}

// Model is the bubbletea model for the terminal.
type Model struct {
	backend   Backend
	prefs     Prefs
	lastLogin time.Time
	now       func() time.Time

	machine  *input.Machine
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	conv     Conversation

	width  int
	height int
	busy   bool
	status string
}

func New(opts Options) *Model {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = commandPlaceholder
	ti.CharLimit = 100
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = mutedStyle

	m := &Model{
		backend:   opts.Backend,
		prefs:     opts.Prefs,
		lastLogin: opts.LastLogin,
		now:       now,
		machine:   input.New(nil),
		input:     ti,
		viewport:  viewport.New(80, 20),
		spinner:   sp,
		width:     80,
		height:    24,
	}
	if m.prefs != nil {
		if nick, ok := m.prefs.Load(NicknameKey); ok {
			m.conv.Nickname = nick
		}
	}
	m.layout()
	m.refresh()
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadCommands())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.layout()
		m.refresh()
		return m, nil
	case commandsMsg:
		if msg.err != nil {
			m.status = "Could not load commands: " + msg.err.Error()
			return m, nil
		}
		cmds := append([]domain.Command(nil), msg.cmds...)
		sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
		m.machine.SetCommands(cmds)
		m.status = ""
		return m, nil
	case replyMsg:
		return m, m.handleReply(msg)
	case downloadMsg:
		m.busy = false
		if msg.err != nil {
			m.conv.Append(msg.index, errorStyle.Render("Download failed: "+msg.err.Error()))
		} else {
			m.conv.Append(msg.index, "Saved to "+msg.path)
		}
		m.refresh()
		return m, nil
	case nicknameMsg:
		if msg.err != nil {
			m.status = "Could not save nickname: " + msg.err.Error()
		}
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd
	case tea.MouseMsg:
		return m, m.handleMouse(msg)
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch msg.Type {
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeyUp:
		if m.machine.PanelVisible() {
			m.machine.Up()
		} else {
			m.viewport.LineUp(1)
		}
	case tea.KeyDown:
		if m.machine.PanelVisible() {
			m.machine.Down()
		} else {
			m.viewport.LineDown(1)
		}
	case tea.KeyPgUp, tea.KeyPgDown:
		m.viewport, cmd = m.viewport.Update(msg)
	case tea.KeyTab:
		m.machine.Tab()
		m.syncInput()
	case tea.KeyEsc:
		m.machine.Escape()
	case tea.KeyEnter:
		cmd = m.submit()
	default:
		m.input, cmd = m.input.Update(msg)
		if m.input.Value() != m.machine.Buffer() {
			m.machine.SetBuffer(m.input.Value())
		}
	}
	m.layout()
	if m.machine.ConsumeScroll() {
		m.viewport.GotoBottom()
	}
	return cmd
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	switch msg.Type {
	case tea.MouseWheelUp:
		m.viewport.LineUp(3)
	case tea.MouseWheelDown:
		m.viewport.LineDown(3)
	case tea.MouseLeft:
		if m.busy {
			return nil
		}
		// The panel sits right under the viewport, inside a one-row border.
		index, ok := candidateAt(m.machine, msg.Y-m.viewport.Height-1)
		if !ok {
			return nil
		}
		line, ok := m.machine.Click(index)
		if !ok {
			return nil
		}
		m.syncInput()
		m.layout()
		return m.run(line)
	}
	return nil
}

func (m *Model) syncInput() {
	m.input.SetValue(m.machine.Buffer())
	m.input.CursorEnd()
}

func (m *Model) submit() tea.Cmd {
	if m.busy {
		return nil
	}
	line, ok := m.machine.Enter()
	m.syncInput()
	if !ok && !m.conv.Waiting {
		return nil
	}
	return m.run(line)
}

func (m *Model) run(line string) tea.Cmd {
	step, index := m.conv.Submit(line)
	defer m.refresh()
	switch step {
	case StepExecute:
		m.busy = true
		return tea.Batch(m.spinner.Tick, m.execute(index, line, m.conv.Nickname))
	case StepNicknameSet:
		return m.rememberNickname(m.conv.Nickname)
	}
	return nil
}

func (m *Model) handleReply(msg replyMsg) tea.Cmd {
	m.busy = false
	defer m.refresh()
	if msg.err != nil {
		m.conv.Resolve(msg.index, "Error: "+msg.err.Error(), true)
		return nil
	}
	reply := msg.reply
	if reply.Clear() {
		m.conv.Clear()
		return nil
	}
	m.conv.Resolve(msg.index, StripMarkup(reply.Text), false)
	var cmd tea.Cmd
	if reply.Nickname != "" && m.conv.Nickname == "" {
		m.conv.Nickname = reply.Nickname
		cmd = m.saveNickname(reply.Nickname)
	}
	if reply.Download != nil {
		m.busy = true
		return tea.Batch(cmd, m.spinner.Tick, m.download(msg.index, *reply.Download))
	}
	return cmd
}

func (m *Model) loadCommands() tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		cmds, err := backend.Commands(ctx)
		return commandsMsg{cmds: cmds, err: err}
	}
}

func (m *Model) execute(index int, line, nickname string) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		reply, err := backend.Execute(ctx, line, nickname)
		return replyMsg{index: index, reply: reply, err: err}
	}
}

func (m *Model) download(index int, info commands.DownloadInfo) tea.Cmd {
	backend := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		path, err := backend.Download(ctx, info)
		return downloadMsg{index: index, path: path, err: err}
	}
}

// rememberNickname persists a nickname the visitor just typed and pushes it
// to the backend.
func (m *Model) rememberNickname(nickname string) tea.Cmd {
	save := m.saveNickname(nickname)
	backend := m.backend
	push := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return nicknameMsg{err: backend.SetNickname(ctx, nickname)}
	}
	return tea.Batch(save, push)
}

func (m *Model) saveNickname(nickname string) tea.Cmd {
	if m.prefs == nil {
		return nil
	}
	prefs := m.prefs
	return func() tea.Msg {
		return nicknameMsg{err: prefs.Save(NicknameKey, nickname)}
	}
}

// layout gives the viewport whatever height the panel and input leave.
func (m *Model) layout() {
	if m.conv.Waiting {
		m.input.Placeholder = nicknamePlaceholder
	} else {
		m.input.Placeholder = commandPlaceholder
	}
	panel := renderPanel(m.machine, m.width)
	reserved := 2
	if panel != "" {
		reserved += lipgloss.Height(panel)
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-reserved, 1)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m *Model) renderHistory() string {
	var b strings.Builder
	box := welcomeStyle
	if m.width > 4 {
		box = box.Width(min(m.width-2, 60))
	}
	b.WriteString(box.Render(strings.Join(WelcomeLines(m.conv.Nickname, m.now()), "\n")))
	b.WriteString("\n")
	if line := LastLoginLine(m.lastLogin); line != "" {
		b.WriteString(mutedStyle.Render(line))
		b.WriteString("\n")
	}
	wrap := lipgloss.NewStyle().Width(max(m.width-2, 10))
	for _, e := range m.conv.Entries {
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("> ") + commandStyle.Render(e.Command))
		b.WriteString("\n")
		switch {
		case e.Pending:
			b.WriteString(m.spinner.View() + mutedStyle.Render(" running..."))
		case e.Failed:
			b.WriteString(wrap.Render(errorStyle.Render(e.Output)))
		default:
			b.WriteString(wrap.Render(e.Output))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) View() string {
	parts := []string{m.viewport.View()}
	if panel := renderPanel(m.machine, m.width); panel != "" {
		parts = append(parts, panel)
	}
	parts = append(parts, promptStyle.Render("❯ ")+m.input.View())
	switch {
	case m.status != "":
		parts = append(parts, errorStyle.Render(m.status))
	case m.conv.Waiting:
		parts = append(parts, mutedStyle.Render(waitingHint))
	default:
		parts = append(parts, "")
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// Conversation exposes the history, mainly for tests.
func (m *Model) Conversation() Conversation {
	return m.conv
}
