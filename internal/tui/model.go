// Package tui renders the chat widget in a terminal with bubbletea.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"edubot/internal/models"
	"edubot/internal/widget"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	userStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	botStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("118"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	headerHeight = 2
	footerHeight = 3
)

// Pinger reports whether the chat endpoint is up.
type Pinger interface {
	Ping(ctx context.Context) (*models.PingResponse, error)
}

type changedMsg struct{}

type deliveredMsg struct{ err error }

type pingMsg struct {
	resp *models.PingResponse
	err  error
}

type Model struct {
	ctx    context.Context
	ctrl   *widget.Controller
	screen *Screen
	pinger Pinger

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	pending int
	status  string
	width   int
	height  int
}

type Option func(*Model)

func WithPinger(p Pinger) Option {
	return func(m *Model) {
		m.pinger = p
	}
}

func NewModel(ctx context.Context, ctrl *widget.Controller, screen *Screen, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask a question and press Enter"
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))

	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		screen:   screen,
		input:    ti,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		status:   "connecting…",
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m Model) deliver(d *widget.Delivery) tea.Cmd {
	return func() tea.Msg {
		return deliveredMsg{err: d.Deliver(m.ctx)}
	}
}

func (m Model) ping() tea.Msg {
	if m.pinger == nil {
		return pingMsg{}
	}
	resp, err := m.pinger.Ping(m.ctx)
	return pingMsg{resp: resp, err: err}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForChange(m.screen.Changed()), m.ping)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			d, ok := m.ctrl.Submit(m.input.Value())
			if !ok {
				return m, nil
			}
			m.pending++
			m.sync()
			cmds := []tea.Cmd{m.deliver(d)}
			if m.pending == 1 {
				cmds = append(cmds, m.spinner.Tick)
			}
			return m, tea.Batch(cmds...)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case changedMsg:
		m.sync()
		return m, waitForChange(m.screen.Changed())

	case deliveredMsg:
		if m.pending > 0 {
			m.pending--
		}
		m.sync()
		return m, nil

	case pingMsg:
		switch {
		case msg.err != nil:
			m.status = "offline: " + msg.err.Error()
		case msg.resp != nil:
			m.status = msg.resp.Message
		default:
			m.status = ""
		}
		return m, nil

	case spinner.TickMsg:
		if m.pending == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < headerHeight+footerHeight+1 {
		height = headerHeight + footerHeight + 1
	}
	m.width, m.height = width, height
	m.viewport.Width = width
	m.viewport.Height = height - headerHeight - footerHeight
	m.input.Width = max(width-len(m.input.Prompt)-1, 1)
	m.viewport.SetContent(m.render())
}

// sync applies the screen's pending requests to the bubbletea components.
func (m *Model) sync() {
	clearInput, scroll := m.screen.takeRequests()
	if clearInput {
		m.input.Reset()
	}
	m.viewport.SetContent(m.render())
	if scroll {
		m.viewport.GotoBottom()
	}
}

func (m Model) render() string {
	width := m.viewport.Width
	if width < 10 {
		width = 10
	}
	body := lipgloss.NewStyle().Width(width - 5)

	var b strings.Builder
	for i, it := range m.screen.Items() {
		if i > 0 {
			b.WriteString("\n")
		}
		switch {
		case it.Failed():
			b.WriteString(errorStyle.Render("  ! ") + body.Render(fmt.Sprintf("delivery failed for %q: %v", it.Text, it.Err)))
		case it.Role == widget.RoleUser:
			b.WriteString(userStyle.Render("you ") + body.Render(it.Text))
		default:
			b.WriteString(botStyle.Render("bot ") + body.Render(it.Text))
		}
	}
	return b.String()
}

func (m Model) View() string {
	header := titleStyle.Render("EduBot")
	cfg := m.ctrl.Config()
	header += statusStyle.Render(fmt.Sprintf("  %s as %s", cfg.Endpoint, cfg.UserID))
	if m.status != "" {
		header += statusStyle.Render("  · " + m.status)
	}

	footer := m.input.View()
	help := "enter send · pgup/pgdn scroll · esc quit"
	if m.pending > 0 {
		help = m.spinner.View() + fmt.Sprintf(" waiting for %d repl", m.pending)
		if m.pending == 1 {
			help += "y"
		} else {
			help += "ies"
		}
	}

	return header + "\n\n" + m.viewport.View() + "\n\n" + footer + "\n" + helpStyle.Render(help)
}

// Run starts the terminal UI and blocks until the user quits or ctx is done.
func Run(ctx context.Context, ctrl *widget.Controller, screen *Screen, opts ...Option) error {
	p := tea.NewProgram(
		NewModel(ctx, ctrl, screen, opts...),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}
