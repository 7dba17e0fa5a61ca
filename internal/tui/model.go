// Package tui renders the widget as a bubbletea program: a one-line bubble
// while closed, a bordered chat panel while open.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"atlas-widget/internal/widget"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	// border, title, help, typing line and input
	chromeHeight = 7
)

type refreshMsg struct{}

type Model struct {
	ctx      context.Context
	ctrl     *widget.Controller
	surface  *surface
	endpoint string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	open   bool
	typing bool
	width  int
	height int
}

func newModel(ctx context.Context, ctrl *widget.Controller, s *surface, endpoint string) Model {
	in := textinput.New()
	in.Placeholder = "Ask Atlas about the markets..."
	in.Prompt = "> "
	in.CharLimit = 2000

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = typingStyle

	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		surface:  s,
		endpoint: endpoint,
		input:    in,
		viewport: viewport.New(defaultWidth, defaultHeight-chromeHeight),
		spinner:  sp,
	}
	m.resize(defaultWidth, defaultHeight)
	return m
}

// Run starts the widget against transport and blocks until the user quits.
func Run(ctx context.Context, transport widget.Transport, endpoint string, opts ...tea.ProgramOption) error {
	s := &surface{}
	ctrl, err := widget.New(s.elements(), transport)
	if err != nil {
		return err
	}

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(newModel(ctx, ctrl, s, endpoint), opts...)
	// Send from inside Update would block the event loop.
	s.setNotify(func() { go p.Send(refreshMsg{}) })

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "tui: run program")
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if cmd, handled := m.handleKey(msg); handled {
			cmds = append(cmds, cmd)
		} else if m.open {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case refreshMsg:
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	cmds = append(cmds, m.sync())
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if !m.open {
		switch msg.Type {
		case tea.KeyEnter, tea.KeyCtrlO, tea.KeySpace:
			m.ctrl.OpenPanel()
		case tea.KeyEsc:
			return tea.Quit, true
		}
		return nil, true
	}

	switch msg.Type {
	case tea.KeyEsc:
		m.ctrl.ClosePanel()
	case tea.KeyCtrlL:
		m.ctrl.ClearHistory()
	case tea.KeyEnter:
		m.ctrl.Submit(m.ctx, m.input.Value())
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd, true
	default:
		return nil, false
	}
	return nil, true
}

// sync copies element state from the surface into the bubbles components.
func (m *Model) sync() tea.Cmd {
	st := m.surface.take()
	m.open = st.open
	m.typing = st.typing

	var cmd tea.Cmd
	if st.clear {
		m.input.Reset()
	}
	if st.focus {
		cmd = m.input.Focus()
	}
	if !m.open {
		m.input.Blur()
	}

	m.viewport.SetContent(renderMessages(st.messages, m.viewport.Width))
	if st.scroll {
		m.viewport.GotoBottom()
	}
	return cmd
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	inner := max(width-4, 10)
	m.viewport.Width = inner
	m.viewport.Height = max(height-chromeHeight, 3)
	m.input.Width = max(inner-3, 5)
}

func (m Model) View() string {
	if !m.open {
		return bubbleStyle.Render("Atlas") + "  " + helpStyle.Render("enter: open chat · esc: quit")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Atlas · intelligence layer"))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if m.typing {
		b.WriteString(m.spinner.View() + typingStyle.Render(" Atlas is typing"))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: send · ctrl+l: clear · esc: close · ctrl+c: quit"))
	return panelStyle.Width(max(m.width-2, 12)).Render(b.String())
}

func renderMessages(msgs []widget.Message, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	bubbleWidth := max(width*3/4, 10)

	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		body := strings.Join(widget.Lines(msg.Text), "\n")
		w := min(lipgloss.Width(body)+2, bubbleWidth)
		if msg.Sender == widget.SenderUser {
			block := userStyle.Width(w).Render(body)
			blocks = append(blocks, lipgloss.PlaceHorizontal(width, lipgloss.Right, block))
			continue
		}
		blocks = append(blocks, botStyle.Width(w).Render(body))
	}
	return strings.Join(blocks, "\n")
}
