// Package tui renders the insight widget in a terminal: a single-line input,
// a submit affordance bound to Enter, a spinner while a request is in flight,
// and the resolved insight below.
package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"insight-agent/internal/domain"
	"insight-agent/internal/usecase"
)

// Requester is satisfied by *usecase.Requester.
type Requester interface {
	Submit(ctx context.Context, raw string) bool
	State() usecase.State
	Result() (domain.InsightResult, bool)
	CanSubmit(raw string) bool
}

// resolvedMsg is sent once a submission has settled. The requester's state
// and result are read back in View, so it carries nothing.
type resolvedMsg struct{}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2F3E2F"))
	subtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#78716C"))
	inputStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#D6D3D1")).Padding(0, 1)
	quoteStyle    = lipgloss.NewStyle().Italic(true).Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#A3B18A")).PaddingLeft(2).MarginTop(1)
	hintStyle = lipgloss.NewStyle().Faint(true)
)

type Model struct {
	ctx       context.Context
	requester Requester
	input     textinput.Model
	spinner   spinner.Model
	pending   bool
	width     int
}

func New(ctx context.Context, r Requester) Model {
	ti := textinput.New()
	ti.Placeholder = "Ex: Cansaço..."
	ti.CharLimit = 200
	ti.Width = 40
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{ctx: ctx, requester: r, input: ti, spinner: sp}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) busy() bool {
	return m.pending || m.requester.State() == usecase.StateBusy
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			value := m.input.Value()
			if m.busy() || !m.requester.CanSubmit(value) {
				return m, nil
			}
			m.pending = true
			return m, tea.Batch(m.spinner.Tick, m.submit(value))
		}
	case resolvedMsg:
		m.pending = false
		return m, nil
	case spinner.TickMsg:
		if !m.busy() {
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

func (m Model) submit(value string) tea.Cmd {
	ctx, r := m.ctx, m.requester
	return func() tea.Msg {
		r.Submit(ctx, value)
		return resolvedMsg{}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Insight do Momento"))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render("Como você se sente hoje? Digite uma palavra e receba uma reflexão."))
	b.WriteString("\n\n")

	affordance := "→"
	switch {
	case m.busy():
		affordance = m.spinner.View()
	case !m.requester.CanSubmit(m.input.Value()):
		affordance = hintStyle.Render("→")
	}
	b.WriteString(inputStyle.Render(m.input.View() + " " + affordance))
	b.WriteString("\n")

	if res, ok := m.requester.Result(); ok && !m.busy() {
		quote := quoteStyle
		if m.width > 8 {
			quote = quote.Width(m.width - 4)
		}
		b.WriteString(quote.Render("“" + res.Text + "”"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(hintStyle.Render("enter: enviar • esc: sair"))
	b.WriteString("\n")
	return b.String()
}
