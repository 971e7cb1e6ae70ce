// Package tui provides the Bubble Tea keying monitor.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ColonelBlimp/morsekey/internal/cw"
	"github.com/ColonelBlimp/morsekey/internal/keyer"
)

// historySize is how many transmissions stay on screen.
const historySize = 8

// TokenMsg carries one classified token.
type TokenMsg struct {
	Token    cw.Token
	Fragment string
}

// CommitMsg carries a finished transmission.
type CommitMsg struct {
	Transmission keyer.Transmission
}

// TimingMsg carries thresholds that have just taken effect.
type TimingMsg struct {
	Timing cw.Timing
}

// DoneMsg reports that the keyer stopped.
type DoneMsg struct {
	Err error
}

// Config is what the monitor shows besides keyer output.
type Config struct {
	Timing    cw.Timing
	Key       string
	CommitKey string
	ShowTable bool

	// Commit is called when enter is pressed in the monitor. Leave it nil
	// when the input has a commit key of its own.
	Commit func()
}

// Model implements the Bubble Tea keying monitor.
type Model struct {
	config Config

	width  int
	height int

	line    strings.Builder
	history []keyer.Transmission
	wpm     int
	marks   int

	done bool
	err  error
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	morseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	textStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	tableStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
)

// NewModel constructs a monitor model.
func NewModel(cfg Config) *Model {
	return &Model{config: cfg, wpm: cfg.Timing.WPM()}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "t":
			m.config.ShowTable = !m.config.ShowTable
		case "enter":
			if m.config.Commit != nil {
				m.config.Commit()
			}
		}
	case TokenMsg:
		m.line.WriteString(msg.Fragment)
		if msg.Token.IsMark() {
			m.marks++
		}
	case CommitMsg:
		m.line.Reset()
		m.wpm = msg.Transmission.WPM
		m.history = append(m.history, msg.Transmission)
		if len(m.history) > historySize {
			m.history = m.history[len(m.history)-historySize:]
		}
	case TimingMsg:
		m.config.Timing = msg.Timing
	case DoneMsg:
		m.done = true
		m.err = msg.Err
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	t := m.config.Timing
	b.WriteString(titleStyle.Render("morsekey"))
	b.WriteString(footerStyle.Render(fmt.Sprintf("  %d WPM · dit %v · char %v · word %v",
		m.wpm, t.DitLength, t.CharGap, t.WordGap)))
	b.WriteString("\n\n")

	b.WriteString(pendingStyle.Render("> "))
	b.WriteString(morseStyle.Render(m.line.String()))
	b.WriteString("\n\n")

	if len(m.history) == 0 {
		b.WriteString(pendingStyle.Render("nothing sent yet"))
		b.WriteString("\n")
	}
	for _, tx := range m.history {
		b.WriteString(m.renderTransmission(tx))
		b.WriteString("\n")
	}

	if m.config.ShowTable {
		b.WriteString("\n")
		b.WriteString(tableStyle.Render(cw.Table()))
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	if m.width == 0 {
		return b.String()
	}
	return lipgloss.NewStyle().Width(m.width).Render(b.String())
}

func (m *Model) renderTransmission(tx keyer.Transmission) string {
	text := strings.TrimSpace(tx.Text)
	if text == "" {
		text = "?"
	}
	return fmt.Sprintf("%s  %s  %s",
		pendingStyle.Render(tx.ID.String()[:8]),
		textStyle.Render(text),
		footerStyle.Render(strings.TrimSpace(tx.Morse)))
}

func (m *Model) renderFooter() string {
	if m.done {
		if m.err != nil {
			return errorStyle.Render("stopped: "+m.err.Error()) + footerStyle.Render(" · q quits")
		}
		return footerStyle.Render("input finished · q quits")
	}
	segments := []string{
		fmt.Sprintf("Use '%s' as on-key", m.config.Key),
	}
	if m.config.CommitKey != "" {
		segments = append(segments, m.config.CommitKey+" converts")
	}
	segments = append(segments, fmt.Sprintf("%d marks", m.marks), "t table", "q quits")
	return footerStyle.Render(strings.Join(segments, " · "))
}

// Listener forwards keyer output to a running program.
type Listener struct {
	send func(tea.Msg)
}

// NewListener returns a keyer listener that delivers messages through send,
// usually (*tea.Program).Send.
func NewListener(send func(tea.Msg)) *Listener {
	return &Listener{send: send}
}

// OnToken implements keyer.Listener.
func (l *Listener) OnToken(tok cw.Token, fragment string) {
	l.send(TokenMsg{Token: tok, Fragment: fragment})
}

// OnCommit implements keyer.Listener.
func (l *Listener) OnCommit(t keyer.Transmission) {
	l.send(CommitMsg{Transmission: t})
}

// OnTiming implements keyer.TimingListener.
func (l *Listener) OnTiming(t cw.Timing) {
	l.send(TimingMsg{Timing: t})
}
