// Package tui provides an interactive terminal UI for probe sessions.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/KilimcininKorOglu/pingkit/internal/probe"
	"github.com/KilimcininKorOglu/pingkit/internal/session"
)

// State represents the current state of the TUI.
type State int

const (
	StateRunning State = iota
	StateComplete
	StateError
)

// Model is the Bubble Tea model for the probe session TUI.
type Model struct {
	// Configuration
	target string
	config *session.Config
	opts   []session.Option
	width  int
	height int

	// State
	state     State
	outcomes  []probe.Outcome
	result    *session.Result
	err       error
	elapsed   time.Duration
	startTime time.Time

	// UI components
	spinner spinner.Model

	// Styles
	styles Styles

	// Channel for probe updates
	probeChan chan probe.Outcome

	ctx    context.Context
	cancel context.CancelFunc
}

// ProbeMsg is sent when a probe finishes.
type ProbeMsg struct {
	Outcome probe.Outcome
}

// CompleteMsg is sent when the session is complete.
type CompleteMsg struct {
	Result *session.Result
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Err error
}

// TickMsg is sent to update elapsed time.
type TickMsg time.Time

// New creates a new TUI model. The options are passed on to the session.
func New(target string, config *session.Config, opts ...session.Option) (*Model, error) {
	if config == nil {
		config = session.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ctx, cancel := context.WithCancel(context.Background())

	m := &Model{
		target:    target,
		config:    config,
		opts:      opts,
		state:     StateRunning,
		outcomes:  make([]probe.Outcome, 0, config.Count),
		spinner:   s,
		styles:    DefaultStyles(),
		width:     80,
		height:    24,
		startTime: time.Now(),
		probeChan: make(chan probe.Outcome, config.Count),
		ctx:       ctx,
		cancel:    cancel,
	}

	return m, nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.runSession(),
		m.tickCmd(),
		m.waitForProbe(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case TickMsg:
		m.elapsed = time.Since(m.startTime)
		if m.state == StateRunning {
			return m, m.tickCmd()
		}

	case ProbeMsg:
		if m.state == StateRunning {
			m.outcomes = append(m.outcomes, msg.Outcome)
		}
		return m, m.waitForProbe()

	case CompleteMsg:
		m.state = StateComplete
		m.result = msg.Result
		if msg.Result != nil {
			m.outcomes = msg.Result.Outcomes
		}

	case ErrorMsg:
		m.state = StateError
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	b.WriteString(m.renderProbes())

	b.WriteString("\n\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m Model) renderHeader() string {
	title := m.styles.Title.Render("pingkit")

	var status string
	switch m.state {
	case StateRunning:
		status = m.spinner.View() + fmt.Sprintf(" Probing... %d/%d", len(m.outcomes), m.config.Count)
	case StateComplete:
		status = m.styles.Success.Render("✓ Complete")
	case StateError:
		status = m.styles.Error.Render("✗ Error")
	}

	info := fmt.Sprintf("Target: %s | Method: %s", m.target, m.config.Method)
	if m.config.Method != probe.MethodICMP {
		info += fmt.Sprintf(" | Port: %d", m.config.Port)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.styles.Subtle.Render(info),
		status,
	)
}

func (m Model) renderProbes() string {
	if len(m.outcomes) == 0 {
		return m.styles.Subtle.Render("Waiting for responses...")
	}

	var rows []string

	header := fmt.Sprintf("%-5s %-12s %-15s %-12s %s",
		"Seq", "Result", "From", "RTT", "Detail")
	rows = append(rows, m.styles.Header.Render(header))
	rows = append(rows, m.styles.Subtle.Render(strings.Repeat("─", 72)))

	// Keep the newest rows when the window is short.
	outcomes := m.outcomes
	if limit := m.height - 10; limit > 0 && len(outcomes) > limit {
		outcomes = outcomes[len(outcomes)-limit:]
	}
	for _, out := range outcomes {
		rows = append(rows, m.renderProbeRow(out))
	}

	return strings.Join(rows, "\n")
}

func (m Model) renderProbeRow(out probe.Outcome) string {
	seq := fmt.Sprintf("%-5d", out.Seq)

	from := "*"
	if out.Peer != nil {
		from = out.Peer.String()
	}

	rtt := "*"
	var detail string
	var result string

	switch out.Kind {
	case probe.KindReply:
		rtt = fmt.Sprintf("%.3f ms", out.RTTMillis())
		result = m.styles.Success.Render(fmt.Sprintf("%-12s", out.Kind))
	case probe.KindUnreachable:
		detail = fmt.Sprintf("%s (code %d)", probe.UnreachableReason(out.Code), out.Code)
		result = m.styles.Unreachable.Render(fmt.Sprintf("%-12s", out.Kind))
	case probe.KindTimeout:
		result = m.styles.Timeout.Render(fmt.Sprintf("%-12s", out.Kind))
	default:
		result = m.styles.Warning.Render(fmt.Sprintf("%-12s", out.Kind))
	}

	return fmt.Sprintf("%s %s %s %s %s",
		m.styles.Seq.Render(seq),
		result,
		m.styles.IP.Render(fmt.Sprintf("%-15s", truncate(from, 15))),
		m.colorizeRTT(fmt.Sprintf("%-12s", rtt), out),
		m.styles.Subtle.Render(detail),
	)
}

// colorizeRTT applies color based on latency.
func (m Model) colorizeRTT(s string, out probe.Outcome) string {
	if out.Kind != probe.KindReply {
		return m.styles.Subtle.Render(s)
	}

	switch rtt := out.RTTMillis(); {
	case rtt < 50:
		return m.styles.RTTLow.Render(s)
	case rtt < 150:
		return m.styles.RTTMed.Render(s)
	default:
		return m.styles.RTTHigh.Render(s)
	}
}

func (m Model) renderFooter() string {
	var parts []string

	stats := session.Summarize(m.outcomes)
	if m.result != nil {
		stats = m.result.Statistics
	}

	parts = append(parts, fmt.Sprintf("Sent: %d", stats.Sent))
	parts = append(parts, fmt.Sprintf("Received: %d", stats.Received))
	if stats.Sent > 0 {
		parts = append(parts, fmt.Sprintf("Loss: %.0f%%", stats.LossPercent))
	}
	if stats.RTT != nil {
		parts = append(parts, fmt.Sprintf("Avg: %.2f ms", stats.RTT.Avg))
	}
	parts = append(parts, fmt.Sprintf("Elapsed: %s", m.elapsed.Round(100*time.Millisecond)))
	parts = append(parts, "Press 'q' to quit")

	return m.styles.StatusBar.Render(strings.Join(parts, " | "))
}

// runSession runs the probe session in the background.
func (m Model) runSession() tea.Cmd {
	return func() tea.Msg {
		config := *m.config
		config.OnProbe = func(out probe.Outcome) {
			select {
			case m.probeChan <- out:
			case <-m.ctx.Done():
			}
		}

		s, err := session.New(&config, m.opts...)
		if err != nil {
			return ErrorMsg{Err: err}
		}

		result, err := s.Run(m.ctx, m.target)
		if err != nil {
			if m.ctx.Err() != nil {
				// Quit by the user.
				return nil
			}
			return ErrorMsg{Err: err}
		}
		return CompleteMsg{Result: result}
	}
}

// waitForProbe waits for a probe outcome from the channel.
func (m Model) waitForProbe() tea.Cmd {
	return func() tea.Msg {
		select {
		case out := <-m.probeChan:
			return ProbeMsg{Outcome: out}
		case <-m.ctx.Done():
			return nil
		}
	}
}

// tickCmd returns a command that sends tick messages.
func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Close releases resources and stops a running session.
func (m *Model) Close() error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

// truncate truncates a string to maxLen.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
