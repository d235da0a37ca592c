package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/KilimcininKorOglu/pingkit/internal/session"
)

// Run starts the TUI for target and blocks until the user quits. It
// returns the session result when the session completed.
func Run(target string, config *session.Config, opts ...session.Option) (*session.Result, error) {
	model, err := New(target, config, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create TUI model: %w", err)
	}
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("TUI error: %w", err)
	}

	if m, ok := finalModel.(Model); ok {
		if m.state == StateError && m.err != nil {
			return nil, m.err
		}
		return m.result, nil
	}

	return nil, nil
}
