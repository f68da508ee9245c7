package monitor

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the traffic view until the user quits, ctx is cancelled or
// done delivers the session's exit error. The returned error is the
// session's, if it ended on its own.
func Run(ctx context.Context, source StatsSource, done <-chan error, interval time.Duration) error {
	model := NewModel(source, interval)
	model.width = TerminalWidth()

	p := tea.NewProgram(model, tea.WithAltScreen())

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-stop:
		case err := <-done:
			p.Send(SessionEndedMsg{Err: err})
		case <-ctx.Done():
			p.Quit()
		}
	}()

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	if m, ok := final.(Model); ok {
		if ended, endErr := m.Ended(); ended {
			return endErr
		}
	}
	return ctx.Err()
}
