package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gepa-next/innerloop/internal/events"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.Quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case TickMsg:
		if m.Done {
			return m, nil
		}
		return m, tickCmd()

	case EventMsg:
		m.apply(msg.Envelope)
		if m.Done {
			return m, tea.Quit
		}

	case StreamClosedMsg:
		m.Done = true
		m.StreamErr = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) apply(env events.Envelope) {
	m.Events = append(m.Events, env)
	if len(m.Events) > eventLimit {
		m.Events = m.Events[len(m.Events)-eventLimit:]
	}
	if env.ID > m.LastID {
		m.LastID = env.ID
	}

	switch env.Type {
	case events.Started:
		m.Status = "running"
	case events.Finished:
		m.Status = "finished"
	case events.Failed:
		m.Status = "failed"
	case events.Cancelled:
		m.Status = "cancelled"
	case events.Shutdown:
		m.Status = "shutdown"
	}
	if env.IsTerminal() {
		m.Done = true
	}
}
