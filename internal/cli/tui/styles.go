package tui

import "github.com/charmbracelet/lipgloss"

// Styles contains all lipgloss styles for the watch TUI.
type Styles struct {
	Title lipgloss.Style
	Timer lipgloss.Style

	StatusPending   lipgloss.Style
	StatusRunning   lipgloss.Style
	StatusFinished  lipgloss.Style
	StatusFailed    lipgloss.Style
	StatusCancelled lipgloss.Style

	EventID   lipgloss.Style
	EventType lipgloss.Style
	EventData lipgloss.Style

	Footer    lipgloss.Style
	FooterKey lipgloss.Style
}

// DefaultStyles returns the default TUI styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Timer: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),

		StatusPending:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		StatusRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		StatusFinished:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		StatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		StatusCancelled: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),

		EventID:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		EventType: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("250")),
		EventData: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),

		Footer:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")).MarginTop(1),
		FooterKey: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	}
}

// statusStyle picks the style for a job status string.
func (s Styles) statusStyle(status string) lipgloss.Style {
	switch status {
	case "running":
		return s.StatusRunning
	case "finished":
		return s.StatusFinished
	case "failed":
		return s.StatusFailed
	case "cancelled", "shutdown":
		return s.StatusCancelled
	default:
		return s.StatusPending
	}
}
