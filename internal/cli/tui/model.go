// Package tui renders a job's live event stream in the terminal.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gepa-next/innerloop/internal/events"
)

const eventLimit = 200

// Model is the bubbletea model for watching one job.
type Model struct {
	JobID  string
	Styles Styles

	Status    string
	Events    []events.Envelope
	LastID    int64
	StartTime time.Time
	Width     int
	Height    int

	Done      bool
	Quitting  bool
	StreamErr error
}

// NewModel creates a watch model for the given job.
func NewModel(jobID string) *Model {
	return &Model{
		JobID:     jobID,
		Styles:    DefaultStyles(),
		Status:    "pending",
		StartTime: time.Now(),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tickCmd()
}

// TickMsg refreshes the elapsed timer once per second.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// EventMsg carries one envelope from the stream.
type EventMsg struct {
	Envelope events.Envelope
}

// StreamClosedMsg signals the stream ended, with its error if any.
type StreamClosedMsg struct {
	Err error
}
