package tui

import (
	"fmt"
	"strings"
	"time"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.Quitting {
		return ""
	}

	var b strings.Builder

	elapsed := time.Since(m.StartTime).Round(time.Second)
	b.WriteString(m.Styles.Title.Render("innerloop watch"))
	b.WriteString("  ")
	b.WriteString(m.Styles.Timer.Render(elapsed.String()))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("job %s  %s  last event %d\n\n",
		m.JobID,
		m.Styles.statusStyle(m.Status).Render(m.Status),
		m.LastID,
	))

	visible := m.Events
	if max := m.visibleEventRows(); len(visible) > max {
		visible = visible[len(visible)-max:]
	}
	for _, env := range visible {
		data := string(env.Data)
		if len(data) > 80 {
			data = data[:77] + "..."
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			m.Styles.EventID.Render(fmt.Sprintf("%4d", env.ID)),
			m.Styles.EventType.Render(fmt.Sprintf("%-10s", string(env.Type))),
			m.Styles.EventData.Render(data),
		))
	}

	b.WriteString(m.Styles.Footer.Render(
		m.Styles.FooterKey.Render("q") + " quit",
	))
	b.WriteString("\n")
	return b.String()
}

// visibleEventRows bounds the event list to the terminal height, leaving
// room for the header and footer.
func (m *Model) visibleEventRows() int {
	if m.Height == 0 {
		return eventLimit
	}
	rows := m.Height - 7
	if rows < 1 {
		rows = 1
	}
	return rows
}
