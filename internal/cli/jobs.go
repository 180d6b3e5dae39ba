package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/gepa-next/innerloop/internal/client"
)

// NewJobsCmd creates the 'jobs' command for listing all jobs.
// Flags: --status (string, comma-separated filter)
func NewJobsCmd(a *App) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List all jobs",
		Long: `List all jobs known to the server, newest first.

Use --status to filter by job status (comma-separated values).
Valid statuses: pending, running, finished, failed, cancelled`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := a.apiClient().List(cmd.Context())
			if err != nil {
				return err
			}
			if statusFilter != "" {
				jobs = filterJobs(jobs, parseStatusFilter(statusFilter))
			}
			fmt.Fprint(cmd.OutOrStdout(), renderJobs(jobs))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (comma-separated)")

	return cmd
}

// parseStatusFilter splits comma-separated status values and trims whitespace.
func parseStatusFilter(filter string) []string {
	parts := strings.Split(filter, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func filterJobs(jobs []client.AdminJob, statuses []string) []client.AdminJob {
	want := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	out := make([]client.AdminJob, 0, len(jobs))
	for _, j := range jobs {
		if want[j.Status] {
			out = append(out, j)
		}
	}
	return out
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	statusStyles = map[string]lipgloss.Style{
		"pending":   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		"running":   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"finished":  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		"failed":    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		"cancelled": lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	}
)

func renderJobs(jobs []client.AdminJob) string {
	if len(jobs) == 0 {
		return dimStyle.Render("no jobs") + "\n"
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-28s %-10s %-21s %s", "JOB", "STATUS", "CREATED", "UPDATED")))
	b.WriteString("\n")
	for _, j := range jobs {
		status := j.Status
		if style, ok := statusStyles[j.Status]; ok {
			status = style.Render(fmt.Sprintf("%-10s", j.Status))
		}
		b.WriteString(fmt.Sprintf("%-28s %s %-21s %s\n",
			j.ID, status, formatTS(j.CreatedAt), formatTS(j.UpdatedAt)))
	}
	return b.String()
}

func formatTS(ts float64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(int64(ts), 0).UTC().Format("2006-01-02 15:04:05")
}
