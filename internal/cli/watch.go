package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gepa-next/innerloop/internal/cli/tui"
	"github.com/gepa-next/innerloop/internal/client"
	"github.com/gepa-next/innerloop/internal/events"
)

// NewWatchCmd creates the 'watch' command for attaching to a job's event
// stream.
// Args: job-id (required)
// Flags: --from (int64, default 0) - event id to resume from
//
//	--json - force JSON line output even on a TTY
func NewWatchCmd(a *App) *cobra.Command {
	var (
		fromID    int64
		forceJSON bool
	)

	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Attach to a job's event stream",
		Long: `Watch events from a job in real-time.

Use --from to resume from a specific event id, allowing reconnection
after network interruption without missing events. When stdout is not
a terminal (or --json is set), events are printed as JSON lines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			c := a.apiClient()

			if forceJSON || !term.IsTerminal(int(os.Stdout.Fd())) {
				return watchJob(cmd.Context(), c, jobID, fromID, cmd.OutOrStdout())
			}
			return watchJobTUI(cmd.Context(), c, jobID, fromID)
		},
	}

	cmd.Flags().Int64Var(&fromID, "from", 0, "Resume from event id")
	cmd.Flags().BoolVar(&forceJSON, "json", false, "Print events as JSON lines")

	return cmd
}

// watchJob streams events as JSON lines, one envelope per line.
func watchJob(ctx context.Context, c *client.Client, jobID string, fromID int64, out io.Writer) error {
	return c.Stream(ctx, jobID, fromID, func(env events.Envelope) error {
		raw, err := env.Encode()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(raw))
		return err
	})
}

// watchJobTUI renders the stream in a live terminal UI.
func watchJobTUI(ctx context.Context, c *client.Client, jobID string, fromID int64) error {
	model := tui.NewModel(jobID)
	program := tea.NewProgram(model, tea.WithContext(ctx))

	streamErr := make(chan error, 1)
	go func() {
		err := c.Stream(ctx, jobID, fromID, func(env events.Envelope) error {
			program.Send(tui.EventMsg{Envelope: env})
			return nil
		})
		program.Send(tui.StreamClosedMsg{Err: err})
		streamErr <- err
	}()

	if _, err := program.Run(); err != nil {
		return err
	}
	select {
	case err := <-streamErr:
		return err
	default:
		return nil
	}
}
