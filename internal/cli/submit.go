package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gepa-next/innerloop/internal/client"
)

// NewSubmitCmd creates the 'submit' command for starting an optimization.
func NewSubmitCmd(a *App) *cobra.Command {
	var (
		iterations     int
		idempotencyKey string
		objectives     string
		watch          bool
	)

	cmd := &cobra.Command{
		Use:   "submit <prompt>",
		Short: "Submit an optimization job",
		Long: `Submit a prompt for optimization and print the job id.

With --watch the command attaches to the job's event stream and follows
it until the job reaches a terminal state.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := client.SubmitRequest{Prompt: args[0]}
			if objectives != "" {
				req.Objectives = parseStatusFilter(objectives)
			}

			c := a.apiClient()
			jobID, err := c.Submit(cmd.Context(), req, iterations, idempotencyKey)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), jobID)

			if !watch {
				return nil
			}
			return watchJob(cmd.Context(), c, jobID, 0, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&iterations, "iterations", 1, "Number of optimization iterations")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "De-duplicate submissions sharing this key")
	cmd.Flags().StringVar(&objectives, "objectives", "", "Objectives to score (comma-separated: brevity, diversity, coverage)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Follow the job's event stream")

	return cmd
}

// NewCancelCmd creates the 'cancel' command.
func NewCancelCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := a.apiClient().Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", state.JobID, strings.ToLower(state.Status))
			return nil
		},
	}
}
