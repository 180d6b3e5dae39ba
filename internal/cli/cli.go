// Package cli wires the innerloop commands: the server, job listing,
// live watching, submission, and cancellation.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gepa-next/innerloop/internal/client"
)

// App is the CLI application with its wired dependencies.
type App struct {
	rootCmd *cobra.Command

	// Persistent flags
	serverURL  string
	token      string
	configPath string

	// Version information
	version string
	commit  string
	date    string
}

// New creates the CLI application.
func New() *App {
	app := &App{}
	app.setupRootCmd()
	return app
}

// Execute runs the CLI application.
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

// SetVersion records build-time version information.
func (a *App) SetVersion(version, commit, date string) {
	a.version = version
	a.commit = commit
	a.date = date
}

func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "innerloop",
		Short: "Asynchronous optimization job server",
		Long: `innerloop runs prompt optimization jobs and streams their progress
as resumable server-sent events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	a.rootCmd.PersistentFlags().StringVar(&a.serverURL, "server", "http://127.0.0.1:8080",
		"Server base URL")
	a.rootCmd.PersistentFlags().StringVar(&a.token, "token", "",
		"Bearer token for authenticated servers")
	a.rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"Path to YAML config file (serve only)")

	a.rootCmd.AddCommand(
		NewServeCmd(a),
		NewSubmitCmd(a),
		NewJobsCmd(a),
		NewWatchCmd(a),
		NewCancelCmd(a),
		NewVersionCmd(a),
	)
}

// apiClient builds a client from the persistent flags.
func (a *App) apiClient() *client.Client {
	return client.New(a.serverURL, a.token)
}

// newLogger builds the process logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
