package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gepa-next/innerloop/internal/config"
	"github.com/gepa-next/innerloop/internal/driver"
	"github.com/gepa-next/innerloop/internal/metrics"
	"github.com/gepa-next/innerloop/internal/notify"
	"github.com/gepa-next/innerloop/internal/registry"
	"github.com/gepa-next/innerloop/internal/store"
	"github.com/gepa-next/innerloop/internal/web"
)

const shutdownGrace = 10 * time.Second

// NewServeCmd creates the 'serve' command that runs the job server until
// SIGINT or SIGTERM.
func NewServeCmd(a *App) *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the optimization job server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			return runServer(cmd.Context(), cfg, a.version)
		},
	}

	cmd.Flags().StringVar(&listenAddr, "listen", "", "Override the listen address")

	return cmd
}

func runServer(ctx context.Context, cfg *config.Config, version string) error {
	logger := newLogger(cfg.LogLevel)

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	col := metrics.NewCollector()

	opt := driver.NewOptimizer(cfg.Optimizer, cfg.Jobs.MaxIterations, nil)
	opt.ObserveIteration = col.Iteration.Observe

	var opts []registry.Option
	if cfg.WebhookURL != "" {
		opts = append(opts, registry.WithNotifier(notify.NewWebhook(cfg.WebhookURL, logger)))
	}
	reg := registry.New(cfg, st, col, opt, logger, opts...)

	srv := web.New(cfg, reg, st, col, logger, version)
	if err := srv.Start(); err != nil {
		reg.Shutdown()
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	reg.Shutdown()
	return nil
}
