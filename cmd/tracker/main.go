// Command tracker is the operator CLI: one-off maintenance passes, exports
// and queue triggers against the configured catalog.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/InstallTracker/internal/app"
	"github.com/dharsanguruparan/InstallTracker/internal/config"
	"github.com/dharsanguruparan/InstallTracker/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tracker: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "HYROS install tracker CLI",
		Long: `tracker runs maintenance against the install catalog: reconciling orphaned documents,
rebuilding the documentation index, exporting every document and queueing work for the worker.
Settings come from TRACKER_* environment variables and the optional TRACKER_CONFIG file.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newListCmd(),
		newReconcileCmd(),
		newReindexCmd(),
		newExportCmd(),
		newEnqueueCmd(),
		newMigrateCmd(),
	)
	return cmd
}

// withRuntime loads config and the tracker, runs fn, then releases resources.
func withRuntime(ctx context.Context, fn func(cfg *config.Config, rt *app.Runtime) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	rt, err := app.Load(ctx, cfg, nil, logging.New(cfg.Logging))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(cfg, rt)
}
