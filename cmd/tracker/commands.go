package main

import (
	"bytes"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/InstallTracker/internal/app"
	"github.com/dharsanguruparan/InstallTracker/internal/config"
	"github.com/dharsanguruparan/InstallTracker/internal/database"
	"github.com/dharsanguruparan/InstallTracker/internal/logging"
	"github.com/dharsanguruparan/InstallTracker/internal/model"
	"github.com/dharsanguruparan/InstallTracker/internal/queue"
	"github.com/dharsanguruparan/InstallTracker/internal/tracker"
)

func newListCmd() *cobra.Command {
	var (
		filter tracker.Filter
		status string
		tab    string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print installs with optional filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = model.Status(status)
			if status != "" && !filter.Status.Valid() {
				return fmt.Errorf("invalid status %q", status)
			}
			if filter.Version != "" && !filter.Version.Valid() {
				return fmt.Errorf("invalid version %q", filter.Version)
			}
			return withRuntime(cmd.Context(), func(_ *config.Config, rt *app.Runtime) error {
				records := rt.Tracker.Installs(filter)
				switch t := tracker.Tab(tab); t {
				case "":
				case tracker.TabCritical, tracker.TabSecondary:
					records = t.Select(records)
				default:
					return fmt.Errorf("invalid tab %q", tab)
				}
				return printInstalls(cmd, records)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (good, bad, unchecked)")
	cmd.Flags().StringVar((*string)(&filter.Version), "version", "", "Filter by version (v1, v2)")
	cmd.Flags().StringVar(&filter.Category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&filter.Search, "search", "", "Case-insensitive name search")
	cmd.Flags().StringVar(&tab, "tab", "", "Restrict to the critical or secondary tab")
	return cmd
}

func printInstalls(cmd *cobra.Command, records []model.Install) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tVERSION\tSTATUS\tCHECKED\tFILE")
	for _, r := range records {
		checked, file := "-", "-"
		if r.LastChecked != nil {
			checked = r.LastChecked.String()
		}
		if r.File != nil {
			file = r.File.Name
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Name, r.Category, r.Version, r.Status, checked, file)
	}
	return w.Flush()
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Link orphaned documents to matching installs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(_ *config.Config, rt *app.Runtime) error {
				// Load already ran one pass; a second reports what is left.
				res := rt.Tracker.Reconcile(cmd.Context())
				for _, l := range res.Linked {
					fmt.Fprintf(cmd.OutOrStdout(), "linked %s -> %d %s\n", l.File, l.ID, l.Record)
				}
				for _, name := range res.Unmatched {
					fmt.Fprintf(cmd.OutOrStdout(), "unmatched %s\n", name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d orphans, %d linked, %d unmatched\n", res.Orphans, len(res.Linked), len(res.Unmatched))
				return nil
			})
		},
	}
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild " + model.ManifestName,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(_ *config.Config, rt *app.Runtime) error {
				n, err := rt.Tracker.Regenerate(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s regenerated (%d documents)\n", model.ManifestName, n)
				return nil
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download every linked document as a zip archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(_ *config.Config, rt *app.Runtime) error {
				var buf bytes.Buffer
				n, err := rt.Tracker.DownloadAll(cmd.Context(), &buf)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("write archive: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d documents to %s\n", n, out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", model.ArchiveName, "Archive path")
	return cmd
}

func newEnqueueCmd() *cobra.Command {
	tasks := map[string]string{
		"reconcile": queue.ReconcileTask,
		"reindex":   queue.RegenerateTask,
	}
	return &cobra.Command{
		Use:       "enqueue {reconcile|reindex}",
		Short:     "Queue a maintenance task for the worker",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"reconcile", "reindex"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := asynq.NewClient(asynq.RedisClientOpt{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			defer client.Close()
			id, err := queue.Enqueue(cmd.Context(), client, tasks[args[0]], "cli")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s as %s\n", tasks[args[0]], id)
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations (remote mode)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Mode != config.ModeRemote {
				return fmt.Errorf("migrate needs remote mode, current mode is %s", cfg.Mode)
			}
			return database.Migrate(cfg.DatabaseURL, logging.New(cfg.Logging))
		},
	}
}
