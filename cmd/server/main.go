// Command server runs the tracker HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/InstallTracker/internal/api"
	"github.com/dharsanguruparan/InstallTracker/internal/app"
	"github.com/dharsanguruparan/InstallTracker/internal/config"
	"github.com/dharsanguruparan/InstallTracker/internal/logging"
)

// watchQuiet is how long the docs directory must stay still before a
// reconciliation pass runs.
const watchQuiet = 500 * time.Millisecond

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Config{Level: logging.LevelInfo, Format: logging.FormatText}).Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	// Context cancels on SIGINT/SIGTERM and drives every background loop.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := api.NewHub(logger)
	rt, err := app.Load(ctx, cfg, hub, logger)
	if err != nil {
		if app.IsUnavailable(err) {
			logger.Error("catalog unavailable, refusing to start", "error", err)
		} else {
			logger.Error("init tracker", "error", err)
		}
		os.Exit(1)
	}
	defer rt.Close()

	go func() {
		if err := rt.Tracker.Watch(ctx); err != nil {
			logger.Error("change subscription failed", "error", err)
		}
	}()
	if rt.Local != nil && cfg.WatchDocs {
		go func() {
			err := rt.Local.Watch(ctx, watchQuiet, func() {
				res := rt.Tracker.Reconcile(ctx)
				if res.Changed() {
					logger.Info("documents directory changed", "linked", len(res.Linked))
				}
			})
			if err != nil {
				logger.Error("documents watcher stopped", "error", err)
			}
		}()
	}

	opts := api.Options{
		Address:         cfg.Address,
		MaxUploadBytes:  cfg.MaxFileBytes(),
		ShutdownTimeout: cfg.ShutdownTimeout,
		Bucket:          cfg.Bucket,
	}
	if rt.Local != nil {
		opts.Public = rt.Local
	}
	if cfg.Mode == config.ModeRemote && cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		opts.Queue = client
	}

	srv := api.New(rt.Tracker, hub, opts, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
