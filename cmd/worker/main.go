// Command worker processes queued maintenance tasks and schedules the
// periodic reconciliation pass.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/InstallTracker/internal/app"
	"github.com/dharsanguruparan/InstallTracker/internal/config"
	"github.com/dharsanguruparan/InstallTracker/internal/logging"
	"github.com/dharsanguruparan/InstallTracker/internal/queue"
	"github.com/dharsanguruparan/InstallTracker/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Config{Level: logging.LevelInfo, Format: logging.FormatText}).Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)

	rt, err := app.Load(ctx, cfg, nil, logger)
	if err != nil {
		logger.Error("init tracker", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	redis := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	server := asynq.NewServer(redis, asynq.Config{
		Concurrency: cfg.Workers,
		Logger:      asynqLogger{logger.With("component", "asynq")},
	})
	processor := worker.NewProcessor(rt.Tracker, logger)

	scheduler := asynq.NewScheduler(redis, &asynq.SchedulerOpts{
		Logger: asynqLogger{logger.With("component", "scheduler")},
	})
	if cfg.ReconcileSchedule != "" {
		task, err := queue.NewTask(queue.ReconcileTask, "scheduler")
		if err != nil {
			logger.Error("build scheduled task", "error", err)
			os.Exit(1)
		}
		if _, err := scheduler.Register(cfg.ReconcileSchedule, task); err != nil {
			logger.Error("register schedule", "schedule", cfg.ReconcileSchedule, "error", err)
			os.Exit(1)
		}
		if err := scheduler.Start(); err != nil {
			logger.Error("start scheduler", "error", err)
			os.Exit(1)
		}
		logger.Info("reconcile scheduled", "schedule", cfg.ReconcileSchedule)
	}

	go func() {
		<-ctx.Done()
		if cfg.ReconcileSchedule != "" {
			scheduler.Shutdown()
		}
		server.Shutdown()
	}()

	if err := server.Run(processor.Handler()); err != nil {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
