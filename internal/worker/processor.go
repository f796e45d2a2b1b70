// Package worker handles the maintenance tasks defined in queue.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/InstallTracker/internal/queue"
	"github.com/dharsanguruparan/InstallTracker/internal/tracker"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	tracker *tracker.Tracker
	logger  *slog.Logger
}

// NewProcessor constructs a worker processor around a loaded tracker.
func NewProcessor(tr *tracker.Tracker, logger *slog.Logger) *Processor {
	return &Processor{tracker: tr, logger: logger.With("component", "worker")}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ReconcileTask, p.handleReconcile)
	mux.HandleFunc(queue.RegenerateTask, p.handleRegenerate)
	return mux
}

func (p *Processor) handleReconcile(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	// Other processes may have changed the catalog since the last pass.
	if err := p.tracker.Resync(ctx); err != nil {
		p.logger.Error("reconcile failed", "request_id", payload.RequestID, "error", err)
		return err
	}
	res := p.tracker.Reconcile(ctx)
	p.logger.Info("reconcile task done",
		"request_id", payload.RequestID,
		"requested_by", payload.RequestedBy,
		"orphans", res.Orphans,
		"linked", len(res.Linked),
		"unmatched", len(res.Unmatched),
	)
	return nil
}

func (p *Processor) handleRegenerate(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if err := p.tracker.Resync(ctx); err != nil {
		return err
	}
	n, err := p.tracker.Regenerate(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("manifest task done", "request_id", payload.RequestID, "requested_by", payload.RequestedBy, "files", n)
	return nil
}
