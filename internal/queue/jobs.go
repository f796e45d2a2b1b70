// Package queue defines the background maintenance tasks shared by the
// server, the worker and the CLI.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// ReconcileTask runs a reconciliation pass, regenerating the manifest
	// when it links anything.
	ReconcileTask = "catalog:reconcile"
	// RegenerateTask rebuilds index.txt.
	RegenerateTask = "manifest:regenerate"

	taskTimeout = 2 * time.Minute
)

// Payload identifies who asked for a task.
type Payload struct {
	RequestID   string `json:"request_id"`
	RequestedBy string `json:"requested_by"`
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewTask builds a task of the given type. Maintenance tasks are never
// retried; the next scheduled run picks up where a failed one left off.
func NewTask(typename, requestedBy string) (*asynq.Task, error) {
	data, err := json.Marshal(Payload{RequestID: uuid.NewString(), RequestedBy: requestedBy})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(typename, data, asynq.MaxRetry(0), asynq.Timeout(taskTimeout)), nil
}

// Enqueue schedules a task for immediate processing and returns its id.
func Enqueue(ctx context.Context, client Enqueuer, typename, requestedBy string) (string, error) {
	task, err := NewTask(typename, requestedBy)
	if err != nil {
		return "", err
	}
	info, err := client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue %s task: %w", typename, err)
	}
	return info.ID, nil
}

// DecodePayload reads a task payload. Empty payloads are allowed so tasks
// registered by the scheduler without data still work.
func DecodePayload(task *asynq.Task) (Payload, error) {
	var p Payload
	if len(task.Payload()) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
