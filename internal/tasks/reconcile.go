package tasks

import (
	"context"
	"fmt"
	"log"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/shelfsync/internal/reconcile"
)

const ReconcileQueue = "reconcile"

// ReconcileTask runs one reconciliation pass. Empty fields fall back to the
// configured direction and policy.
type ReconcileTask struct {
	Direction string `json:"direction,omitempty"`
	Policy    string `json:"policy,omitempty"`
}

func (t ReconcileTask) Config() backlite.QueueConfig {
	return reconcileQueueConfig(DefaultConfig())
}

// reconcileQueueConfig allows retries: a pass that finds a store busy or
// unavailable is retried after the backoff.
func reconcileQueueConfig(s Config) backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        ReconcileQueue,
		MaxAttempts: s.MaxRetries,
		Backoff:     s.RetryDelay,
		Timeout:     s.TaskTimeout,
		Retention: &backlite.Retention{
			Duration:   s.RetentionDuration,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func ReconcileProcessor(runner reconcile.Runner, defaults ReconcileTask) backlite.QueueProcessor[ReconcileTask] {
	return func(ctx context.Context, task ReconcileTask) error {
		if runner == nil {
			return fmt.Errorf("reconcile engine not configured")
		}
		if task.Direction == "" {
			task.Direction = defaults.Direction
		}
		if task.Policy == "" {
			task.Policy = defaults.Policy
		}
		direction, err := reconcile.ParseDirection(task.Direction)
		if err != nil {
			return err
		}
		policy, err := reconcile.ParsePolicy(task.Policy)
		if err != nil {
			return err
		}

		res, err := runner.Run(ctx, direction, policy)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", direction, err)
		}
		log.Printf("Tasks: reconcile %s done: %d synced, %d conflicted, %d failed, %d deleted",
			direction, res.Synced, res.Conflicted, res.Failed, res.Deleted)
		return nil
	}
}

func NewReconcileQueue(runner reconcile.Runner, defaults ReconcileTask, cfg Config) backlite.Queue {
	return configure(backlite.NewQueue(ReconcileProcessor(runner, defaults)), reconcileQueueConfig(cfg.withDefaults()))
}
