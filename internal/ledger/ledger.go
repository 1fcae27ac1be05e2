// Package ledger records firing outcomes and enforces the consecutive
// failure rule.
package ledger

import (
	"context"
	"sync"

	"github.com/RezaEskandarii/datafire/internal/constants"
	"github.com/RezaEskandarii/datafire/internal/metrics"
	"github.com/RezaEskandarii/datafire/internal/store"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Stopper moves a task to stopped. The scheduler provides one that also
// blocks further claims for the task.
type Stopper interface {
	Stop(ctx context.Context, taskID int64, reason string) error
}

type Ledger struct {
	tasks      store.DataTaskStore
	executions store.ExecutionStore
	logger     *zap.SugaredLogger

	mu      sync.RWMutex
	stopper Stopper
}

func New(tasks store.DataTaskStore, executions store.ExecutionStore, logger *zap.SugaredLogger) *Ledger {
	return &Ledger{
		tasks:      tasks,
		executions: executions,
		logger:     logger,
		stopper:    tasks,
	}
}

// UseStopper replaces the default store-backed stopper.
func (l *Ledger) UseStopper(s Stopper) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopper = s
}

// NextBatchNumber is one more than the highest recorded batch, or 1.
func (l *Ledger) NextBatchNumber(ctx context.Context, taskID int64) (int64, error) {
	maxBatch, err := l.executions.MaxBatchNo(ctx, taskID)
	if err != nil {
		return 0, err
	}
	return maxBatch + 1, nil
}

// AllocateBatch reserves a batch number for a firing. Unlike NextBatchNumber
// it is safe when firings of the same task overlap.
func (l *Ledger) AllocateBatch(ctx context.Context, taskID int64) (int64, error) {
	return l.tasks.AllocateBatch(ctx, taskID)
}

// Record appends exec and, after a failure, applies the consecutive failure
// rule. It reports whether the task was stopped by this call.
func (l *Ledger) Record(ctx context.Context, exec *types.Execution) (bool, error) {
	if _, err := l.executions.Append(ctx, exec); err != nil {
		return false, err
	}
	if exec.Success {
		return false, nil
	}

	tripped, err := l.ConsecutiveFailures(ctx, exec.TaskID)
	if err != nil {
		return false, errors.Wrap(err, "evaluate consecutive failures")
	}
	if !tripped {
		return false, nil
	}

	l.mu.RLock()
	stopper := l.stopper
	l.mu.RUnlock()

	if err := stopper.Stop(ctx, exec.TaskID, constants.AutoStopReason); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrapf(err, "auto-stop task %d", exec.TaskID)
	}
	metrics.AutoStops.Inc()
	l.logger.Warnw("task auto-stopped",
		"task_id", exec.TaskID,
		"batch_no", exec.BatchNo,
		"reason", constants.AutoStopReason,
	)
	return true, nil
}

// RecentOutcomes returns the success flags of the n latest records, newest
// first.
func (l *Ledger) RecentOutcomes(ctx context.Context, taskID int64, n int) ([]bool, error) {
	return l.executions.RecentOutcomes(ctx, taskID, n)
}

// ConsecutiveFailures is true when the latest records, as many as the
// failure limit, exist and all failed.
func (l *Ledger) ConsecutiveFailures(ctx context.Context, taskID int64) (bool, error) {
	outcomes, err := l.RecentOutcomes(ctx, taskID, constants.ConsecutiveFailureLimit)
	if err != nil {
		return false, err
	}
	if len(outcomes) < constants.ConsecutiveFailureLimit {
		return false, nil
	}
	for _, ok := range outcomes {
		if ok {
			return false, nil
		}
	}
	return true, nil
}

// History lists the latest records of a task, newest first.
func (l *Ledger) History(ctx context.Context, taskID int64) ([]types.Execution, error) {
	return l.executions.ListByTask(ctx, taskID, constants.ExecutionHistoryLimit)
}
