package store

import (
	"context"

	"github.com/RezaEskandarii/datafire/types"
)

// ExecutionStore is the append-only record of firing attempts.
type ExecutionStore interface {
	// Append inserts a record and returns its ID.
	Append(ctx context.Context, exec *types.Execution) (int64, error)

	// MaxBatchNo returns the highest recorded batch number of a task, or 0.
	MaxBatchNo(ctx context.Context, taskID int64) (int64, error)

	// RecentOutcomes returns the success flags of the n latest records,
	// newest first.
	RecentOutcomes(ctx context.Context, taskID int64, n int) ([]bool, error)

	// ListByTask returns up to limit records, newest first.
	ListByTask(ctx context.Context, taskID int64, limit int) ([]types.Execution, error)
}
