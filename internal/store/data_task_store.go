package store

import (
	"context"

	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/types"
)

// DataTaskStore defines the interface for managing data tasks in DB.
type DataTaskStore interface {
	// Create inserts a stopped task and returns its ID.
	Create(ctx context.Context, task *types.DataTask) (int64, error)

	// Update rewrites the editable fields of a task. Status is left unchanged.
	Update(ctx context.Context, task *types.DataTask) error

	// Get returns ErrNotFound when the task does not exist.
	Get(ctx context.Context, id int64) (*types.DataTask, error)

	GetAll(ctx context.Context, page int, pageSize int, status state.TaskStatus) (*types.PaginationResult[types.DataTask], error)

	// ListRunning returns every task with status running.
	ListRunning(ctx context.Context) ([]types.DataTask, error)

	// Start marks the task running and clears its stop reason.
	Start(ctx context.Context, id int64) error

	// Stop marks the task stopped with the given reason, which may be empty.
	Stop(ctx context.Context, id int64, reason string) error

	Delete(ctx context.Context, id int64) error

	// AllocateBatch atomically reserves the next batch number of a task. It
	// never returns a number at or below one already recorded.
	AllocateBatch(ctx context.Context, id int64) (int64, error)

	CountAllTasksGroupedByStatus(ctx context.Context) (map[state.TaskStatus]int, error)

	CountByAgent(ctx context.Context, agentID int64) (int, error)
}
