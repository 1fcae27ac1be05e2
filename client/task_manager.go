package client

import (
	"context"
	"time"

	"github.com/RezaEskandarii/datafire/internal/agentclient"
	"github.com/RezaEskandarii/datafire/internal/ledger"
	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/internal/store"
	"github.com/RezaEskandarii/datafire/pgk/parser"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// ErrAgentUnavailable is returned when an executor agent fails its health
// check while a task or the agent itself is being saved.
var ErrAgentUnavailable = errors.New("executor agent is unavailable")

const cronHint = "use 5 fields (minute hour day month weekday) or 6 with leading seconds"

// TaskManager is the operator surface over data tasks. Configuration errors
// are rejected here and never reach the scheduler.
type TaskManager struct {
	tasks      store.DataTaskStore
	agents     store.AgentStore
	executor   agentclient.Executor
	scheduler  *DataTaskScheduler
	dispatcher *Dispatcher
	ledger     *ledger.Ledger
	logger     *zap.SugaredLogger
}

func NewTaskManager(tasks store.DataTaskStore, agents store.AgentStore, executor agentclient.Executor, scheduler *DataTaskScheduler, dispatcher *Dispatcher, l *ledger.Ledger, logger *zap.SugaredLogger) *TaskManager {
	return &TaskManager{
		tasks:      tasks,
		agents:     agents,
		executor:   executor,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		ledger:     l,
		logger:     logger,
	}
}

// Create validates and stores a task in the stopped state.
func (m *TaskManager) Create(ctx context.Context, task *types.DataTask) (int64, error) {
	if err := m.validate(ctx, task); err != nil {
		return 0, err
	}
	task.CronExpr = parser.Normalize(task.CronExpr)
	id, err := m.tasks.Create(ctx, task)
	if err != nil {
		return 0, errors.Wrap(err, "create task")
	}
	task.ID = id
	task.Status = state.StatusStopped
	m.logger.Infow("task created", "task_id", id, "name", task.Name, "kind", task.Kind)
	return id, nil
}

// Update rewrites a task's definition and keeps its status. Pending firings
// built from the old definition are dropped.
func (m *TaskManager) Update(ctx context.Context, task *types.DataTask) error {
	if _, err := m.tasks.Get(ctx, task.ID); err != nil {
		return err
	}
	if err := m.validate(ctx, task); err != nil {
		return err
	}
	task.CronExpr = parser.Normalize(task.CronExpr)
	return m.scheduler.whileStopping(task.ID, func() error {
		return m.tasks.Update(ctx, task)
	})
}

func (m *TaskManager) validate(ctx context.Context, task *types.DataTask) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if err := parser.Validate(task.CronExpr); err != nil {
		return errors.WithHint(err, cronHint)
	}
	return m.checkAgent(ctx, task.AgentID)
}

func (m *TaskManager) checkAgent(ctx context.Context, agentID int64) error {
	agent, err := m.agents.Get(ctx, agentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.Newf("executor agent %d does not exist", agentID)
		}
		return err
	}
	ok, err := m.executor.CheckHealth(ctx, agentclient.Endpoint{URL: agent.URL, Token: agent.Token})
	if err != nil || !ok {
		return errors.Wrapf(ErrAgentUnavailable, "agent %q at %s", agent.Name, agent.URL)
	}
	return nil
}

// Start makes a task eligible for scheduling. Starting a running task is a
// no-op.
func (m *TaskManager) Start(ctx context.Context, id int64) error {
	task, err := m.tasks.Get(ctx, id)
	if err != nil {
		return err
	}
	if task.IsRunning() {
		return nil
	}
	if !state.IsValidTaskTransition(task.Status, state.StatusRunning) {
		return errors.Newf("task %d cannot start from %s", id, task.Status)
	}
	if err := parser.Validate(task.CronExpr); err != nil {
		return errors.WithHint(err, cronHint)
	}
	if err := m.tasks.Start(ctx, id); err != nil {
		return err
	}
	m.logger.Infow("task started", "task_id", id)
	return nil
}

// Stop ends scheduling for a task. A batch already dispatching completes
// and is recorded.
func (m *TaskManager) Stop(ctx context.Context, id int64) error {
	if err := m.scheduler.Stop(ctx, id, ""); err != nil {
		return err
	}
	m.logger.Infow("task stopped", "task_id", id)
	return nil
}

func (m *TaskManager) Delete(ctx context.Context, id int64) error {
	if err := m.scheduler.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Infow("task deleted", "task_id", id)
	return nil
}

func (m *TaskManager) Get(ctx context.Context, id int64) (*types.DataTask, error) {
	return m.tasks.Get(ctx, id)
}

func (m *TaskManager) List(ctx context.Context, page, pageSize int, status state.TaskStatus) (*types.PaginationResult[types.DataTask], error) {
	return m.tasks.GetAll(ctx, page, pageSize, status)
}

// Executions lists the most recent firings of a task, newest first.
func (m *TaskManager) Executions(ctx context.Context, id int64) ([]types.Execution, error) {
	if _, err := m.tasks.Get(ctx, id); err != nil {
		return nil, err
	}
	return m.ledger.History(ctx, id)
}

// RunOnce fires a task immediately, whatever its status, with the current
// time as reference. The result counts toward the failure limit.
func (m *TaskManager) RunOnce(ctx context.Context, id int64) (*FiringResult, error) {
	task, err := m.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.dispatcher.Fire(ctx, task, time.Now())
}

// Counts returns the number of tasks per status.
func (m *TaskManager) Counts(ctx context.Context) (map[state.TaskStatus]int, error) {
	return m.tasks.CountAllTasksGroupedByStatus(ctx)
}
