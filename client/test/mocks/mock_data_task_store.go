package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/internal/store"
	"github.com/RezaEskandarii/datafire/types"
)

// MockDataTaskStore is a mock implementation of store.DataTaskStore for testing.
// Methods without a Func override operate on an in-memory task map.
type MockDataTaskStore struct {
	CreateFunc        func(ctx context.Context, task *types.DataTask) (int64, error)
	UpdateFunc        func(ctx context.Context, task *types.DataTask) error
	GetFunc           func(ctx context.Context, id int64) (*types.DataTask, error)
	GetAllFunc        func(ctx context.Context, page int, pageSize int, status state.TaskStatus) (*types.PaginationResult[types.DataTask], error)
	ListRunningFunc   func(ctx context.Context) ([]types.DataTask, error)
	StartFunc         func(ctx context.Context, id int64) error
	StopFunc          func(ctx context.Context, id int64, reason string) error
	DeleteFunc        func(ctx context.Context, id int64) error
	AllocateBatchFunc func(ctx context.Context, id int64) (int64, error)
	CountFunc         func(ctx context.Context) (map[state.TaskStatus]int, error)
	CountByAgentFunc  func(ctx context.Context, agentID int64) (int, error)

	mu     sync.Mutex
	nextID int64
	tasks  map[int64]types.DataTask
}

// NewMockDataTaskStore returns a store seeded with tasks, keyed by their IDs.
func NewMockDataTaskStore(tasks ...types.DataTask) *MockDataTaskStore {
	m := &MockDataTaskStore{tasks: make(map[int64]types.DataTask)}
	for _, t := range tasks {
		m.tasks[t.ID] = t
		if t.ID > m.nextID {
			m.nextID = t.ID
		}
	}
	return m
}

func (m *MockDataTaskStore) init() {
	if m.tasks == nil {
		m.tasks = make(map[int64]types.DataTask)
	}
}

func (m *MockDataTaskStore) Create(ctx context.Context, task *types.DataTask) (int64, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	m.nextID++
	t := *task
	t.ID = m.nextID
	t.Status = state.StatusStopped
	m.tasks[t.ID] = t
	return t.ID, nil
}

func (m *MockDataTaskStore) Update(ctx context.Context, task *types.DataTask) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	old, ok := m.tasks[task.ID]
	if !ok {
		return store.ErrNotFound
	}
	t := *task
	t.Status = old.Status
	t.StopReason = old.StopReason
	t.LastBatchNo = old.LastBatchNo
	m.tasks[t.ID] = t
	return nil
}

func (m *MockDataTaskStore) Get(ctx context.Context, id int64) (*types.DataTask, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	t, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func (m *MockDataTaskStore) GetAll(ctx context.Context, page int, pageSize int, status state.TaskStatus) (*types.PaginationResult[types.DataTask], error) {
	if m.GetAllFunc != nil {
		return m.GetAllFunc(ctx, page, pageSize, status)
	}
	var items []types.DataTask
	for _, t := range m.sorted() {
		if status == "" || t.Status == status {
			items = append(items, t)
		}
	}
	return types.NewPaginationResult(items, len(items), 1, len(items)), nil
}

func (m *MockDataTaskStore) ListRunning(ctx context.Context) ([]types.DataTask, error) {
	if m.ListRunningFunc != nil {
		return m.ListRunningFunc(ctx)
	}
	var running []types.DataTask
	for _, t := range m.sorted() {
		if t.Status == state.StatusRunning {
			running = append(running, t)
		}
	}
	return running, nil
}

func (m *MockDataTaskStore) Start(ctx context.Context, id int64) error {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, id)
	}
	return m.setStatus(id, state.StatusRunning, "")
}

func (m *MockDataTaskStore) Stop(ctx context.Context, id int64, reason string) error {
	if m.StopFunc != nil {
		return m.StopFunc(ctx, id, reason)
	}
	return m.setStatus(id, state.StatusStopped, reason)
}

func (m *MockDataTaskStore) Delete(ctx context.Context, id int64) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	if _, ok := m.tasks[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *MockDataTaskStore) AllocateBatch(ctx context.Context, id int64) (int64, error) {
	if m.AllocateBatchFunc != nil {
		return m.AllocateBatchFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	t, ok := m.tasks[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	t.LastBatchNo++
	m.tasks[id] = t
	return t.LastBatchNo, nil
}

func (m *MockDataTaskStore) CountAllTasksGroupedByStatus(ctx context.Context) (map[state.TaskStatus]int, error) {
	if m.CountFunc != nil {
		return m.CountFunc(ctx)
	}
	counts := map[state.TaskStatus]int{state.StatusStopped: 0, state.StatusRunning: 0}
	for _, t := range m.sorted() {
		counts[t.Status]++
	}
	return counts, nil
}

func (m *MockDataTaskStore) CountByAgent(ctx context.Context, agentID int64) (int, error) {
	if m.CountByAgentFunc != nil {
		return m.CountByAgentFunc(ctx, agentID)
	}
	n := 0
	for _, t := range m.sorted() {
		if t.AgentID == agentID {
			n++
		}
	}
	return n, nil
}

// Status returns the stored status and stop reason of a task.
func (m *MockDataTaskStore) Status(id int64) (state.TaskStatus, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[id]
	reason := ""
	if t.StopReason != nil {
		reason = *t.StopReason
	}
	return t.Status, reason
}

func (m *MockDataTaskStore) setStatus(id int64, status state.TaskStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.init()
	t, ok := m.tasks[id]
	if !ok {
		return store.ErrNotFound
	}
	t.Status = status
	t.StopReason = nil
	if reason != "" {
		t.StopReason = &reason
	}
	m.tasks[id] = t
	return nil
}

func (m *MockDataTaskStore) sorted() []types.DataTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.DataTask, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
