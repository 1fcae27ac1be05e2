package mocks

import (
	"context"
	"sync"

	"github.com/RezaEskandarii/datafire/types"
)

// MockExecutionStore is a mock implementation of store.ExecutionStore for testing.
// Without overrides it appends to an in-memory list.
type MockExecutionStore struct {
	AppendFunc         func(ctx context.Context, exec *types.Execution) (int64, error)
	MaxBatchNoFunc     func(ctx context.Context, taskID int64) (int64, error)
	RecentOutcomesFunc func(ctx context.Context, taskID int64, n int) ([]bool, error)
	ListByTaskFunc     func(ctx context.Context, taskID int64, limit int) ([]types.Execution, error)

	mu      sync.Mutex
	records []types.Execution
}

func (m *MockExecutionStore) Append(ctx context.Context, exec *types.Execution) (int64, error) {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, exec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := *exec
	e.ID = int64(len(m.records) + 1)
	m.records = append(m.records, e)
	return e.ID, nil
}

func (m *MockExecutionStore) MaxBatchNo(ctx context.Context, taskID int64) (int64, error) {
	if m.MaxBatchNoFunc != nil {
		return m.MaxBatchNoFunc(ctx, taskID)
	}
	var maxBatch int64
	for _, e := range m.Records(taskID) {
		if e.BatchNo > maxBatch {
			maxBatch = e.BatchNo
		}
	}
	return maxBatch, nil
}

func (m *MockExecutionStore) RecentOutcomes(ctx context.Context, taskID int64, n int) ([]bool, error) {
	if m.RecentOutcomesFunc != nil {
		return m.RecentOutcomesFunc(ctx, taskID, n)
	}
	records := m.Records(taskID)
	var out []bool
	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i].Success)
	}
	return out, nil
}

func (m *MockExecutionStore) ListByTask(ctx context.Context, taskID int64, limit int) ([]types.Execution, error) {
	if m.ListByTaskFunc != nil {
		return m.ListByTaskFunc(ctx, taskID, limit)
	}
	records := m.Records(taskID)
	var out []types.Execution
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, records[i])
	}
	return out, nil
}

// Records returns the stored records of a task in insertion order.
func (m *MockExecutionStore) Records(taskID int64) []types.Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Execution
	for _, e := range m.records {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}
