package mocks

import (
	"context"
	"sync"

	"github.com/RezaEskandarii/datafire/internal/agentclient"
	"github.com/RezaEskandarii/datafire/types"
)

// ExecuteCall captures one Execute invocation.
type ExecuteCall struct {
	Endpoint  agentclient.Endpoint
	Payload   types.Payload
	BatchNo   int64
	RequestID string
}

// MockExecutor is a mock implementation of agentclient.Executor for testing.
type MockExecutor struct {
	CheckHealthFunc func(ctx context.Context, ep agentclient.Endpoint) (bool, error)
	ExecuteFunc     func(ctx context.Context, ep agentclient.Endpoint, p types.Payload, batchNo int64, requestID string) (*types.ExecuteResponse, error)

	mu    sync.Mutex
	calls []ExecuteCall
}

func (m *MockExecutor) CheckHealth(ctx context.Context, ep agentclient.Endpoint) (bool, error) {
	if m.CheckHealthFunc != nil {
		return m.CheckHealthFunc(ctx, ep)
	}
	return true, nil
}

func (m *MockExecutor) Execute(ctx context.Context, ep agentclient.Endpoint, p types.Payload, batchNo int64, requestID string) (*types.ExecuteResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ExecuteCall{Endpoint: ep, Payload: p, BatchNo: batchNo, RequestID: requestID})
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, ep, p, batchNo, requestID)
	}
	return &types.ExecuteResponse{Success: true, BatchNumber: batchNo}, nil
}

// Calls returns a copy of the recorded Execute invocations.
func (m *MockExecutor) Calls() []ExecuteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecuteCall(nil), m.calls...)
}
