package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/internal/store"
	"github.com/RezaEskandarii/datafire/types"
)

// MockAgentStore is a mock implementation of store.AgentStore for testing.
type MockAgentStore struct {
	CreateFunc       func(ctx context.Context, agent *types.Agent) (int64, error)
	UpdateStatusFunc func(ctx context.Context, id int64, status state.AgentStatus, checkedAt time.Time) error

	mu     sync.Mutex
	nextID int64
	agents map[int64]types.Agent
}

func NewMockAgentStore(agents ...types.Agent) *MockAgentStore {
	m := &MockAgentStore{agents: make(map[int64]types.Agent)}
	for _, a := range agents {
		m.agents[a.ID] = a
		if a.ID > m.nextID {
			m.nextID = a.ID
		}
	}
	return m
}

func (m *MockAgentStore) Create(ctx context.Context, agent *types.Agent) (int64, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, agent)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.agents == nil {
		m.agents = make(map[int64]types.Agent)
	}
	m.nextID++
	a := *agent
	a.ID = m.nextID
	m.agents[a.ID] = a
	return a.ID, nil
}

func (m *MockAgentStore) Update(ctx context.Context, agent *types.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[agent.ID]; !ok {
		return store.ErrNotFound
	}
	m.agents[agent.ID] = *agent
	return nil
}

func (m *MockAgentStore) Get(ctx context.Context, id int64) (*types.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (m *MockAgentStore) GetAll(ctx context.Context) ([]types.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockAgentStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.agents, id)
	return nil
}

func (m *MockAgentStore) UpdateStatus(ctx context.Context, id int64, status state.AgentStatus, checkedAt time.Time) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status, checkedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Status = status
	a.LastCheckAt = &checkedAt
	m.agents[id] = a
	return nil
}
