package test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RezaEskandarii/datafire/client"
	"github.com/RezaEskandarii/datafire/client/test/mocks"
	"github.com/RezaEskandarii/datafire/internal/agentclient"
	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAgentManager(agents *mocks.MockAgentStore, tasks *mocks.MockDataTaskStore, executor *mocks.MockExecutor) *client.AgentManager {
	return client.NewAgentManager(agents, tasks, executor, 2, zap.NewNop().Sugar())
}

func TestAgentManager_Register(t *testing.T) {
	agents := mocks.NewMockAgentStore()
	m := newAgentManager(agents, mocks.NewMockDataTaskStore(), &mocks.MockExecutor{})

	agent := &types.Agent{Name: "edge", URL: "http://10.0.0.5:8001/", Token: "abc"}
	id, err := m.Register(context.Background(), agent)
	require.NoError(t, err)

	stored, err := m.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8001", stored.URL)
	assert.Equal(t, state.AgentOnline, stored.Status)
	assert.NotNil(t, stored.LastCheckAt)
}

func TestAgentManager_Register_RejectsUnhealthy(t *testing.T) {
	agents := mocks.NewMockAgentStore()
	executor := &mocks.MockExecutor{
		CheckHealthFunc: func(ctx context.Context, ep agentclient.Endpoint) (bool, error) {
			return false, agentclient.ErrUnauthorized
		},
	}
	m := newAgentManager(agents, mocks.NewMockDataTaskStore(), executor)

	_, err := m.Register(context.Background(), &types.Agent{Name: "edge", URL: "http://10.0.0.5:8001", Token: "wrong"})
	assert.ErrorIs(t, err, client.ErrAgentUnavailable)

	list, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAgentManager_Register_RequiresNameAndURL(t *testing.T) {
	m := newAgentManager(mocks.NewMockAgentStore(), mocks.NewMockDataTaskStore(), &mocks.MockExecutor{})
	_, err := m.Register(context.Background(), &types.Agent{Name: "edge"})
	assert.Error(t, err)
}

func TestAgentManager_Update_ChecksChangedEndpoint(t *testing.T) {
	agents := mocks.NewMockAgentStore(testAgent())
	var checks int32
	executor := &mocks.MockExecutor{
		CheckHealthFunc: func(ctx context.Context, ep agentclient.Endpoint) (bool, error) {
			atomic.AddInt32(&checks, 1)
			return ep.Token == "secret", nil
		},
	}
	m := newAgentManager(agents, mocks.NewMockDataTaskStore(), executor)
	ctx := context.Background()

	renamed := testAgent()
	renamed.Name = "renamed"
	require.NoError(t, m.Update(ctx, &renamed))
	assert.Equal(t, int32(0), atomic.LoadInt32(&checks))

	rotated := testAgent()
	rotated.Token = "rotated"
	assert.ErrorIs(t, m.Update(ctx, &rotated), client.ErrAgentUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(&checks))
}

func TestAgentManager_Delete_RefusesAgentInUse(t *testing.T) {
	agents := mocks.NewMockAgentStore(testAgent())
	tasks := mocks.NewMockDataTaskStore(brokerTask(1, "* * * * *"))
	m := newAgentManager(agents, tasks, &mocks.MockExecutor{})

	assert.ErrorIs(t, m.Delete(context.Background(), 1), client.ErrAgentInUse)

	require.NoError(t, tasks.Delete(context.Background(), 1))
	assert.NoError(t, m.Delete(context.Background(), 1))
}

func TestAgentManager_RefreshHealth(t *testing.T) {
	agents := mocks.NewMockAgentStore(
		types.Agent{ID: 1, Name: "a", URL: "http://a", Status: state.AgentUnknown},
		types.Agent{ID: 2, Name: "b", URL: "http://b", Status: state.AgentOnline},
		types.Agent{ID: 3, Name: "c", URL: "http://c", Status: state.AgentOnline},
	)
	var inFlight, peak int32
	executor := &mocks.MockExecutor{
		CheckHealthFunc: func(ctx context.Context, ep agentclient.Endpoint) (bool, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			if ep.URL == "http://b" {
				return false, errors.New("timeout")
			}
			return true, nil
		},
	}
	m := newAgentManager(agents, mocks.NewMockDataTaskStore(), executor)

	online, err := m.RefreshHealth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, online)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))

	a, _ := agents.Get(context.Background(), 1)
	b, _ := agents.Get(context.Background(), 2)
	assert.Equal(t, state.AgentOnline, a.Status)
	assert.Equal(t, state.AgentOffline, b.Status)
	assert.NotNil(t, b.LastCheckAt)
}

func TestAgentManager_Start_StopsOnContextCancel(t *testing.T) {
	agents := mocks.NewMockAgentStore(testAgent())
	var checks int32
	executor := &mocks.MockExecutor{
		CheckHealthFunc: func(ctx context.Context, ep agentclient.Endpoint) (bool, error) {
			atomic.AddInt32(&checks, 1)
			return true, nil
		},
	}
	m := newAgentManager(agents, mocks.NewMockDataTaskStore(), executor)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx, 20*time.Millisecond) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&checks) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
