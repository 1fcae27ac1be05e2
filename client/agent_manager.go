package client

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RezaEskandarii/datafire/internal/agentclient"
	"github.com/RezaEskandarii/datafire/internal/metrics"
	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/internal/store"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrAgentInUse is returned when deleting an agent that tasks still use.
var ErrAgentInUse = errors.New("executor agent is used by tasks")

// AgentManager registers executor agents and keeps their displayed status
// current. Its health refresh is independent of the scheduler.
type AgentManager struct {
	agents      store.AgentStore
	tasks       store.DataTaskStore
	executor    agentclient.Executor
	workerCount int
	logger      *zap.SugaredLogger
	now         func() time.Time
}

func NewAgentManager(agents store.AgentStore, tasks store.DataTaskStore, executor agentclient.Executor, workerCount int, logger *zap.SugaredLogger) *AgentManager {
	if workerCount < 1 {
		workerCount = 1
	}
	return &AgentManager{
		agents:      agents,
		tasks:       tasks,
		executor:    executor,
		workerCount: workerCount,
		logger:      logger,
		now:         time.Now,
	}
}

// Register stores an agent after it passes a health check.
func (m *AgentManager) Register(ctx context.Context, agent *types.Agent) (int64, error) {
	if strings.TrimSpace(agent.Name) == "" || strings.TrimSpace(agent.URL) == "" {
		return 0, errors.New("agent name and url are required")
	}
	agent.URL = agentclient.NormalizeURL(agent.URL)
	if err := m.probe(ctx, agent); err != nil {
		return 0, err
	}
	checked := m.now()
	agent.Status = state.AgentOnline
	agent.LastCheckAt = &checked

	id, err := m.agents.Create(ctx, agent)
	if err != nil {
		return 0, errors.Wrap(err, "create agent")
	}
	agent.ID = id
	m.logger.Infow("agent registered", "agent", agent.Name, "url", agent.URL)
	return id, nil
}

// Update saves name, url and token. A changed url or token is health checked
// first.
func (m *AgentManager) Update(ctx context.Context, agent *types.Agent) error {
	current, err := m.agents.Get(ctx, agent.ID)
	if err != nil {
		return err
	}
	agent.URL = agentclient.NormalizeURL(agent.URL)
	if agent.URL != current.URL || agent.Token != current.Token {
		if err := m.probe(ctx, agent); err != nil {
			return err
		}
	}
	return m.agents.Update(ctx, agent)
}

func (m *AgentManager) probe(ctx context.Context, agent *types.Agent) error {
	ok, err := m.executor.CheckHealth(ctx, agentclient.Endpoint{URL: agent.URL, Token: agent.Token})
	if err != nil {
		return errors.Wrapf(errors.Mark(err, ErrAgentUnavailable), "agent %q", agent.Name)
	}
	if !ok {
		return errors.Wrapf(ErrAgentUnavailable, "agent %q at %s", agent.Name, agent.URL)
	}
	return nil
}

// Delete refuses to remove an agent referenced by any task.
func (m *AgentManager) Delete(ctx context.Context, id int64) error {
	n, err := m.tasks.CountByAgent(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return errors.Wrapf(ErrAgentInUse, "%d task(s) use agent %d", n, id)
	}
	return m.agents.Delete(ctx, id)
}

func (m *AgentManager) Get(ctx context.Context, id int64) (*types.Agent, error) {
	return m.agents.Get(ctx, id)
}

func (m *AgentManager) List(ctx context.Context) ([]types.Agent, error) {
	return m.agents.GetAll(ctx)
}

// Start refreshes agent health every interval until ctx is cancelled.
func (m *AgentManager) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := m.RefreshHealth(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warnw("agent health refresh failed", "error", err)
		}
		select {
		case <-ctx.Done():
			m.logger.Infow("agent health refresh stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RefreshHealth checks every agent, at most workerCount at a time, stores
// the outcome and returns how many are online.
func (m *AgentManager) RefreshHealth(ctx context.Context) (int, error) {
	agents, err := m.agents.GetAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list agents")
	}

	sem := semaphore.NewWeighted(int64(m.workerCount))
	var wg sync.WaitGroup
	var online atomic.Int64

	for _, agent := range agents {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(agent types.Agent) {
			defer sem.Release(1)
			defer wg.Done()

			status := state.AgentOffline
			ok, err := m.executor.CheckHealth(ctx, agentclient.Endpoint{URL: agent.URL, Token: agent.Token})
			if err == nil && ok {
				status = state.AgentOnline
				online.Add(1)
			}
			if status != agent.Status {
				m.logger.Infow("agent status changed", "agent", agent.Name, "from", agent.Status, "to", status)
			}
			if err := m.agents.UpdateStatus(ctx, agent.ID, status, m.now()); err != nil {
				m.logger.Warnw("failed to store agent status", "agent", agent.Name, "error", err)
			}
		}(agent)
	}
	wg.Wait()

	n := int(online.Load())
	metrics.AgentsOnline.Set(float64(n))
	return n, ctx.Err()
}
