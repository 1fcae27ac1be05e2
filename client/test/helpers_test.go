package test

import (
	"testing"

	"github.com/RezaEskandarii/datafire/client"
	"github.com/RezaEskandarii/datafire/client/test/mocks"
	"github.com/RezaEskandarii/datafire/internal/ledger"
	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/RezaEskandarii/datafire/types/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	tasks      *mocks.MockDataTaskStore
	executions *mocks.MockExecutionStore
	agents     *mocks.MockAgentStore
	executor   *mocks.MockExecutor
	lock       *mocks.MockDistributedLockManager
	ledger     *ledger.Ledger
	dispatcher *client.Dispatcher
	scheduler  *client.DataTaskScheduler
	manager    *client.TaskManager
}

func newHarness(t *testing.T, tasks ...types.DataTask) *harness {
	t.Helper()
	cfg, err := config.NewDatafireConfig("test-instance")
	require.NoError(t, err)

	logger := zap.NewNop().Sugar()
	h := &harness{
		tasks:      mocks.NewMockDataTaskStore(tasks...),
		executions: &mocks.MockExecutionStore{},
		agents:     mocks.NewMockAgentStore(testAgent()),
		executor:   &mocks.MockExecutor{},
		lock:       &mocks.MockDistributedLockManager{},
	}
	h.ledger = ledger.New(h.tasks, h.executions, logger)
	h.dispatcher = client.NewDispatcher(h.agents, h.executor, h.ledger, logger)
	h.scheduler = client.NewDataTaskScheduler(h.tasks, h.lock, h.dispatcher, cfg, logger)
	h.manager = client.NewTaskManager(h.tasks, h.agents, h.executor, h.scheduler, h.dispatcher, h.ledger, logger)
	return h
}

func testAgent() types.Agent {
	return types.Agent{ID: 1, Name: "local", URL: "http://127.0.0.1:8001", Token: "secret", Status: state.AgentOnline}
}

func brokerTask(id int64, cron string) types.DataTask {
	return types.DataTask{
		ID:              id,
		Name:            "orders",
		Kind:            types.KindBroker,
		CronExpr:        cron,
		BatchSize:       2,
		AgentID:         1,
		TemplateContent: `{"id": "{seq}", "ts": {ts}}`,
		Params: []types.ParamSpec{
			{Name: "seq", Kind: types.ParamRoundRobin},
			{Name: "ts", Kind: types.ParamTimestamp10},
		},
		Connector: types.ConnectorConfig{
			Broker: &types.BrokerConnector{URL: "amqp://localhost:5672/", Topic: "orders"},
		},
		Status: state.StatusRunning,
	}
}
