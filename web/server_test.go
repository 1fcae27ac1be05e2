package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/RezaEskandarii/datafire/client"
	"github.com/RezaEskandarii/datafire/client/test/mocks"
	"github.com/RezaEskandarii/datafire/internal/agentclient"
	"github.com/RezaEskandarii/datafire/internal/ledger"
	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/RezaEskandarii/datafire/types/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef"

type apiFixture struct {
	server   *httptest.Server
	tasks    *mocks.MockDataTaskStore
	agents   *mocks.MockAgentStore
	executor *mocks.MockExecutor
}

func newAPIFixture(t *testing.T, secret string) *apiFixture {
	t.Helper()
	cfg, err := config.NewDatafireConfig("api-test")
	require.NoError(t, err)
	logger := zap.NewNop().Sugar()

	f := &apiFixture{
		tasks:    mocks.NewMockDataTaskStore(),
		agents:   mocks.NewMockAgentStore(types.Agent{ID: 1, Name: "local", URL: "http://127.0.0.1:8001", Token: "t"}),
		executor: &mocks.MockExecutor{},
	}
	executions := &mocks.MockExecutionStore{}
	l := ledger.New(f.tasks, executions, logger)
	dispatcher := client.NewDispatcher(f.agents, f.executor, l, logger)
	scheduler := client.NewDataTaskScheduler(f.tasks, &mocks.MockDistributedLockManager{}, dispatcher, cfg, logger)
	tm := client.NewTaskManager(f.tasks, f.agents, f.executor, scheduler, dispatcher, l, logger)
	am := client.NewAgentManager(f.agents, f.tasks, f.executor, 2, logger)

	api := NewAPIServer(tm, am, secret, 0, time.UTC, logger)
	f.server = httptest.NewServer(api.Handler())
	t.Cleanup(f.server.Close)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, token string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func validTaskBody() map[string]any {
	return map[string]any{
		"name":       "orders",
		"kind":       "broker",
		"cron":       "*/5 * * * *",
		"batch_size": 3,
		"agent_id":   1,
		"template":   `{"id": {n}}`,
		"params":     []map[string]any{{"param": "n", "type": "batch"}},
		"connector":  map[string]any{"broker": map[string]any{"url": "amqp://rabbit:5672/", "topic": "orders"}},
	}
}

func TestAPI_TaskLifecycle(t *testing.T) {
	f := newAPIFixture(t, "")

	resp := f.do(t, http.MethodPost, "/api/tasks", validTaskBody(), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[types.DataTask](t, resp)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, state.StatusStopped, created.Status)

	resp = f.do(t, http.MethodPost, "/api/tasks/1/start", nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/tasks/1", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, state.StatusRunning, decode[types.DataTask](t, resp).Status)

	resp = f.do(t, http.MethodPost, "/api/tasks/1/run", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	run := decode[client.FiringResult](t, resp)
	assert.True(t, run.Success)
	assert.Equal(t, 3, run.Items)

	resp = f.do(t, http.MethodGet, "/api/tasks/1/executions", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]types.Execution](t, resp), 1)

	resp = f.do(t, http.MethodPost, "/api/tasks/1/stop", nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/tasks?status=stopped", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[types.PaginationResult[types.DataTask]](t, resp)
	assert.Len(t, page.Items, 1)

	resp = f.do(t, http.MethodDelete, "/api/tasks/1", nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/tasks/1", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_CreateTask_Validation(t *testing.T) {
	f := newAPIFixture(t, "")

	body := validTaskBody()
	body["name"] = ""
	resp := f.do(t, http.MethodPost, "/api/tasks", body, "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, []string{"name is required"}, decode[errorBody](t, resp).Details)

	body = validTaskBody()
	body["cron"] = "61 * * * *"
	resp = f.do(t, http.MethodPost, "/api/tasks", body, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body = validTaskBody()
	body["unexpected"] = true
	resp = f.do(t, http.MethodPost, "/api/tasks", body, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	f.executor.CheckHealthFunc = func(ctx context.Context, ep agentclient.Endpoint) (bool, error) {
		return false, nil
	}
	resp = f.do(t, http.MethodPost, "/api/tasks", validTaskBody(), "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAPI_Agents(t *testing.T) {
	f := newAPIFixture(t, "")

	resp := f.do(t, http.MethodPost, "/api/agents", agentRequest{Name: "edge", URL: "10.0.0.9:8001", Token: "x"}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	agent := decode[map[string]any](t, resp)
	assert.Equal(t, "http://10.0.0.9:8001", agent["url"])
	assert.NotContains(t, agent, "token")

	resp = f.do(t, http.MethodPost, "/api/tasks", validTaskBody(), "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, "/api/agents/1", nil, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/agents/refresh", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decode[map[string]int](t, resp)["online"])

	resp = f.do(t, http.MethodGet, "/api/agents", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]types.Agent](t, resp), 2)
}

func TestAPI_CronParse(t *testing.T) {
	f := newAPIFixture(t, "")

	resp := f.do(t, http.MethodPost, "/api/cron/parse", cronRequest{Expression: "0 0/15 * * * ?", Count: 3}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[cronResponse](t, resp)
	assert.Equal(t, "0 0/15 * * * *", out.Normalized)
	assert.Equal(t, "0/15", out.Fields["minute"])
	require.Len(t, out.Next, 3)
	assert.Equal(t, 15*time.Minute, out.Next[1].Sub(out.Next[0]))

	resp = f.do(t, http.MethodPost, "/api/cron/parse", cronRequest{Expression: "bad"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_TemplateParamsAndPreview(t *testing.T) {
	f := newAPIFixture(t, "")

	resp := f.do(t, http.MethodPost, "/api/template/params", templateRequest{Template: `{"a": "{x}", "b": "{y}", "c": "{x}"}`}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"x", "y"}, decode[map[string][]string](t, resp)["params"])

	resp = f.do(t, http.MethodPost, "/api/template/preview", templateRequest{
		Template:  `{"v": "{v}"}`,
		Params:    []types.ParamSpec{{Name: "v", Kind: types.ParamRoundRobin, Value: "a,b,c"}},
		BatchSize: 2,
		BatchNo:   2,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	preview := decode[map[string][]map[string]string](t, resp)
	assert.Equal(t, []map[string]string{{"v": "c"}, {"v": "a"}}, preview["messages"])

	resp = f.do(t, http.MethodPost, "/api/template/preview", templateRequest{
		Kind:      types.KindDatabase,
		Template:  `["INSERT INTO a VALUES ({i})", "INSERT INTO b VALUES ({i})"]`,
		Params:    []types.ParamSpec{{Name: "i", Kind: types.ParamRoundRobin}},
		BatchSize: 2,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{
		"INSERT INTO a VALUES (1)",
		"INSERT INTO b VALUES (1)",
		"INSERT INTO a VALUES (2)",
		"INSERT INTO b VALUES (2)",
	}, decode[map[string][]string](t, resp)["statements"])
}

func TestAPI_Auth(t *testing.T) {
	f := newAPIFixture(t, testSecret)

	resp := f.do(t, http.MethodGet, "/api/tasks", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/tasks", nil, GenerateAuthToken("ops", "another-secret-key"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/tasks", nil, GenerateAuthToken("ops", testSecret))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOperatorFromToken(t *testing.T) {
	token := GenerateAuthToken("reza", testSecret)
	operator, ok := operatorFromToken(token, testSecret)
	assert.True(t, ok)
	assert.Equal(t, "reza", operator)

	_, ok = operatorFromToken("garbage", testSecret)
	assert.False(t, ok)
}
