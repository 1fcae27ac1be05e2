package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/internal/store"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var taskRowColumns = []string{
	"id", "name", "kind", "cron_expr", "batch_size", "agent_id", "template_content",
	"param_config", "connector_config", "status", "stop_reason", "last_batch_no",
	"created_at", "updated_at",
}

func sampleTask() *types.DataTask {
	return &types.DataTask{
		Name:            "orders",
		Kind:            types.KindBroker,
		CronExpr:        "*/10 * * * * *",
		BatchSize:       5,
		AgentID:         3,
		TemplateContent: `{"id": {id}}`,
		Params:          []types.ParamSpec{{Name: "id", Kind: types.ParamBatch}},
		Connector: types.ConnectorConfig{Broker: &types.BrokerConnector{
			URL:   "amqp://localhost",
			Topic: "orders",
		}},
	}
}

func TestNewPostgresDataTaskStore(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.NotNil(t, NewPostgresDataTaskStore(db))
}

func TestPostgresDataTaskStore_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresDataTaskStore(db)
	task := sampleTask()

	mock.ExpectQuery("INSERT INTO datafire_schema.data_tasks").
		WithArgs("orders", types.KindBroker, "*/10 * * * * *", 5, int64(3), `{"id": {id}}`,
			[]byte(`[{"param":"id","type":"batch","value":""}]`),
			[]byte(`{"broker":{"url":"amqp://localhost","topic":"orders"}}`),
			state.StatusStopped).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	id, err := s.Create(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDataTaskStore_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresDataTaskStore(db)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM datafire_schema.data_tasks WHERE id =").
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).AddRow(
			4, "sql", "database", "0 * * * *", 2, 1, `["INSERT 1", "INSERT 2"]`,
			[]byte(`[{"param":"n","type":"round_robin","value":"a,b"}]`),
			[]byte(`{"database":{"host":"ch","port":9000,"database":"events"}}`),
			"stopped", "auto-stopped after 3 consecutive failed executions", 9, now, now,
		))

	task, err := s.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, types.KindDatabase, task.Kind)
	assert.Equal(t, state.StatusStopped, task.Status)
	require.NotNil(t, task.StopReason)
	assert.Equal(t, "auto-stopped after 3 consecutive failed executions", *task.StopReason)
	assert.Equal(t, int64(9), task.LastBatchNo)
	assert.Equal(t, []types.ParamSpec{{Name: "n", Kind: types.ParamRoundRobin, Value: "a,b"}}, task.Params)
	require.NotNil(t, task.Connector.Database)
	assert.Equal(t, 9000, task.Connector.Database.Port)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDataTaskStore_Get_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresDataTaskStore(db)
	mock.ExpectQuery("SELECT (.+) FROM datafire_schema.data_tasks").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err = s.Get(context.Background(), 99)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDataTaskStore_ListRunning(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresDataTaskStore(db)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM datafire_schema.data_tasks WHERE status =").
		WithArgs(state.StatusRunning).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow(1, "a", "broker", "* * * * *", 1, 1, "{}", []byte(`[]`), []byte(`{}`), "running", nil, 0, now, now).
			AddRow(2, "b", "broker", "* * * * *", 1, 1, "{}", []byte(`[]`), []byte(`{}`), "running", nil, 3, now, now))

	tasks, err := s.ListRunning(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Nil(t, tasks[0].StopReason)
	assert.True(t, tasks[1].IsRunning())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDataTaskStore_GetAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresDataTaskStore(db)
	now := time.Now()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(state.StatusRunning).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT (.+) FROM datafire_schema.data_tasks").
		WithArgs(state.StatusRunning, 2, 0).
		WillReturnRows(sqlmock.NewRows(taskRowColumns).
			AddRow(3, "c", "broker", "* * * * *", 1, 1, "{}", []byte(`[]`), []byte(`{}`), "running", nil, 0, now, now).
			AddRow(2, "b", "broker", "* * * * *", 1, 1, "{}", []byte(`[]`), []byte(`{}`), "running", nil, 0, now, now))

	page, err := s.GetAll(context.Background(), 1, 2, state.StatusRunning)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasNextPage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDataTaskStore_StartStop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresDataTaskStore(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE datafire_schema.data_tasks").
		WithArgs(state.StatusRunning, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE datafire_schema.data_tasks").
		WithArgs(state.StatusStopped, "manual", int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE datafire_schema.data_tasks").
		WithArgs(state.StatusStopped, "", int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Start(ctx, 1))
	require.NoError(t, s.Stop(ctx, 1, "manual"))
	assert.True(t, errors.Is(s.Stop(ctx, 2, ""), store.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDataTaskStore_AllocateBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresDataTaskStore(db)

	mock.ExpectQuery(`UPDATE datafire_schema.data_tasks\s+SET last_batch_no = GREATEST`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"last_batch_no"}).AddRow(1))
	mock.ExpectQuery(`UPDATE datafire_schema.data_tasks\s+SET last_batch_no = GREATEST`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"last_batch_no"}).AddRow(2))
	mock.ExpectQuery(`UPDATE datafire_schema.data_tasks`).
		WithArgs(int64(6)).
		WillReturnError(sql.ErrNoRows)

	first, err := s.AllocateBatch(context.Background(), 5)
	require.NoError(t, err)
	second, err := s.AllocateBatch(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)

	_, err = s.AllocateBatch(context.Background(), 6)
	assert.True(t, errors.Is(err, store.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDataTaskStore_CountAllTasksGroupedByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresDataTaskStore(db)
	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("running", 4))

	counts, err := s.CountAllTasksGroupedByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, counts[state.StatusRunning])
	assert.Equal(t, 0, counts[state.StatusStopped])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDataTaskStore_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewPostgresDataTaskStore(db)
	mock.ExpectExec("DELETE FROM datafire_schema.data_tasks").
		WithArgs(int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Delete(context.Background(), 8))
	assert.NoError(t, mock.ExpectationsWereMet())
}
