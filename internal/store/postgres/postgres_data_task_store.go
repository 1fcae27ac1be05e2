package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/internal/store"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
)

const taskColumns = `id, name, kind, cron_expr, batch_size, agent_id, template_content,
		       param_config, connector_config, status, stop_reason, last_batch_no,
		       created_at, updated_at`

type PostgresDataTaskStore struct {
	db *sql.DB
}

func NewPostgresDataTaskStore(db *sql.DB) *PostgresDataTaskStore {
	return &PostgresDataTaskStore{db: db}
}

func (r *PostgresDataTaskStore) Create(ctx context.Context, task *types.DataTask) (int64, error) {
	params, connector, err := encodeTaskBlobs(task)
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO datafire_schema.data_tasks
			(name, kind, cron_expr, batch_size, agent_id, template_content, param_config, connector_config, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING id
	`
	var id int64
	err = r.db.QueryRowContext(ctx, query,
		task.Name, task.Kind, task.CronExpr, task.BatchSize, task.AgentID,
		task.TemplateContent, params, connector, state.StatusStopped,
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert data task")
	}
	return id, nil
}

func (r *PostgresDataTaskStore) Update(ctx context.Context, task *types.DataTask) error {
	params, connector, err := encodeTaskBlobs(task)
	if err != nil {
		return err
	}

	query := `
		UPDATE datafire_schema.data_tasks
		SET name = $1, kind = $2, cron_expr = $3, batch_size = $4, agent_id = $5,
		    template_content = $6, param_config = $7, connector_config = $8, updated_at = now()
		WHERE id = $9
	`
	res, err := r.db.ExecContext(ctx, query,
		task.Name, task.Kind, task.CronExpr, task.BatchSize, task.AgentID,
		task.TemplateContent, params, connector, task.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update data task %d", task.ID)
	}
	return expectOneRow(res)
}

func (r *PostgresDataTaskStore) Get(ctx context.Context, id int64) (*types.DataTask, error) {
	query := `SELECT ` + taskColumns + ` FROM datafire_schema.data_tasks WHERE id = $1`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(store.ErrNotFound, "data task %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load data task %d", id)
	}
	return task, nil
}

func (r *PostgresDataTaskStore) GetAll(ctx context.Context, page int, pageSize int, status state.TaskStatus) (*types.PaginationResult[types.DataTask], error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	var args []interface{}
	where := "TRUE"

	argIndex := 1
	if status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIndex)
		args = append(args, status)
		argIndex++
	}

	countQuery := `SELECT COUNT(*) FROM datafire_schema.data_tasks WHERE ` + where
	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM datafire_schema.data_tasks
		WHERE %s
		ORDER BY id DESC
		LIMIT $%d OFFSET $%d`, taskColumns, where, argIndex, argIndex+1)

	var totalItems int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalItems); err != nil {
		return nil, errors.Wrap(err, "failed to count data tasks")
	}

	args = append(args, pageSize, offset)
	tasks, err := r.queryTasks(ctx, selectQuery, args...)
	if err != nil {
		return nil, err
	}
	return types.NewPaginationResult(tasks, totalItems, page, pageSize), nil
}

func (r *PostgresDataTaskStore) ListRunning(ctx context.Context) ([]types.DataTask, error) {
	query := `SELECT ` + taskColumns + ` FROM datafire_schema.data_tasks WHERE status = $1 ORDER BY id`
	return r.queryTasks(ctx, query, state.StatusRunning)
}

func (r *PostgresDataTaskStore) Start(ctx context.Context, id int64) error {
	query := `
		UPDATE datafire_schema.data_tasks
		SET status = $1, stop_reason = NULL, updated_at = now()
		WHERE id = $2
	`
	res, err := r.db.ExecContext(ctx, query, state.StatusRunning, id)
	if err != nil {
		return errors.Wrapf(err, "failed to start data task %d", id)
	}
	return expectOneRow(res)
}

func (r *PostgresDataTaskStore) Stop(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE datafire_schema.data_tasks
		SET status = $1, stop_reason = NULLIF($2, ''), updated_at = now()
		WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, state.StatusStopped, reason, id)
	if err != nil {
		return errors.Wrapf(err, "failed to stop data task %d", id)
	}
	return expectOneRow(res)
}

func (r *PostgresDataTaskStore) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM datafire_schema.data_tasks WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete data task %d", id)
	}
	return expectOneRow(res)
}

// AllocateBatch bumps last_batch_no past both its own value and the highest
// recorded execution in one statement, so concurrent firings of the same
// task never share a number.
func (r *PostgresDataTaskStore) AllocateBatch(ctx context.Context, id int64) (int64, error) {
	query := `
		UPDATE datafire_schema.data_tasks
		SET last_batch_no = GREATEST(
			last_batch_no,
			(SELECT COALESCE(MAX(batch_no), 0) FROM datafire_schema.task_executions WHERE task_id = $1)
		) + 1
		WHERE id = $1
		RETURNING last_batch_no
	`
	var batchNo int64
	err := r.db.QueryRowContext(ctx, query, id).Scan(&batchNo)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errors.Wrapf(store.ErrNotFound, "data task %d", id)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "failed to allocate batch for data task %d", id)
	}
	return batchNo, nil
}

func (r *PostgresDataTaskStore) CountAllTasksGroupedByStatus(ctx context.Context) (map[state.TaskStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM datafire_schema.data_tasks GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count data tasks")
	}
	defer rows.Close()

	counts := make(map[state.TaskStatus]int, len(state.AllTaskStatuses))
	for _, s := range state.AllTaskStatuses {
		counts[s] = 0
	}
	for rows.Next() {
		var status state.TaskStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *PostgresDataTaskStore) CountByAgent(ctx context.Context, agentID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datafire_schema.data_tasks WHERE agent_id = $1`, agentID).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count tasks of agent %d", agentID)
	}
	return n, nil
}

func (r *PostgresDataTaskStore) queryTasks(ctx context.Context, query string, args ...any) ([]types.DataTask, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query data tasks")
	}
	defer rows.Close()

	var tasks []types.DataTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan data task")
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*types.DataTask, error) {
	var (
		task       types.DataTask
		params     []byte
		connector  []byte
		stopReason sql.NullString
	)
	err := row.Scan(
		&task.ID, &task.Name, &task.Kind, &task.CronExpr, &task.BatchSize, &task.AgentID,
		&task.TemplateContent, &params, &connector, &task.Status, &stopReason, &task.LastBatchNo,
		&task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &task.Params); err != nil {
			return nil, errors.Wrapf(err, "param_config of task %d", task.ID)
		}
	}
	if len(connector) > 0 {
		if err := json.Unmarshal(connector, &task.Connector); err != nil {
			return nil, errors.Wrapf(err, "connector_config of task %d", task.ID)
		}
	}
	if stopReason.Valid {
		task.StopReason = &stopReason.String
	}
	return &task, nil
}

func encodeTaskBlobs(task *types.DataTask) ([]byte, []byte, error) {
	specs := task.Params
	if specs == nil {
		specs = []types.ParamSpec{}
	}
	params, err := json.Marshal(specs)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to marshal param config")
	}
	connector, err := json.Marshal(task.Connector)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to marshal connector config")
	}
	return params, connector, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
