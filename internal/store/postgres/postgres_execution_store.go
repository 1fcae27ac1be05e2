package postgres

import (
	"context"
	"database/sql"

	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
)

type PostgresExecutionStore struct {
	db *sql.DB
}

func NewPostgresExecutionStore(db *sql.DB) *PostgresExecutionStore {
	return &PostgresExecutionStore{db: db}
}

func (r *PostgresExecutionStore) Append(ctx context.Context, exec *types.Execution) (int64, error) {
	query := `
		INSERT INTO datafire_schema.task_executions
			(task_id, batch_no, run_id, success, result_message, records_count, scheduled_at, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		exec.TaskID, exec.BatchNo, exec.RunID, exec.Success, exec.ResultMessage,
		exec.RecordsCount, exec.ScheduledAt, exec.ExecutedAt,
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to record execution of task %d batch %d", exec.TaskID, exec.BatchNo)
	}
	return id, nil
}

func (r *PostgresExecutionStore) MaxBatchNo(ctx context.Context, taskID int64) (int64, error) {
	var maxBatch int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(batch_no), 0) FROM datafire_schema.task_executions WHERE task_id = $1`,
		taskID,
	).Scan(&maxBatch)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read max batch of task %d", taskID)
	}
	return maxBatch, nil
}

func (r *PostgresExecutionStore) RecentOutcomes(ctx context.Context, taskID int64, n int) ([]bool, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT success FROM datafire_schema.task_executions
		WHERE task_id = $1
		ORDER BY id DESC
		LIMIT $2`, taskID, n)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read outcomes of task %d", taskID)
	}
	defer rows.Close()

	outcomes := make([]bool, 0, n)
	for rows.Next() {
		var ok bool
		if err := rows.Scan(&ok); err != nil {
			return nil, err
		}
		outcomes = append(outcomes, ok)
	}
	return outcomes, rows.Err()
}

func (r *PostgresExecutionStore) ListByTask(ctx context.Context, taskID int64, limit int) ([]types.Execution, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, batch_no, run_id, success, result_message, records_count, scheduled_at, executed_at
		FROM datafire_schema.task_executions
		WHERE task_id = $1
		ORDER BY id DESC
		LIMIT $2`, taskID, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list executions of task %d", taskID)
	}
	defer rows.Close()

	var out []types.Execution
	for rows.Next() {
		var e types.Execution
		if err := rows.Scan(&e.ID, &e.TaskID, &e.BatchNo, &e.RunID, &e.Success, &e.ResultMessage,
			&e.RecordsCount, &e.ScheduledAt, &e.ExecutedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan execution")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
