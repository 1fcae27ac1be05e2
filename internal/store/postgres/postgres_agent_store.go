package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/internal/store"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
)

type PostgresAgentStore struct {
	db *sql.DB
}

func NewPostgresAgentStore(db *sql.DB) *PostgresAgentStore {
	return &PostgresAgentStore{db: db}
}

func (r *PostgresAgentStore) Create(ctx context.Context, agent *types.Agent) (int64, error) {
	query := `
		INSERT INTO datafire_schema.agents (name, url, token, status, last_check_at, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id
	`
	var id int64
	err := r.db.QueryRowContext(ctx, query, agent.Name, agent.URL, agent.Token, agent.Status, agent.LastCheckAt).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert agent")
	}
	return id, nil
}

func (r *PostgresAgentStore) Update(ctx context.Context, agent *types.Agent) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE datafire_schema.agents
		SET name = $1, url = $2, token = $3, status = $4, last_check_at = $5
		WHERE id = $6`,
		agent.Name, agent.URL, agent.Token, agent.Status, agent.LastCheckAt, agent.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update agent %d", agent.ID)
	}
	return expectOneRow(res)
}

func (r *PostgresAgentStore) Get(ctx context.Context, id int64) (*types.Agent, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, url, token, status, last_check_at, created_at
		FROM datafire_schema.agents WHERE id = $1`, id)
	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(store.ErrNotFound, "agent %d", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load agent %d", id)
	}
	return agent, nil
}

func (r *PostgresAgentStore) GetAll(ctx context.Context) ([]types.Agent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, url, token, status, last_check_at, created_at
		FROM datafire_schema.agents ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list agents")
	}
	defer rows.Close()

	var agents []types.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan agent")
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

func (r *PostgresAgentStore) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM datafire_schema.agents WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete agent %d", id)
	}
	return expectOneRow(res)
}

func (r *PostgresAgentStore) UpdateStatus(ctx context.Context, id int64, status state.AgentStatus, checkedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE datafire_schema.agents SET status = $1, last_check_at = $2 WHERE id = $3`,
		status, checkedAt, id,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update status of agent %d", id)
	}
	return nil
}

func scanAgent(row rowScanner) (*types.Agent, error) {
	var (
		agent     types.Agent
		lastCheck sql.NullTime
	)
	if err := row.Scan(&agent.ID, &agent.Name, &agent.URL, &agent.Token, &agent.Status, &lastCheck, &agent.CreatedAt); err != nil {
		return nil, err
	}
	if lastCheck.Valid {
		agent.LastCheckAt = &lastCheck.Time
	}
	return &agent, nil
}
