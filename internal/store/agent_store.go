package store

import (
	"context"
	"time"

	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/types"
)

// AgentStore manages registered executor agents.
type AgentStore interface {
	Create(ctx context.Context, agent *types.Agent) (int64, error)
	Update(ctx context.Context, agent *types.Agent) error
	Get(ctx context.Context, id int64) (*types.Agent, error)
	GetAll(ctx context.Context) ([]types.Agent, error)
	Delete(ctx context.Context, id int64) error

	// UpdateStatus records the outcome of a health check.
	UpdateStatus(ctx context.Context, id int64, status state.AgentStatus, checkedAt time.Time) error
}
