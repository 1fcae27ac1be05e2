package types

import (
	"time"

	"github.com/RezaEskandarii/datafire/internal/state"
)

// Agent is a registered remote executor. The token is never serialised.
type Agent struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	URL         string            `json:"url"`
	Token       string            `json:"-"`
	Status      state.AgentStatus `json:"status"`
	LastCheckAt *time.Time        `json:"last_check_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
