package app

import (
	"database/sql"

	"github.com/RezaEskandarii/datafire/internal/agentclient"
	"go.uber.org/zap"
)

// ContainerOption configures Container creation. Used for testing and customization.
type ContainerOption func(*containerConfig)

type containerConfig struct {
	// Optional: inject custom DB instead of creating from config
	db       *sql.DB
	executor agentclient.Executor
	logger   *zap.SugaredLogger
}

// WithDB injects a custom database connection. Useful for testing.
func WithDB(db *sql.DB) ContainerOption {
	return func(c *containerConfig) {
		c.db = db
	}
}

// WithExecutor replaces the HTTP agent client.
func WithExecutor(e agentclient.Executor) ContainerOption {
	return func(c *containerConfig) {
		c.executor = e
	}
}

// WithLogger sets the root logger; components log under named children.
func WithLogger(l *zap.SugaredLogger) ContainerOption {
	return func(c *containerConfig) {
		c.logger = l
	}
}
