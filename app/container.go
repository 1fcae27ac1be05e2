package app

import (
	"context"
	"database/sql"

	"github.com/RezaEskandarii/datafire/client"
	"github.com/RezaEskandarii/datafire/internal/agentclient"
	"github.com/RezaEskandarii/datafire/internal/ledger"
	"github.com/RezaEskandarii/datafire/internal/lock"
	"github.com/RezaEskandarii/datafire/internal/logger"
	"github.com/RezaEskandarii/datafire/internal/store"
	"github.com/RezaEskandarii/datafire/internal/store/postgres"
	"github.com/RezaEskandarii/datafire/types/config"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Container holds all application dependencies. It is the single source of truth
// for dependency injection and ensures connections and services are created once.
type Container struct {
	Config *config.DatafireConfig
	Logger *zap.SugaredLogger

	// Storage connection, shared by all stores
	DB *sql.DB

	// Stores (implement interfaces for testability)
	TaskStore      store.DataTaskStore
	ExecutionStore store.ExecutionStore
	AgentStore     store.AgentStore

	// Infrastructure
	LockManager lock.DistributedLockManager
	Executor    agentclient.Executor
	Ledger      *ledger.Ledger

	// Scheduling and management
	Dispatcher   *client.Dispatcher
	Scheduler    *client.DataTaskScheduler
	TaskManager  *client.TaskManager
	AgentManager *client.AgentManager

	ownsDB bool
}

// NewContainer creates and wires all dependencies. Single entry point for DI.
// Call this once per application lifecycle.
// Pass WithDB to inject a connection for testing.
func NewContainer(ctx context.Context, cfg *config.DatafireConfig, opts ...ContainerOption) (*Container, error) {
	opt := &containerConfig{}
	for _, o := range opts {
		o(opt)
	}

	log := opt.logger
	if log == nil {
		log = logger.Logger
	}
	log = log.With("instance", cfg.Instance)

	db := opt.db
	ownsDB := false
	if db == nil {
		var err error
		db, err = initStorageConnection(ctx, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "init storage")
		}
		ownsDB = true
	}

	executor := opt.executor
	if executor == nil {
		executor = agentclient.New(cfg.HealthCheckTimeout, cfg.ExecuteTimeout)
	}

	taskStore := postgres.NewPostgresDataTaskStore(db)
	executionStore := postgres.NewPostgresExecutionStore(db)
	agentStore := postgres.NewPostgresAgentStore(db)
	lockMgr := lock.NewPostgresDistributedLockManager(db)

	l := ledger.New(taskStore, executionStore, log.Named("ledger"))
	dispatcher := client.NewDispatcher(agentStore, executor, l, log.Named("dispatcher"))
	scheduler := client.NewDataTaskScheduler(taskStore, lockMgr, dispatcher, cfg, log.Named("scheduler"))

	return &Container{
		Config:         cfg,
		Logger:         log,
		DB:             db,
		TaskStore:      taskStore,
		ExecutionStore: executionStore,
		AgentStore:     agentStore,
		LockManager:    lockMgr,
		Executor:       executor,
		Ledger:         l,
		Dispatcher:     dispatcher,
		Scheduler:      scheduler,
		TaskManager:    client.NewTaskManager(taskStore, agentStore, executor, scheduler, dispatcher, l, log.Named("tasks")),
		AgentManager:   client.NewAgentManager(agentStore, taskStore, executor, cfg.WorkerCount, log.Named("agents")),
		ownsDB:         ownsDB,
	}, nil
}

// initStorageConnection opens the database selected by cfg.StorageDriver.
func initStorageConnection(ctx context.Context, cfg *config.DatafireConfig) (*sql.DB, error) {
	switch cfg.StorageDriver {
	case config.Postgres:
		return openPostgresDB(ctx, cfg.PostgresConfig.ConnectionUrl)
	default:
		return nil, errors.Newf("unsupported storage driver: %v", cfg.StorageDriver)
	}
}

// Close releases the database connection if the container opened it.
func (c *Container) Close() error {
	if c.ownsDB && c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
