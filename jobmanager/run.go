package jobmanager

import (
	"context"
	"runtime"

	"github.com/RezaEskandarii/datafire/app"
	"github.com/RezaEskandarii/datafire/internal/db"
	"github.com/RezaEskandarii/datafire/types/config"
	"github.com/RezaEskandarii/datafire/web"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// New prepares a datafire instance from cfg without starting it.
//
// The function performs the following steps:
//  1. Builds the dependency container, opening the configured storage unless
//     one is injected through opts.
//  2. Applies the embedded schema, guarded by the migration advisory lock so
//     concurrent instances do not race.
//
// Call Run on the result to start scheduling.
func New(ctx context.Context, cfg *config.DatafireConfig, opts ...app.ContainerOption) (*app.Container, error) {
	container, err := app.NewContainer(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	container.Logger.Infow("booting datafire", "gomaxprocs", runtime.GOMAXPROCS(0), "driver", cfg.StorageDriver)

	if err := db.Init(ctx, container.DB, container.LockManager, container.Logger.Named("db")); err != nil {
		_ = container.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}
	return container, nil
}

// Run starts the scheduler, the agent health refresher and, when enabled,
// the API server. It blocks until ctx is cancelled or one of them fails, and
// returns after all of them have stopped.
func Run(ctx context.Context, container *app.Container) error {
	cfg := container.Config
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ignoreCancel(container.Scheduler.Start(ctx))
	})
	g.Go(func() error {
		return ignoreCancel(container.AgentManager.Start(ctx, cfg.HealthCheckInterval))
	})
	if cfg.DashboardEnabled {
		api := web.NewAPIServer(
			container.TaskManager,
			container.AgentManager,
			cfg.DashboardSecret,
			cfg.DashboardPort,
			cfg.Location,
			container.Logger.Named("api"),
		)
		g.Go(func() error {
			return api.Serve(ctx)
		})
	}

	err := g.Wait()
	container.Logger.Infow("datafire stopped")
	return err
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
