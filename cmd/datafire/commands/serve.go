package commands

import (
	"github.com/RezaEskandarii/datafire/app"
	"github.com/RezaEskandarii/datafire/internal/logger"
	"github.com/RezaEskandarii/datafire/jobmanager"
	"github.com/RezaEskandarii/datafire/types/config"
	"github.com/spf13/cobra"
)

var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler",
	Long: `Run the scheduler loop, the executor health refresher and, unless
dashboard.enabled is false, the JSON API with /metrics.

Several instances may run against the same database; only the one holding
the scheduler lock ticks, the others take over when it exits.`,
	RunE: runServe,
}

func init() {
	ServeCmd.Flags().Uint("port", config.DefaultDashboardPort, "API port")
	ServeCmd.Flags().String("postgres-url", "", "PostgreSQL connection URL")
	ServeCmd.Flags().String("timezone", "", "Zone in which cron expressions are evaluated")
	_ = v.BindPFlag("dashboard.port", ServeCmd.Flags().Lookup("port"))
	_ = v.BindPFlag("postgres.url", ServeCmd.Flags().Lookup("postgres-url"))
	_ = v.BindPFlag("scheduler.timezone", ServeCmd.Flags().Lookup("timezone"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	container, err := jobmanager.New(ctx, cfg, app.WithLogger(logger.Logger))
	if err != nil {
		return err
	}
	defer container.Close()

	return jobmanager.Run(ctx, container)
}
