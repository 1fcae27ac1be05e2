package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RezaEskandarii/datafire/cmd/datafire/commands"
	"github.com/RezaEskandarii/datafire/internal/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "datafire",
	Short: "datafire - cron driven synthetic data generation",
	Long: `datafire renders templated records on a cron schedule and ships each
batch to a remote executor, which publishes it to a message broker or runs it
against a database.

Available commands:
  serve      - Run the scheduler, agent health checks and the JSON API
  agent      - Run an executor on this machine
  token      - Print this machine's executor token
  cron       - Show the next instants of a cron expression
  task       - Manage data tasks
  executor   - Manage registered executors
  broker     - Inspect broker queues

Examples:
  datafire serve --config datafire.yaml
  datafire agent --port 8001
  datafire cron "*/10 * * * * *" --count 3
  datafire task create --file orders.json`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := commands.LoadConfigFile(); err != nil {
			return err
		}
		// token and cron print to stdout and stay quiet
		if cmd.Name() == "token" || cmd.Name() == "cron" {
			return nil
		}
		if err := logger.Initialize(commands.JSONLogs()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&commands.ConfigPath, "config", "c", "", "Config file (toml, yaml or json)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.AgentCmd)
	rootCmd.AddCommand(commands.TokenCmd)
	rootCmd.AddCommand(commands.DashboardTokenCmd)
	rootCmd.AddCommand(commands.CronCmd)
	rootCmd.AddCommand(commands.TaskCmd)
	rootCmd.AddCommand(commands.ExecutorCmd)
	rootCmd.AddCommand(commands.BrokerCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
