package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/RezaEskandarii/datafire/app"
	"github.com/RezaEskandarii/datafire/internal/state"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var TaskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage data tasks",
	Long: `Create and control data tasks directly against storage. A running
"datafire serve" picks changes up on its next tick.

Examples:
  datafire task create --file orders.json
  datafire task start 3
  datafire task runs 3`,
}

var (
	taskFile     string
	taskStatus   string
	taskPage     int
	taskPageSize int
)

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task from a JSON file",
	Long: `Create a stopped task from a JSON document, e.g.

  {
    "name": "orders",
    "kind": "broker",
    "cron": "*/10 * * * * *",
    "batch_size": 100,
    "agent_id": 1,
    "template": "{\"id\": \"{seq}\", \"at\": \"{now}\"}",
    "params": [
      {"param": "seq", "type": "round_robin", "value": "a,b,c"},
      {"param": "now", "type": "current_time", "value": "%Y-%m-%d %H:%M:%S"}
    ],
    "connector": {"broker": {"url": "amqp://localhost:5672/", "topic": "orders"}}
  }`,
	RunE: runTaskCreate,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE:  runTaskList,
}

var taskStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Start scheduling a task",
	Args:  cobra.ExactArgs(1),
	RunE: withTaskID(func(cmd *cobra.Command, id int64) error {
		return withContainer(cmd, func(c *app.Container) error {
			return c.TaskManager.Start(cmd.Context(), id)
		})
	}),
}

var taskStopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "Stop scheduling a task",
	Args:  cobra.ExactArgs(1),
	RunE: withTaskID(func(cmd *cobra.Command, id int64) error {
		return withContainer(cmd, func(c *app.Container) error {
			return c.TaskManager.Stop(cmd.Context(), id)
		})
	}),
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a task and its execution history",
	Args:  cobra.ExactArgs(1),
	RunE: withTaskID(func(cmd *cobra.Command, id int64) error {
		return withContainer(cmd, func(c *app.Container) error {
			return c.TaskManager.Delete(cmd.Context(), id)
		})
	}),
}

var taskRunCmd = &cobra.Command{
	Use:   "run <id>",
	Short: "Dispatch one batch now",
	Args:  cobra.ExactArgs(1),
	RunE: withTaskID(func(cmd *cobra.Command, id int64) error {
		return withContainer(cmd, func(c *app.Container) error {
			res, err := c.TaskManager.RunOnce(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		})
	}),
}

var taskRunsCmd = &cobra.Command{
	Use:   "runs <id>",
	Short: "Show the execution history of a task",
	Args:  cobra.ExactArgs(1),
	RunE: withTaskID(func(cmd *cobra.Command, id int64) error {
		return withContainer(cmd, func(c *app.Container) error {
			runs, err := c.TaskManager.Executions(cmd.Context(), id)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BATCH\tSCHEDULED\tOK\tRECORDS\tMESSAGE")
			for _, r := range runs {
				fmt.Fprintf(w, "%d\t%s\t%t\t%d\t%s\n", r.BatchNo, r.ScheduledAt.Format("2006-01-02 15:04:05"), r.Success, r.RecordsCount, r.ResultMessage)
			}
			return w.Flush()
		})
	}),
}

func init() {
	taskCreateCmd.Flags().StringVarP(&taskFile, "file", "f", "", "Task definition (JSON)")
	_ = taskCreateCmd.MarkFlagRequired("file")

	taskListCmd.Flags().StringVar(&taskStatus, "status", "", "Only tasks in this status (running, stopped)")
	taskListCmd.Flags().IntVar(&taskPage, "page", 1, "Page number")
	taskListCmd.Flags().IntVar(&taskPageSize, "page-size", 20, "Tasks per page")

	TaskCmd.AddCommand(taskCreateCmd, taskListCmd, taskStartCmd, taskStopCmd, taskDeleteCmd, taskRunCmd, taskRunsCmd)
}

func runTaskCreate(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(taskFile)
	if err != nil {
		return errors.Wrapf(err, "read %s", taskFile)
	}
	var task types.DataTask
	if err := json.Unmarshal(raw, &task); err != nil {
		return errors.Wrapf(err, "parse %s", taskFile)
	}
	return withContainer(cmd, func(c *app.Container) error {
		id, err := c.TaskManager.Create(cmd.Context(), &task)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created task %d (stopped), start it with: datafire task start %d\n", id, id)
		return nil
	})
}

func runTaskList(cmd *cobra.Command, args []string) error {
	return withContainer(cmd, func(c *app.Container) error {
		page, err := c.TaskManager.List(cmd.Context(), taskPage, taskPageSize, state.TaskStatus(taskStatus))
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tKIND\tCRON\tSTATUS\tBATCHES")
		for _, t := range page.Items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\n", t.ID, t.Name, t.Kind, t.CronExpr, t.Status, t.LastBatchNo)
		}
		fmt.Fprintf(w, "\npage %d of %d, %d tasks\n", page.Page, page.TotalPages, page.TotalItems)
		return w.Flush()
	})
}

func withTaskID(fn func(cmd *cobra.Command, id int64) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return errors.Newf("invalid id %q", args[0])
		}
		return fn(cmd, id)
	}
}
