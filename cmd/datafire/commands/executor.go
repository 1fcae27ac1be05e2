package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/RezaEskandarii/datafire/app"
	"github.com/RezaEskandarii/datafire/types"
	"github.com/spf13/cobra"
)

var ExecutorCmd = &cobra.Command{
	Use:     "executor",
	Aliases: []string{"agents"},
	Short:   "Manage registered executors",
}

var (
	executorName  string
	executorURL   string
	executorToken string
)

var executorAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register an executor after checking its health",
	Long: `Register a running executor. The token is the one printed by
"datafire agent" or "datafire token" on the executor's machine.

Example:
  datafire executor add --name edge-1 --url 10.0.0.5:8001 --token 4f1c...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(c *app.Container) error {
			id, err := c.AgentManager.Register(cmd.Context(), &types.Agent{
				Name:  executorName,
				URL:   executorURL,
				Token: executorToken,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered executor %d\n", id)
			return nil
		})
	},
}

var executorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List executors with a fresh health check",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(c *app.Container) error {
			online, err := c.AgentManager.RefreshHealth(cmd.Context())
			if err != nil {
				return err
			}
			agents, err := c.AgentManager.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tURL\tSTATUS")
			for _, a := range agents {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", a.ID, a.Name, a.URL, a.Status)
			}
			fmt.Fprintf(w, "\n%d of %d online\n", online, len(agents))
			return w.Flush()
		})
	},
}

func init() {
	executorAddCmd.Flags().StringVar(&executorName, "name", "", "Display name")
	executorAddCmd.Flags().StringVar(&executorURL, "url", "", "Executor address, http:// is assumed")
	executorAddCmd.Flags().StringVar(&executorToken, "token", "", "Executor token")
	_ = executorAddCmd.MarkFlagRequired("url")
	_ = executorAddCmd.MarkFlagRequired("token")

	ExecutorCmd.AddCommand(executorAddCmd, executorListCmd)
}
