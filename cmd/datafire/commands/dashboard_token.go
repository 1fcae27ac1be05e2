package commands

import (
	"fmt"

	"github.com/RezaEskandarii/datafire/web"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var tokenOperator string

var DashboardTokenCmd = &cobra.Command{
	Use:   "dashboard-token",
	Short: "Issue an API bearer token",
	Long: `Sign a bearer token for the JSON API with dashboard.secret_key. Send it as
"Authorization: Bearer <token>" or in the auth cookie.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := v.GetString("dashboard.secret_key")
		if secret == "" {
			return errors.New("dashboard.secret_key is not configured, the API is open")
		}
		if tokenOperator == "" {
			return errors.New("--operator is required")
		}
		fmt.Fprintln(cmd.OutOrStdout(), web.GenerateAuthToken(tokenOperator, secret))
		return nil
	},
}

func init() {
	DashboardTokenCmd.Flags().StringVar(&tokenOperator, "operator", "", "Name recorded in API access logs")
}
