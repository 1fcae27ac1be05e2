package commands

import (
	"fmt"
	"time"

	"github.com/RezaEskandarii/datafire/pgk/parser"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var cronCount int

var CronCmd = &cobra.Command{
	Use:   "cron <expression>",
	Short: "Show the next instants of a cron expression",
	Long: `Parse a 5 field (minute hour day month weekday) or 6 field (leading
seconds) cron expression and print its next instants in the configured
scheduler timezone.`,
	Args: cobra.ExactArgs(1),
	RunE: runCron,
}

func init() {
	CronCmd.Flags().IntVarP(&cronCount, "count", "n", 5, "Number of instants to print")
}

func runCron(cmd *cobra.Command, args []string) error {
	if cronCount < 1 {
		return errors.New("--count must be positive")
	}
	expr, err := parser.Parse(args[0])
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(v.GetString("scheduler.timezone"))
	if err != nil {
		return errors.Wrap(err, "scheduler.timezone")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", parser.Normalize(args[0]), loc)
	for _, t := range expr.NextN(time.Now().In(loc), cronCount) {
		fmt.Fprintln(out, t.Format(time.RFC3339))
	}
	return nil
}
