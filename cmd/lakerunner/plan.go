package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tobiasegelund/duckingit/pkg/planner"
	"github.com/tobiasegelund/duckingit/pkg/sqlcanon"
)

var planCmd = &cobra.Command{
	Use:   "plan <sql>",
	Short: "Print a query's stage DAG without executing it",
	Long: `plan parses and canonicalizes a query, builds its stage DAG, and
prints it — a diagnostic companion to query that never dispatches a
single task.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := sqlcanon.Parse(args[0])
		if err != nil {
			return err
		}

		plan, err := planner.Plan(query)
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), plan.String())
		return nil
	},
}
