package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or edit the session configuration",
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the session configuration this invocation would run with",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := sessionFromFlags(cmd)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), sess.String())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <group.name> <value>",
	Short: "Override a single flat config key and print the result",
	Long: `set applies one "<group>.<name>" key/value pair to the session's
config and prints the session back out, the way a user would pipe a
value from their own config management into a one-off query.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := sessionFromFlags(cmd)
		if err != nil {
			return err
		}

		if err := sess.Set(args[0], args[1]); err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), sess.String())
		return nil
	},
}
