// Command lakerunner parses a SQL query, plans it into a stage DAG, and
// drives its execution through a Dispatcher/CompletionBus/BlobStore
// trio.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tobiasegelund/duckingit/pkg/config"
	"github.com/tobiasegelund/duckingit/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lakerunner",
	Short: "Query a data lake by planning and executing SQL over object storage",
	Long: `lakerunner parses a SQL query, plans it into a stage DAG, and
drives its execution through a Dispatcher/CompletionBus/BlobStore trio.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("provider", string(config.ProviderAWS), "Cloud provider backing the Dispatcher/CompletionBus/BlobStore")
	rootCmd.PersistentFlags().Int("max-invocations", 0, "Fan-out ceiling for a Scan stage (0 keeps the session default)")
	rootCmd.PersistentFlags().String("output-prefix", "lakerunner-scratch", "Destination prefix each stage's task outputs are written under")
	rootCmd.PersistentFlags().Bool("verbose", false, "Stream query/stage/task lifecycle events to stderr")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(configCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// sessionFromFlags builds the Session this invocation runs against:
// config.Default(), with the root command's persistent overrides
// folded in.
func sessionFromFlags(cmd *cobra.Command) (*config.Session, error) {
	sess := config.Default()

	if provider, _ := cmd.Flags().GetString("provider"); provider != "" {
		if err := sess.Set("session.provider", provider); err != nil {
			return nil, err
		}
	}

	if maxInvocations, _ := cmd.Flags().GetInt("max-invocations"); maxInvocations > 0 {
		if err := sess.Set("session.max_invocations", fmt.Sprintf("%d", maxInvocations)); err != nil {
			return nil, err
		}
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		sess.Session.Verbose = true
	}

	return sess, nil
}
