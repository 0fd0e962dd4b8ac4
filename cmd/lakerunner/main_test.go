package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiasegelund/duckingit/pkg/planner"
	"github.com/tobiasegelund/duckingit/pkg/sqlcanon"
)

func parseAndSoleBucket(t *testing.T, query string) (string, error) {
	t.Helper()
	q, err := sqlcanon.Parse(query)
	require.NoError(t, err)
	plan, err := planner.Plan(q)
	require.NoError(t, err)
	return soleBucket(plan)
}

// freshRootCmd rebuilds a root command with its own flag set so tests
// don't trip over state left behind by rootCmd's package-level init
// (cobra flags are mutated in place by parsing).
func freshRootCmd() *cobra.Command {
	root := &cobra.Command{Use: "lakerunner"}
	root.PersistentFlags().String("log-level", "info", "")
	root.PersistentFlags().Bool("log-json", false, "")
	root.PersistentFlags().String("provider", "aws", "")
	root.PersistentFlags().Int("max-invocations", 0, "")
	root.PersistentFlags().String("output-prefix", "lakerunner-scratch", "")
	root.AddCommand(planCmd)
	root.AddCommand(configCmd)
	return root
}

func TestPlanCommandPrintsStageDAG(t *testing.T) {
	root := freshRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"plan", "WITH x AS (SELECT a FROM READ_CSV_AUTO(['s3://bucket/2023/*'])) SELECT a FROM x ORDER BY a"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "kind=scan")
	assert.Contains(t, out.String(), "kind=sort")
}

func TestPlanCommandRejectsUnparsableQuery(t *testing.T) {
	root := freshRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"plan", "NOT VALID SQL ((("})

	assert.Error(t, root.Execute())
}

func TestConfigShowPrintsDefaults(t *testing.T) {
	root := freshRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"config", "show"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "aws")
}

func TestConfigSetOverridesKeyAndPrintsResult(t *testing.T) {
	root := freshRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"config", "set", "session.max_invocations", "42"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "42")
}

func TestConfigSetRejectsUnknownKey(t *testing.T) {
	root := freshRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs([]string{"config", "set", "not.a.real.key", "x"})

	assert.Error(t, root.Execute())
}

func TestSoleBucketRejectsMultiBucketQuery(t *testing.T) {
	_, err := parseAndSoleBucket(t, "WITH x AS (SELECT a FROM READ_CSV_AUTO(['s3://a/1'])), y AS (SELECT a FROM READ_CSV_AUTO(['s3://b/2'])) SELECT x.a FROM x JOIN y ON x.a = y.a")
	require.Error(t, err)
}

func TestSoleBucketResolvesSingleBucket(t *testing.T) {
	bucket, err := parseAndSoleBucket(t, "WITH x AS (SELECT a FROM READ_CSV_AUTO(['s3://a/1'])), y AS (SELECT a FROM READ_CSV_AUTO(['s3://a/2'])) SELECT x.a FROM x JOIN y ON x.a = y.a")
	require.NoError(t, err)
	assert.Equal(t, "a", bucket)
}
