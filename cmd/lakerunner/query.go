package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tobiasegelund/duckingit/pkg/blobstore"
	"github.com/tobiasegelund/duckingit/pkg/completionbus"
	"github.com/tobiasegelund/duckingit/pkg/controller"
	"github.com/tobiasegelund/duckingit/pkg/dataset"
	"github.com/tobiasegelund/duckingit/pkg/dispatch"
	"github.com/tobiasegelund/duckingit/pkg/events"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
	"github.com/tobiasegelund/duckingit/pkg/planner"
	"github.com/tobiasegelund/duckingit/pkg/source"
	"github.com/tobiasegelund/duckingit/pkg/sqlcanon"
	"github.com/tobiasegelund/duckingit/pkg/taskbuilder"
	"github.com/tobiasegelund/duckingit/pkg/types"
)

func init() {
	queryCmd.Flags().String("mode", "overwrite", `Write-mode conflict check for --output-prefix: "overwrite" or "error_if_exists"`)
	queryCmd.Flags().Bool("show", false, "Instead of listing output keys, print a READ_PARQUET([...]) expression over the result")
}

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Parse, plan, and execute a query against the data lake",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sess, err := sessionFromFlags(cmd)
		if err != nil {
			return err
		}

		q, err := sqlcanon.Parse(args[0])
		if err != nil {
			return err
		}
		plan, err := planner.Plan(q)
		if err != nil {
			return err
		}

		bucket, err := soleBucket(plan)
		if err != nil {
			return err
		}

		store, err := blobstore.NewS3Store(ctx, bucket)
		if err != nil {
			return err
		}
		defer store.Close()

		disp, err := dispatch.NewLambda(ctx, sess.Worker)
		if err != nil {
			return err
		}
		bus, err := completionbus.NewSQS(ctx, sess.Bus)
		if err != nil {
			return err
		}

		if sess.Worker.WarmUp {
			warmCount := sess.Session.MaxInvocations
			if warmCount <= 0 {
				warmCount = 1
			}
			if err := disp.Warm(ctx, warmCount); err != nil {
				return err
			}
		}

		resolver := source.New(store)
		cacheIdx := controller.NewCache(sess.Session.CacheExpirationTime, store)
		ctrl := controller.New(disp, bus, resolver, cacheIdx, sess.Session, sess.Bus)

		ds := dataset.New(ctrl, store, plan)

		if sess.Session.Verbose {
			broker := events.NewBroker()
			broker.Start()
			defer broker.Stop()
			ctrl.SetEventBroker(broker)
			ds.SetEventBroker(broker)

			sub := broker.Subscribe()
			defer broker.Unsubscribe(sub)
			go func() {
				for ev := range sub {
					fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s %v\n", ev.Type, ev.Message, ev.Metadata)
				}
			}()
		}

		outputPrefix, _ := cmd.Flags().GetString("output-prefix")
		showMode, _ := cmd.Flags().GetBool("show")
		if showMode {
			expr, err := ds.Show(ctx, outputPrefix)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), expr)
			return nil
		}

		modeFlag, _ := cmd.Flags().GetString("mode")
		mode, err := parseMode(modeFlag)
		if err != nil {
			return err
		}

		outputs, err := ds.Materialize(ctx, outputPrefix, mode)
		if err != nil {
			return err
		}

		for _, key := range outputs {
			fmt.Fprintln(cmd.OutOrStdout(), key)
		}
		return nil
	},
}

func parseMode(s string) (dataset.Mode, error) {
	switch s {
	case string(dataset.ModeOverwrite):
		return dataset.ModeOverwrite, nil
	case string(dataset.ModeErrorIfExists):
		return dataset.ModeErrorIfExists, nil
	default:
		return "", lakeerr.Newf(lakeerr.KindConfigError, "unknown --mode %q, want %q or %q", s, dataset.ModeOverwrite, dataset.ModeErrorIfExists)
	}
}

// soleBucket returns the single bucket every leaf Scan stage in plan
// references. The Source Resolver's Store is scoped to one bucket
// (pkg/source's doc comment), so a query spanning more than one is
// rejected rather than silently resolved against whichever bucket
// happened to be opened first.
func soleBucket(plan *types.Plan) (string, error) {
	seen := make(map[string]struct{})
	for _, leaf := range plan.Leaves() {
		uri, err := taskbuilder.LeafSourceURI(leaf)
		if err != nil {
			return "", err
		}
		bucket, _, err := source.ParseURI(uri)
		if err != nil {
			return "", err
		}
		seen[bucket] = struct{}{}
	}

	if len(seen) == 0 {
		return "", lakeerr.New(lakeerr.KindInvalidSource, "query has no leaf source reference")
	}
	if len(seen) > 1 {
		buckets := make([]string, 0, len(seen))
		for b := range seen {
			buckets = append(buckets, b)
		}
		return "", lakeerr.Newf(lakeerr.KindInvalidSource,
			"query spans multiple buckets (%s); a single BlobStore scope can't resolve both", strings.Join(buckets, ", "))
	}

	for b := range seen {
		return b, nil
	}
	return "", nil
}
