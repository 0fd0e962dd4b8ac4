// Package dataset implements a write-mode conflict check and
// read-back view around a plan's execution, on top of pkg/controller.
package dataset

import (
	"context"
	"strings"

	"github.com/tobiasegelund/duckingit/pkg/blobstore"
	"github.com/tobiasegelund/duckingit/pkg/controller"
	"github.com/tobiasegelund/duckingit/pkg/events"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
	"github.com/tobiasegelund/duckingit/pkg/types"
)

// Mode selects the write-mode conflict check Materialize applies
// before executing a plan against a destination prefix:
// ModeErrorIfExists (errors on an existing destination) and
// ModeOverwrite (just re-execute; every
// task's output key is already content-addressed by its subquery
// fingerprint, so re-running naturally replaces a stale object rather
// than appending to it).
type Mode string

const (
	// ModeOverwrite executes the plan unconditionally, replacing
	// whatever objects already live under the destination prefix.
	ModeOverwrite Mode = "overwrite"
	// ModeErrorIfExists refuses to execute if the destination prefix
	// already holds any object.
	ModeErrorIfExists Mode = "error_if_exists"
)

// Dataset binds one Plan to a session's Controller and BlobStore,
// letting a caller materialize it under a destination prefix or read
// its root stage's output back as a table expression.
type Dataset struct {
	ctrl   *controller.Controller
	store  blobstore.Store
	plan   *types.Plan
	broker *events.Broker
}

// New returns a Dataset for plan, executed through ctrl and checked
// against store.
func New(ctrl *controller.Controller, store blobstore.Store, plan *types.Plan) *Dataset {
	return &Dataset{ctrl: ctrl, store: store, plan: plan}
}

// SetEventBroker attaches an events.Broker Materialize publishes a
// dataset.materialized event to once its plan finishes executing. A
// Dataset with no broker attached skips publishing entirely.
func (d *Dataset) SetEventBroker(b *events.Broker) {
	d.broker = b
}

// Materialize drives the Dataset's plan to completion under
// destPrefix and returns the root stage's output object keys.
// ModeErrorIfExists lists destPrefix first and fails with
// DatasetExists if it already holds any object; ModeOverwrite skips
// that check.
func (d *Dataset) Materialize(ctx context.Context, destPrefix string, mode Mode) ([]string, error) {
	if mode == ModeErrorIfExists {
		listPrefix := strings.TrimSuffix(destPrefix, "/") + "/"
		objs, err := d.store.List(ctx, listPrefix)
		if err != nil {
			return nil, err
		}
		if len(objs) > 0 {
			return nil, lakeerr.NewDatasetExists(destPrefix)
		}
	}

	outputs, err := d.ctrl.Execute(ctx, d.plan, destPrefix)
	if err != nil {
		return nil, err
	}

	if d.broker != nil {
		d.broker.Publish(&events.Event{
			Type:     events.EventDatasetMaterialized,
			Message:  "dataset materialized under " + destPrefix,
			Metadata: map[string]string{"dest_prefix": destPrefix, "mode": string(mode)},
		})
	}

	return outputs, nil
}

// Show materializes the Dataset under defaultPrefix and returns a
// READ_PARQUET([...]) expression over its root stage's output
// objects, letting a caller embed the result directly in a further
// query.
func (d *Dataset) Show(ctx context.Context, defaultPrefix string) (string, error) {
	outputs, err := d.Materialize(ctx, defaultPrefix, ModeOverwrite)
	if err != nil {
		return "", err
	}

	quoted := make([]string, len(outputs))
	for i, key := range outputs {
		quoted[i] = "'" + strings.ReplaceAll(key, "'", "''") + "'"
	}
	return "READ_PARQUET([" + strings.Join(quoted, ", ") + "])", nil
}
