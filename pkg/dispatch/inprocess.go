package dispatch

import (
	"context"

	"github.com/tobiasegelund/duckingit/pkg/completionbus"
	"github.com/tobiasegelund/duckingit/pkg/types"
	"github.com/tobiasegelund/duckingit/pkg/workerpool"
)

// pathResolver turns a blobstore-relative key into the literal
// filesystem path DuckDB's COPY/READ_* must address directly, as
// blobstore.LocalStore does. The real S3 binding needs no such
// translation: an "s3://bucket/key" URI is already what DuckDB's
// httpfs extension expects, so the Lambda dispatcher passes its
// outputKey straight through to the worker payload.
type pathResolver interface {
	Path(key string) string
}

// InProcess dispatches a task straight into a local workerpool.Pool
// and, once it finishes, reports the outcome on a completionbus.Bus —
// collapsing the real system's worker-function-plus-queue round trip
// into one process, for local development and the end-to-end tests in
// pkg/controller.
type InProcess struct {
	pool  *workerpool.Pool
	bus   completionbus.Bus
	store pathResolver
}

// NewInProcess returns a Dispatcher backed by pool, reporting
// completions on bus. store resolves a task's blobstore-relative
// output key to the real path the embedded engine writes to; nil is
// accepted (and outputKey passed through unresolved) so Warm-only
// tests can construct a dispatcher without a store.
func NewInProcess(pool *workerpool.Pool, bus completionbus.Bus, store pathResolver) *InProcess {
	return &InProcess{pool: pool, bus: bus, store: store}
}

func (d *InProcess) Dispatch(ctx context.Context, requestID, subquery, outputKey string) error {
	writePath := outputKey
	if d.store != nil {
		writePath = d.store.Path(outputKey)
	}

	task := &types.Task{Subquery: subquery, Fingerprint: requestID, OutputKey: writePath}
	resultCh := d.pool.Submit(ctx, task)

	go func() {
		res := <-resultCh
		if res.Err != nil {
			_ = d.bus.PublishFailure(context.Background(), requestID, res.Err.Error())
			return
		}
		// Reports the logical, blobstore-relative key (not writePath)
		// so the Controller's cache index and the Store agree on the
		// same address space.
		_ = d.bus.PublishSuccess(context.Background(), requestID, outputKey)
	}()

	return nil
}

// Warm is a no-op: an in-process pool's goroutines are already warm.
func (d *InProcess) Warm(ctx context.Context, count int) error {
	return nil
}

// Active reports how many pool goroutines are currently executing a
// task, satisfying the metrics.StatsProvider WorkerPoolActive signal
// for an in-process Controller.
func (d *InProcess) Active() int {
	return d.pool.Active()
}
