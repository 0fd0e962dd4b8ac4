// Package dispatch implements the Dispatcher (C6): handing a Task to a
// worker. Dispatch is fire-and-forget — completion is reported back
// asynchronously through a CompletionBus, never as this call's return
// value — so a Dispatcher only reports whether the task was *accepted*.
package dispatch

import "context"

// Dispatcher hands a task's fully concrete subquery to a worker for
// execution. A nil error means the worker accepted the task, not that
// it finished; the caller learns the outcome from a CompletionBus by
// matching requestID against the Event it eventually reports.
type Dispatcher interface {
	Dispatch(ctx context.Context, requestID, subquery, outputKey string) error

	// Warm invokes count no-op worker calls ahead of real dispatch, to
	// avoid paying first-invocation cold-start latency on the critical
	// path. A binding with no such cost (e.g. in-process) may no-op.
	Warm(ctx context.Context, count int) error
}
