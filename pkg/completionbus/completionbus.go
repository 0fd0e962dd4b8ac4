// Package completionbus implements the CompletionBus (C7): the
// asynchronous channel a dispatched task's outcome travels back on.
// Dispatch and completion are deliberately decoupled — a Dispatcher
// call only confirms a worker accepted the task; the Controller learns
// whether it actually succeeded by polling a Bus.
//
// The interface models two logical queues
// (success, failure), each polled independently with a bounded wait
// and a message cap, an explicit batch Ack, and a Purge used to flush
// stale failure messages once a stage has already failed.
package completionbus

import (
	"context"
	"time"
)

// Event is one task's reported outcome, keyed by the request id the
// Dispatcher generated when it handed the task to a worker. Handle is
// opaque and must be passed to Ack once the Controller has durably
// accounted for the event, to avoid redelivery. Err is nil for a
// success-queue event; a failure-queue event always carries a
// *lakeerr.Error of KindTaskFailed with the worker's raw error string
// as Details.
type Event struct {
	RequestID string
	OutputKey string
	Handle    string
	Err       error
}

// Bus is both ends of the completion channel: PublishSuccess/Failure
// are called by whatever ran the task (the in-process worker pool, or
// a worker function's own completion report); PollSuccess/PollFailure,
// Ack, and Purge are called by the Controller.
type Bus interface {
	PublishSuccess(ctx context.Context, requestID, outputKey string) error
	PublishFailure(ctx context.Context, requestID, reason string) error

	// PollSuccess returns up to the implementation's configured
	// MaxNumberOfMessages success events, waiting up to maxWait if
	// none are immediately available. A zero-length, nil-error result
	// means the wait elapsed with nothing to report.
	PollSuccess(ctx context.Context, maxWait time.Duration) ([]Event, error)

	// PollFailure is PollSuccess's failure-queue counterpart.
	PollFailure(ctx context.Context, maxWait time.Duration) ([]Event, error)

	// Ack durably acknowledges handles so they are not redelivered.
	Ack(ctx context.Context, handles []string) error

	// Purge discards every pending message on both queues. Used after
	// a stage fails, so a late or redelivered failure message from
	// that stage cannot be mistaken for one belonging to the next.
	Purge(ctx context.Context) error
}
