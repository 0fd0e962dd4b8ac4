package completionbus

import (
	"context"
	"time"

	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
)

// InMemory is a channel-backed Bus used by the in-process Dispatcher
// and by tests — no network, no real queue, but still two separate
// logical queues polled independently.
type InMemory struct {
	success  chan Event
	failure  chan Event
	maxBatch int
}

// NewInMemory creates an InMemory bus with the given per-queue buffer
// size (0 is a valid, unbuffered bus). A poll drains at most 10
// messages at a time, mirroring SQS's own MaxNumberOfMessages ceiling.
func NewInMemory(buffer int) *InMemory {
	return &InMemory{
		success:  make(chan Event, buffer),
		failure:  make(chan Event, buffer),
		maxBatch: 10,
	}
}

func (b *InMemory) PublishSuccess(ctx context.Context, requestID, outputKey string) error {
	return b.publish(ctx, b.success, Event{RequestID: requestID, OutputKey: outputKey, Handle: requestID})
}

func (b *InMemory) PublishFailure(ctx context.Context, requestID, reason string) error {
	return b.publish(ctx, b.failure, Event{
		RequestID: requestID,
		Handle:    requestID,
		Err:       lakeerr.NewTaskFailed(requestID, reason),
	})
}

func (b *InMemory) publish(ctx context.Context, ch chan Event, e Event) error {
	select {
	case ch <- e:
		return nil
	case <-ctx.Done():
		return lakeerr.Wrap(ctx.Err(), lakeerr.KindDispatchError, "publishing completion event")
	}
}

func (b *InMemory) PollSuccess(ctx context.Context, maxWait time.Duration) ([]Event, error) {
	return b.poll(ctx, b.success, maxWait)
}

func (b *InMemory) PollFailure(ctx context.Context, maxWait time.Duration) ([]Event, error) {
	return b.poll(ctx, b.failure, maxWait)
}

// poll waits up to maxWait for the first event, then drains whatever
// else is immediately available on ch up to maxBatch, matching the
// "up to MaxNumberOfMessages completions" batching contract without
// blocking a second time once anything has arrived.
func (b *InMemory) poll(ctx context.Context, ch chan Event, maxWait time.Duration) ([]Event, error) {
	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	var events []Event
	select {
	case e := <-ch:
		events = append(events, e)
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, lakeerr.Wrap(ctx.Err(), lakeerr.KindStageTimeout, "waiting for task completion")
	}

	for len(events) < b.maxBatch {
		select {
		case e := <-ch:
			events = append(events, e)
		default:
			return events, nil
		}
	}
	return events, nil
}

// Ack is a no-op for InMemory: a message is removed from its channel
// the instant it's received, so there is nothing left to redeliver.
func (b *InMemory) Ack(ctx context.Context, handles []string) error {
	return nil
}

// Purge discards every pending message on both queues without
// blocking once either is empty.
func (b *InMemory) Purge(ctx context.Context) error {
	drain(b.success)
	drain(b.failure)
	return nil
}

func drain(ch chan Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
