package completionbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
)

func TestInMemoryPublishSuccessThenPoll(t *testing.T) {
	bus := NewInMemory(1)
	ctx := context.Background()

	require.NoError(t, bus.PublishSuccess(ctx, "req-1", "out/f1.parquet"))

	events, err := bus.PollSuccess(ctx, time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, "out/f1.parquet", events[0].OutputKey)
	assert.NoError(t, events[0].Err)
}

func TestInMemoryPublishFailureThenPoll(t *testing.T) {
	bus := NewInMemory(1)
	ctx := context.Background()

	require.NoError(t, bus.PublishFailure(ctx, "req-2", "boom"))

	events, err := bus.PollFailure(ctx, time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "req-2", events[0].RequestID)
	require.Error(t, events[0].Err)
	assert.True(t, lakeerr.IsKind(events[0].Err, lakeerr.KindTaskFailed))
}

func TestInMemoryPollSuccessTimesOutWithNothingToReport(t *testing.T) {
	bus := NewInMemory(0)

	events, err := bus.PollSuccess(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestInMemoryPollSuccessAbortsOnContextCancellation(t *testing.T) {
	bus := NewInMemory(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bus.PollSuccess(ctx, time.Second)
	require.Error(t, err)
}

func TestInMemoryPollDrainsUpToMaxBatch(t *testing.T) {
	bus := NewInMemory(20)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		require.NoError(t, bus.PublishSuccess(ctx, "req", "out"))
	}

	events, err := bus.PollSuccess(ctx, time.Second)
	require.NoError(t, err)
	assert.Len(t, events, bus.maxBatch)
}

func TestInMemoryPurgeDiscardsBothQueues(t *testing.T) {
	bus := NewInMemory(4)
	ctx := context.Background()

	require.NoError(t, bus.PublishSuccess(ctx, "req-1", "out"))
	require.NoError(t, bus.PublishFailure(ctx, "req-2", "boom"))

	require.NoError(t, bus.Purge(ctx))

	success, err := bus.PollSuccess(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, success)

	failure, err := bus.PollFailure(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, failure)
}

func TestInMemoryAckIsANoOp(t *testing.T) {
	bus := NewInMemory(1)
	assert.NoError(t, bus.Ack(context.Background(), []string{"anything"}))
}
