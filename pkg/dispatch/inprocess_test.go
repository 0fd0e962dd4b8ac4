package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiasegelund/duckingit/pkg/completionbus"
	"github.com/tobiasegelund/duckingit/pkg/config"
	"github.com/tobiasegelund/duckingit/pkg/engine"
	"github.com/tobiasegelund/duckingit/pkg/workerpool"
)

func TestInProcessDispatchReportsSuccess(t *testing.T) {
	eng, err := engine.Open(context.Background(), config.DefaultEngineConfig())
	require.NoError(t, err)
	defer eng.Close()

	pool, err := workerpool.New(workerpool.Config{Concurrency: 1}, eng)
	require.NoError(t, err)
	defer pool.Stop()

	bus := completionbus.NewInMemory(1)
	d := NewInProcess(pool, bus, nil)

	outputKey := t.TempDir() + "/out.parquet"
	require.NoError(t, d.Dispatch(context.Background(), "req-1", "SELECT 1 AS a", outputKey))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := bus.PollSuccess(ctx, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.NoError(t, events[0].Err)
	assert.Equal(t, outputKey, events[0].OutputKey)
}

func TestInProcessWarmIsNoop(t *testing.T) {
	d := NewInProcess(nil, nil, nil)
	assert.NoError(t, d.Warm(context.Background(), 5))
}
