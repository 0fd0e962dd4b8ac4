package workerpool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiasegelund/duckingit/pkg/config"
	"github.com/tobiasegelund/duckingit/pkg/engine"
	"github.com/tobiasegelund/duckingit/pkg/types"
)

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{Concurrency: 0}, nil)
	require.Error(t, err)
}

func TestSubmitExecutesTask(t *testing.T) {
	eng, err := engine.Open(context.Background(), config.DefaultEngineConfig())
	require.NoError(t, err)
	defer eng.Close()

	pool, err := New(Config{Concurrency: 2}, eng)
	require.NoError(t, err)
	defer pool.Stop()

	task := &types.Task{
		Subquery:    "SELECT 1 AS a",
		Fingerprint: "deadbeef",
		OutputKey:   t.TempDir() + "/out.parquet",
	}

	select {
	case res := <-pool.Submit(context.Background(), task):
		assert.NoError(t, res.Err)
		assert.Equal(t, task, res.Task)
	case <-time.After(5 * time.Second):
		t.Fatal("task did not complete")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	eng, err := engine.Open(context.Background(), config.DefaultEngineConfig())
	require.NoError(t, err)
	defer eng.Close()

	pool, err := New(Config{Concurrency: 1}, eng)
	require.NoError(t, err)

	pool.Stop()
	pool.Stop()
}
