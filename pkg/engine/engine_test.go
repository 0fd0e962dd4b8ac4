package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobiasegelund/duckingit/pkg/config"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
)

func TestOpenRejectsInvalidConfig(t *testing.T) {
	_, err := Open(context.Background(), config.EngineConfig{Database: ""})
	require.Error(t, err)
	assert.True(t, lakeerr.IsKind(err, lakeerr.KindConfigError))
}

func TestOpenInMemory(t *testing.T) {
	e, err := Open(context.Background(), config.DefaultEngineConfig())
	require.NoError(t, err)
	defer e.Close()

	err = e.Execute(context.Background(), "SELECT 1 AS a", t.TempDir()+"/out.parquet")
	assert.NoError(t, err)
}

func TestCopyFormatInfersFromExtension(t *testing.T) {
	assert.Equal(t, "PARQUET", copyFormat("out/abc.parquet"))
	assert.Equal(t, "JSON", copyFormat("out/abc.json"))
	assert.Equal(t, "CSV", copyFormat("out/abc.csv"))
	assert.Equal(t, "PARQUET", copyFormat("out/abc"))
}
