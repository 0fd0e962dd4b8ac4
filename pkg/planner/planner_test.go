package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
	"github.com/tobiasegelund/duckingit/pkg/sqlcanon"
	"github.com/tobiasegelund/duckingit/pkg/types"
)

func mustQuery(t *testing.T, sql string) *types.Query {
	t.Helper()
	q, err := sqlcanon.Parse(sql)
	require.NoError(t, err)
	return q
}

func TestPlanLeafScan(t *testing.T) {
	q := mustQuery(t, "SELECT a FROM READ_PARQUET(['s3://b/2023/*'])")
	plan, err := Plan(q)
	require.NoError(t, err)

	assert.Equal(t, types.StageScan, plan.Root.Kind)
	assert.True(t, plan.Root.IsLeaf())
	assert.Len(t, plan.DAG, 1)
}

func TestPlanCTEAggregate(t *testing.T) {
	q := mustQuery(t, "WITH x AS (SELECT a FROM READ_PARQUET(['s3://b/*'])) SELECT COUNT(*) FROM x")
	plan, err := Plan(q)
	require.NoError(t, err)

	require.Len(t, plan.DAG, 2)
	assert.Equal(t, types.StageAggregate, plan.Root.Kind)
	require.Len(t, plan.Root.Dependencies, 1)

	var scanStage *types.Stage
	for _, dep := range plan.Root.Dependencies {
		scanStage = dep
	}
	require.NotNil(t, scanStage)
	assert.Equal(t, types.StageScan, scanStage.Kind)
	assert.True(t, scanStage.IsLeaf())
	assert.Contains(t, plan.Root.SubSQL, scanStage.ID)
}

func TestPlanGroupByIsAggregate(t *testing.T) {
	q := mustQuery(t, "SELECT k, COUNT(*) FROM READ_PARQUET(['s3://b/*']) GROUP BY k")
	plan, err := Plan(q)
	require.NoError(t, err)
	assert.Equal(t, types.StageAggregate, plan.Root.Kind)
}

func TestPlanOrderByIsSort(t *testing.T) {
	q := mustQuery(t, "SELECT a FROM READ_PARQUET(['s3://b/*']) ORDER BY a")
	plan, err := Plan(q)
	require.NoError(t, err)
	assert.Equal(t, types.StageSort, plan.Root.Kind)
}

func TestPlanJoinPromotesKind(t *testing.T) {
	q := mustQuery(t, `WITH x AS (SELECT a, id FROM READ_PARQUET(['s3://b/x/*'])),
		y AS (SELECT id, v FROM READ_PARQUET(['s3://b/y/*']))
		SELECT x.a, y.v FROM x JOIN y ON x.id = y.id`)
	plan, err := Plan(q)
	require.NoError(t, err)

	assert.Equal(t, types.StageJoin, plan.Root.Kind)
	assert.Len(t, plan.Root.Dependencies, 2)
	assert.Len(t, plan.DAG, 3)
}

func TestPlanJoinOfRawLeafScansIsJoinKind(t *testing.T) {
	q := mustQuery(t, `SELECT x.a, y.b FROM READ_PARQUET(['s3://b/x/*']) AS x
		JOIN READ_PARQUET(['s3://b/y/*']) AS y ON x.id = y.id`)
	plan, err := Plan(q)
	require.NoError(t, err)

	// Neither side is a CTE/subquery dependency, so the old
	// dependency-count heuristic would have misclassified this as a
	// partitionable Scan; the FROM-shape still says Join.
	assert.Equal(t, types.StageJoin, plan.Root.Kind)
	assert.Empty(t, plan.Root.Dependencies)
}

func TestPlanJoinOfCTEAndRawLeafScanIsJoinKind(t *testing.T) {
	q := mustQuery(t, `WITH x AS (SELECT a, id FROM READ_PARQUET(['s3://b/x/*']))
		SELECT x.a, y.b FROM x JOIN READ_PARQUET(['s3://b/y/*']) AS y ON x.id = y.id`)
	plan, err := Plan(q)
	require.NoError(t, err)

	assert.Equal(t, types.StageJoin, plan.Root.Kind)
	assert.Len(t, plan.Root.Dependencies, 1)
}

func TestPlanRejectsTopLevelUnion(t *testing.T) {
	q := mustQuery(t, "SELECT a FROM t1 UNION SELECT a FROM t2")
	_, err := Plan(q)
	require.Error(t, err)
	assert.True(t, lakeerr.IsKind(err, lakeerr.KindUnsupportedDialect))
}

func TestPlanRejectsMultiFROM(t *testing.T) {
	q := mustQuery(t, "SELECT a FROM t1, t2")
	_, err := Plan(q)
	require.Error(t, err)
	assert.True(t, lakeerr.IsKind(err, lakeerr.KindUnsupportedDialect))
}

func TestPlanDAGHasExactlyOneRoot(t *testing.T) {
	q := mustQuery(t, "WITH x AS (SELECT a FROM READ_PARQUET(['s3://b/*'])) SELECT COUNT(*) FROM x")
	plan, err := Plan(q)
	require.NoError(t, err)

	roots := 0
	for _, s := range plan.DAG {
		if s.IsRoot() {
			roots++
		}
	}
	assert.Equal(t, 1, roots)
}

func TestPlanIdenticalSubqueriesShareStage(t *testing.T) {
	q := mustQuery(t, `WITH x AS (SELECT a FROM READ_PARQUET(['s3://b/*'])),
		y AS (SELECT a FROM READ_PARQUET(['s3://b/*']))
		SELECT x.a FROM x JOIN y ON x.a = y.a`)
	plan, err := Plan(q)
	require.NoError(t, err)

	// x and y lower to byte-identical sub_sql, so they must collapse to
	// the same stage id rather than appearing twice in the DAG.
	assert.Len(t, plan.DAG, 2)
}
