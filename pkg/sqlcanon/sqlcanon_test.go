package sqlcanon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
)

func TestParseProducesFingerprint(t *testing.T) {
	q, err := Parse("select a, b from t where a > 1")
	require.NoError(t, err)
	assert.NotEmpty(t, q.SQL)
	assert.Len(t, q.Fingerprint, 32)
}

func TestCanonicalizeIsIdempotent(t *testing.T) {
	q1, err := Parse("SELECT a,b FROM t WHERE a>1")
	require.NoError(t, err)

	q2, err := Parse(q1.SQL)
	require.NoError(t, err)

	assert.Equal(t, q1.SQL, q2.SQL)
}

func TestEquivalentTextSameFingerprint(t *testing.T) {
	q1, err := Parse("select count(*) from t")
	require.NoError(t, err)

	q2, err := Parse("SELECT   COUNT(*)   FROM   t")
	require.NoError(t, err)

	assert.Equal(t, q1.SQL, q2.SQL)
	assert.Equal(t, q1.Fingerprint, q2.Fingerprint)
}

func TestParseErrorOnInvalidSQL(t *testing.T) {
	_, err := Parse("SELECT FROM WHERE")
	require.Error(t, err)
	assert.True(t, lakeerr.IsKind(err, lakeerr.KindParseError))
}

func TestFingerprintStableLength(t *testing.T) {
	fp := Fingerprint("select 1")
	assert.Len(t, fp, 32)
	assert.Equal(t, fp, Fingerprint("select 1"))
}

func TestParseHandlesDuckDBReaderCall(t *testing.T) {
	q, err := Parse("SELECT a FROM READ_PARQUET(['s3://bucket/2023/*'])")
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "READ_PARQUET(['s3://bucket/2023/*'])")
}

func TestParseHandlesMultipleReaderCallsAndJoins(t *testing.T) {
	q, err := Parse(`SELECT x.a, y.b FROM READ_CSV_AUTO(['s3://bucket/x/*']) AS x
		JOIN READ_JSON_AUTO(['s3://bucket/y/*']) AS y ON x.a = y.a`)
	require.NoError(t, err)
	assert.Contains(t, q.SQL, "READ_CSV_AUTO(['s3://bucket/x/*'])")
	assert.Contains(t, q.SQL, "READ_JSON_AUTO(['s3://bucket/y/*'])")
}

func TestCanonicalizeIsIdempotentWithReaderCall(t *testing.T) {
	q1, err := Parse("SELECT a FROM READ_CSV_AUTO(['s3://bucket/2023/*']) ORDER BY a")
	require.NoError(t, err)

	q2, err := Parse(q1.SQL)
	require.NoError(t, err)

	assert.Equal(t, q1.SQL, q2.SQL)
	assert.Equal(t, q1.Fingerprint, q2.Fingerprint)
}

func TestExtractAndRestoreReaderCallsRoundTrips(t *testing.T) {
	sql := "SELECT a FROM READ_PARQUET(['s3://bucket/2023/*']) WHERE a > 1"
	rewritten, placeholders, next := ExtractReaderCalls(sql, 0)
	assert.NotContains(t, rewritten, "READ_PARQUET")
	assert.Equal(t, 1, next)
	assert.Equal(t, sql, RestoreReaderCalls(rewritten, placeholders))
}

func TestExtractReaderCallsKeepsSequenceAcrossCalls(t *testing.T) {
	first, ph1, next := ExtractReaderCalls("SELECT a FROM READ_PARQUET(['s3://bucket/x/*'])", 0)
	second, ph2, next := ExtractReaderCalls("SELECT b FROM READ_CSV_AUTO(['s3://bucket/y/*'])", next)

	assert.NotEqual(t, first, second)
	for name := range ph1 {
		_, collides := ph2[name]
		assert.False(t, collides, "placeholder names must stay unique across calls")
	}
}
