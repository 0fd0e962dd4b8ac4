package lakeerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(KindParseError, "unexpected token")

	assert.Equal(t, KindParseError, err.Kind)
	assert.Equal(t, "unexpected token", err.Message)
	assert.Nil(t, err.Cause)
	assert.Equal(t, "parse_error: unexpected token", err.Error())
}

func TestWithDetails(t *testing.T) {
	err := New(KindConfigError, "out of range").WithDetails("timeout must be 3-900s")

	assert.Equal(t, "config_error: out of range (timeout must be 3-900s)", err.Error())
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, KindDispatchError, "lambda invoke failed")

	assert.Equal(t, KindDispatchError, err.Kind)
	assert.Same(t, cause, err.Cause)
	assert.Same(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)
}

func TestWrapf(t *testing.T) {
	cause := errors.New("timeout")
	err := Wrapf(cause, KindTaskFailed, "task %s on worker %d", "abc123", 4)

	assert.Equal(t, "task abc123 on worker 4", err.Message)
}

func TestPredefinedConstructors(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		kind Kind
	}{
		{"parse", NewParseError("syntax error"), KindParseError},
		{"dialect", NewUnsupportedDialect("PIVOT"), KindUnsupportedDialect},
		{"invalid source", NewInvalidSource("ftp://nope"), KindInvalidSource},
		{"source not found", NewSourceNotFound("s3://bucket/missing/*"), KindSourceNotFound},
		{"config", NewConfigError("worker.memory_size", "must be 128-10240"), KindConfigError},
		{"dispatch", NewDispatchError(errors.New("throttled"), "lambda"), KindDispatchError},
		{"task failed", NewTaskFailed("fp123", "engine panic"), KindTaskFailed},
		{"stage timeout", NewStageTimeout("stage-2"), KindStageTimeout},
		{"cache inconsistency", NewCacheInconsistency("fp456"), KindCacheInconsistency},
		{"dataset exists", NewDatasetExists("s3://bucket/out/"), KindDatasetExists},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, tc.err.Kind)
		})
	}
}

func TestIsKindAndGetKind(t *testing.T) {
	err := NewSourceNotFound("s3://bucket/*")

	assert.True(t, IsKind(err, KindSourceNotFound))
	assert.False(t, IsKind(err, KindParseError))
	assert.Equal(t, KindSourceNotFound, GetKind(err))

	plain := errors.New("boom")
	assert.False(t, IsKind(plain, KindParseError))
	assert.Equal(t, KindInternal, GetKind(plain))
}
