package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
)

func TestDefaultSessionValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestWorkerConfigValidateBounds(t *testing.T) {
	cfg := DefaultWorkerConfig()
	require.NoError(t, cfg.Validate())

	tooShort := cfg
	tooShort.Timeout = 1
	assert.True(t, lakeerr.IsKind(tooShort.Validate(), lakeerr.KindConfigError))

	tooSmallMemory := cfg
	tooSmallMemory.MemorySize = 64
	assert.Error(t, tooSmallMemory.Validate())

	noName := cfg
	noName.FunctionName = ""
	assert.Error(t, noName.Validate())
}

func TestBusConfigValidateBounds(t *testing.T) {
	cfg := DefaultBusConfig()
	require.NoError(t, cfg.Validate())

	tooMany := cfg
	tooMany.MaxNumberOfMessages = 11
	assert.Error(t, tooMany.Validate())

	zeroIterations := cfg
	zeroIterations.IterationsBeforeFailureCheck = 0
	assert.True(t, lakeerr.IsKind(zeroIterations.Validate(), lakeerr.KindConfigError))

	negativePollWait := cfg
	negativePollWait.PollWaitSuccess = 0
	assert.Error(t, negativePollWait.Validate())

	emptyQueue := cfg
	emptyQueue.QueueFailure = ""
	assert.Error(t, emptyQueue.Validate())
}

func TestSessionConfigValidateBounds(t *testing.T) {
	cfg := DefaultSessionConfig()
	require.NoError(t, cfg.Validate())

	negative := cfg
	negative.MaxInvocations = -1
	assert.Error(t, negative.Validate())

	badProvider := cfg
	badProvider.Provider = Provider("gcp")
	assert.True(t, lakeerr.IsKind(badProvider.Validate(), lakeerr.KindConfigError))

	zeroTimeout := cfg
	zeroTimeout.TaskTimeout = 0
	assert.Error(t, zeroTimeout.Validate())
}

func TestSessionGetSetRoundTrip(t *testing.T) {
	s := Default()

	cases := []struct {
		key   string
		value string
	}{
		{"worker.function_name", "CustomExecutor"},
		{"worker.memory_size", "256"},
		{"worker.timeout", "60"},
		{"worker.warm_up", "true"},
		{"bus.queue_success", "CustomSuccess"},
		{"bus.max_number_of_messages", "5"},
		{"bus.poll_wait_success", "3s"},
		{"bus.poll_wait_failure", "1.5s"},
		{"bus.iterations_before_failure_check", "3"},
		{"session.max_invocations", "8"},
		{"session.cache_expiration_time", "10m0s"},
		{"session.verbose", "true"},
		{"engine.database", "/tmp/custom.db"},
		{"engine.read_only", "true"},
	}

	for _, c := range cases {
		require.NoError(t, s.Set(c.key, c.value), c.key)
		got, err := s.Get(c.key)
		require.NoError(t, err, c.key)
		assert.Equal(t, c.value, got, c.key)
	}
}

func TestSessionGetUnknownKeyFails(t *testing.T) {
	_, err := Default().Get("nope.nope")
	assert.True(t, lakeerr.IsKind(err, lakeerr.KindConfigError))
}

func TestSessionSetUnknownKeyFails(t *testing.T) {
	err := Default().Set("nope.nope", "x")
	assert.True(t, lakeerr.IsKind(err, lakeerr.KindConfigError))
}

func TestSessionSetRejectsOutOfRangeValue(t *testing.T) {
	s := Default()
	err := s.Set("worker.memory_size", "1")
	assert.True(t, lakeerr.IsKind(err, lakeerr.KindConfigError))
	// the rejected value must not have been applied
	assert.Equal(t, DefaultWorkerConfig().MemorySize, s.Worker.MemorySize)
}

func TestSessionSetRejectsNonNumericValue(t *testing.T) {
	s := Default()
	err := s.Set("session.max_invocations", "not-a-number")
	assert.True(t, lakeerr.IsKind(err, lakeerr.KindConfigError))
}

// fakeConfigurable records the last config pushed to it, exercising
// Session.Apply's explicit "validate, then push" step.
type fakeConfigurable struct {
	worker WorkerConfig
	bus    BusConfig
}

func (f *fakeConfigurable) ApplyWorkerConfig(ctx context.Context, cfg WorkerConfig) error {
	f.worker = cfg
	return nil
}

func (f *fakeConfigurable) ApplyBusConfig(ctx context.Context, cfg BusConfig) error {
	f.bus = cfg
	return nil
}

func TestSessionApplyPushesToConfigurableDispatcherAndBus(t *testing.T) {
	s := Default()
	require.NoError(t, s.Set("worker.memory_size", "512"))

	fake := &fakeConfigurable{}
	require.NoError(t, s.Apply(context.Background(), fake, fake))

	assert.Equal(t, 512, fake.worker.MemorySize)
	assert.Equal(t, s.Bus, fake.bus)
}

func TestSessionApplyRejectsInvalidSessionBeforePushing(t *testing.T) {
	s := Default()
	s.Worker.Timeout = -5 // bypass Set's validation to simulate a corrupted Session

	fake := &fakeConfigurable{}
	err := s.Apply(context.Background(), fake, fake)
	assert.Error(t, err)
	assert.Zero(t, fake.worker)
}

func TestSessionApplyIgnoresNonConfigurableCollaborators(t *testing.T) {
	s := Default()
	require.NoError(t, s.Apply(context.Background(), "not a dispatcher", 42))
}

func TestDefaultBusConfigPollCadence(t *testing.T) {
	cfg := DefaultBusConfig()
	assert.Equal(t, 2*time.Second, cfg.PollWaitSuccess)
	assert.Equal(t, 2*time.Second, cfg.PollWaitFailure)
	assert.Equal(t, 5, cfg.IterationsBeforeFailureCheck)
}
