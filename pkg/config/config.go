package config

import (
	"fmt"
	"time"

	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
)

// Provider identifies which cloud binding a Session's Worker/Bus/Store
// settings apply to. Only Provider AWS has a concrete binding today;
// anything else fails validation.
type Provider string

const ProviderAWS Provider = "aws"

func (p Provider) Validate() error {
	switch p {
	case ProviderAWS:
		return nil
	default:
		return lakeerr.NewConfigError("session.provider", fmt.Sprintf("unknown provider %q", p))
	}
}

// WorkerConfig is the "worker" configuration group: the Lambda-equivalent
// function the Dispatcher invokes.
type WorkerConfig struct {
	FunctionName string
	MemorySize   int
	Timeout      int // seconds
	WarmUp       bool
}

// DefaultWorkerConfig returns conservative defaults for a cold Lambda.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		FunctionName: "DuckExecutor",
		MemorySize:   128,
		Timeout:      30,
		WarmUp:       false,
	}
}

func (w WorkerConfig) Validate() error {
	if w.Timeout < 3 || w.Timeout > 900 {
		return lakeerr.NewConfigError("worker.timeout", "must be between 3 and 900 seconds")
	}
	if w.MemorySize < 128 || w.MemorySize > 10240 {
		return lakeerr.NewConfigError("worker.memory_size", "must be between 128 and 10240 MB")
	}
	if w.FunctionName == "" {
		return lakeerr.NewConfigError("worker.function_name", "must not be empty")
	}
	return nil
}

// BusConfig is the "bus" configuration group: queue names, poll
// behavior, and the on-queue attributes pushed to the provider.
type BusConfig struct {
	QueueSuccess string
	QueueFailure string

	MaxNumberOfMessages int
	VisibilityTimeout    int // seconds
	WaitTimeSeconds      int // seconds

	DelaySeconds           int // seconds
	MaximumMessageSize     int // bytes
	MessageRetentionPeriod int // seconds

	PollWaitSuccess             time.Duration
	PollWaitFailure             time.Duration
	IterationsBeforeFailureCheck int
}

func DefaultBusConfig() BusConfig {
	return BusConfig{
		QueueSuccess:                 "DuckSuccess",
		QueueFailure:                 "DuckFailure",
		MaxNumberOfMessages:          10,
		VisibilityTimeout:            5,
		WaitTimeSeconds:              5,
		DelaySeconds:                 900,
		MaximumMessageSize:           2056,
		MessageRetentionPeriod:       900,
		PollWaitSuccess:              2 * time.Second,
		PollWaitFailure:              2 * time.Second,
		IterationsBeforeFailureCheck: 5,
	}
}

func (b BusConfig) Validate() error {
	if b.MaxNumberOfMessages < 1 || b.MaxNumberOfMessages > 10 {
		return lakeerr.NewConfigError("bus.max_number_of_messages", "must be between 1 and 10")
	}
	if b.VisibilityTimeout < 0 || b.VisibilityTimeout > 60 {
		return lakeerr.NewConfigError("bus.visibility_timeout", "must be between 0 and 60 seconds")
	}
	if b.WaitTimeSeconds < 0 || b.WaitTimeSeconds > 60 {
		return lakeerr.NewConfigError("bus.wait_time_seconds", "must be between 0 and 60 seconds")
	}
	if b.DelaySeconds < 0 || b.DelaySeconds > 900 {
		return lakeerr.NewConfigError("bus.delay_seconds", "must be between 0 and 900 seconds")
	}
	if b.MaximumMessageSize < 1024 || b.MaximumMessageSize > 262_144 {
		return lakeerr.NewConfigError("bus.maximum_message_size", "must be between 1024 and 262144 bytes")
	}
	if b.MessageRetentionPeriod < 60 || b.MessageRetentionPeriod > 1_209_600 {
		return lakeerr.NewConfigError("bus.message_retention_period", "must be between 60 and 1209600 seconds")
	}
	if b.QueueSuccess == "" || b.QueueFailure == "" {
		return lakeerr.NewConfigError("bus.queue_success/queue_failure", "must not be empty")
	}
	if b.IterationsBeforeFailureCheck < 1 {
		return lakeerr.NewConfigError("bus.iterations_before_failure_check", "must be at least 1")
	}
	if b.PollWaitSuccess <= 0 {
		return lakeerr.NewConfigError("bus.poll_wait_success", "must be positive")
	}
	if b.PollWaitFailure <= 0 {
		return lakeerr.NewConfigError("bus.poll_wait_failure", "must be positive")
	}
	return nil
}

// SessionConfig is the "session" configuration group: cache TTL, fan-out
// ceiling, provider selection, and the controller's timeouts.
type SessionConfig struct {
	CacheExpirationTime time.Duration // minutes, stored as duration
	MaxInvocations      int           // 0 means "auto": = number of input partitions
	Provider            Provider
	Verbose             bool

	TaskTimeout    time.Duration // wall-clock ceiling for one dispatched task
	OverallTimeout time.Duration // wall-clock ceiling for one stage, start to finish
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		CacheExpirationTime: 15 * time.Minute,
		MaxInvocations:      15,
		Provider:            ProviderAWS,
		Verbose:             false,
		TaskTimeout:         5 * time.Minute,
		OverallTimeout:      30 * time.Minute,
	}
}

func (s SessionConfig) Validate() error {
	if s.CacheExpirationTime < 0 {
		return lakeerr.NewConfigError("session.cache_expiration_time", "must not be negative")
	}
	if s.MaxInvocations < 0 {
		return lakeerr.NewConfigError("session.max_invocations", "must not be negative")
	}
	if err := s.Provider.Validate(); err != nil {
		return err
	}
	if s.TaskTimeout <= 0 {
		return lakeerr.NewConfigError("session.task_timeout", "must be positive")
	}
	if s.OverallTimeout <= 0 {
		return lakeerr.NewConfigError("session.overall_timeout", "must be positive")
	}
	return nil
}

// EngineConfig is the "engine" configuration group: the embedded
// analytical engine's local database handle.
type EngineConfig struct {
	Database string
	ReadOnly bool
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{Database: ":memory:", ReadOnly: false}
}

func (e EngineConfig) Validate() error {
	if e.Database == "" {
		return lakeerr.NewConfigError("engine.database", "must not be empty")
	}
	return nil
}
