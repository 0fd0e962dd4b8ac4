package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
	"gopkg.in/yaml.v3"
)

// Session is an explicit, injected configuration handle: components
// receive the config group they need (WorkerConfig, BusConfig,
// SessionConfig, EngineConfig) as a constructor argument rather than
// reaching for a package-level global.
type Session struct {
	Worker  WorkerConfig
	Bus     BusConfig
	Session SessionConfig
	Engine  EngineConfig
}

// Default returns a ready-made Session for convenience callers (the
// CLI) that don't want to assemble one field group at a time. It is
// not a singleton: callers are free to build their own Session instead.
func Default() *Session {
	return &Session{
		Worker:  DefaultWorkerConfig(),
		Bus:     DefaultBusConfig(),
		Session: DefaultSessionConfig(),
		Engine:  DefaultEngineConfig(),
	}
}

// Validate runs every group's Validate in turn, returning the first
// failure.
func (s *Session) Validate() error {
	if err := s.Worker.Validate(); err != nil {
		return err
	}
	if err := s.Bus.Validate(); err != nil {
		return err
	}
	if err := s.Session.Validate(); err != nil {
		return err
	}
	if err := s.Engine.Validate(); err != nil {
		return err
	}
	return nil
}

// WorkerConfigurable is implemented by a Dispatcher binding that can
// accept a pushed WorkerConfig update (the Lambda function's memory,
// timeout, and warm-up behavior).
type WorkerConfigurable interface {
	ApplyWorkerConfig(ctx context.Context, cfg WorkerConfig) error
}

// BusConfigurable is implemented by a CompletionBus binding that can
// accept a pushed BusConfig update (queue attributes).
type BusConfigurable interface {
	ApplyBusConfig(ctx context.Context, cfg BusConfig) error
}

// Apply validates the session and, if dispatcher/bus are non-nil and
// implement the corresponding Configurable interface, pushes the
// Worker/Bus groups out to them. This reruns the side effect the
// source's ServiceConfig.update() performed, as an explicit step
// instead of an implicit one fired from inside a setter.
func (s *Session) Apply(ctx context.Context, dispatcher any, bus any) error {
	if err := s.Validate(); err != nil {
		return err
	}

	if d, ok := dispatcher.(WorkerConfigurable); ok {
		if err := d.ApplyWorkerConfig(ctx, s.Worker); err != nil {
			return lakeerr.Wrap(err, lakeerr.KindConfigError, "failed to apply worker config")
		}
	}

	if b, ok := bus.(BusConfigurable); ok {
		if err := b.ApplyBusConfig(ctx, s.Bus); err != nil {
			return lakeerr.Wrap(err, lakeerr.KindConfigError, "failed to apply bus config")
		}
	}

	return nil
}

// Get returns the string representation of one "<group>.<name>" key.
func (s *Session) Get(key string) (string, error) {
	switch key {
	case "worker.function_name":
		return s.Worker.FunctionName, nil
	case "worker.memory_size":
		return strconv.Itoa(s.Worker.MemorySize), nil
	case "worker.timeout":
		return strconv.Itoa(s.Worker.Timeout), nil
	case "worker.warm_up":
		return strconv.FormatBool(s.Worker.WarmUp), nil

	case "bus.queue_success":
		return s.Bus.QueueSuccess, nil
	case "bus.queue_failure":
		return s.Bus.QueueFailure, nil
	case "bus.max_number_of_messages":
		return strconv.Itoa(s.Bus.MaxNumberOfMessages), nil
	case "bus.visibility_timeout":
		return strconv.Itoa(s.Bus.VisibilityTimeout), nil
	case "bus.wait_time_seconds":
		return strconv.Itoa(s.Bus.WaitTimeSeconds), nil
	case "bus.delay_seconds":
		return strconv.Itoa(s.Bus.DelaySeconds), nil
	case "bus.maximum_message_size":
		return strconv.Itoa(s.Bus.MaximumMessageSize), nil
	case "bus.message_retention_period":
		return strconv.Itoa(s.Bus.MessageRetentionPeriod), nil
	case "bus.poll_wait_success":
		return s.Bus.PollWaitSuccess.String(), nil
	case "bus.poll_wait_failure":
		return s.Bus.PollWaitFailure.String(), nil
	case "bus.iterations_before_failure_check":
		return strconv.Itoa(s.Bus.IterationsBeforeFailureCheck), nil

	case "session.cache_expiration_time":
		return s.Session.CacheExpirationTime.String(), nil
	case "session.max_invocations":
		return strconv.Itoa(s.Session.MaxInvocations), nil
	case "session.provider":
		return string(s.Session.Provider), nil
	case "session.verbose":
		return strconv.FormatBool(s.Session.Verbose), nil
	case "session.task_timeout":
		return s.Session.TaskTimeout.String(), nil
	case "session.overall_timeout":
		return s.Session.OverallTimeout.String(), nil

	case "engine.database":
		return s.Engine.Database, nil
	case "engine.read_only":
		return strconv.FormatBool(s.Engine.ReadOnly), nil

	default:
		return "", lakeerr.NewConfigError(key, "unknown configuration key")
	}
}

// Set parses value for the named "<group>.<name>" key, validates the
// resulting group, and assigns it. Each key has its own explicit
// parse-and-assign case — there is no reflective attribute traversal.
func (s *Session) Set(key, value string) error {
	switch key {
	case "worker.function_name":
		next := s.Worker
		next.FunctionName = value
		if err := next.Validate(); err != nil {
			return err
		}
		s.Worker = next

	case "worker.memory_size":
		v, err := strconv.Atoi(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be an integer")
		}
		next := s.Worker
		next.MemorySize = v
		if err := next.Validate(); err != nil {
			return err
		}
		s.Worker = next

	case "worker.timeout":
		v, err := strconv.Atoi(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be an integer")
		}
		next := s.Worker
		next.Timeout = v
		if err := next.Validate(); err != nil {
			return err
		}
		s.Worker = next

	case "worker.warm_up":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be a boolean")
		}
		s.Worker.WarmUp = v

	case "bus.queue_success":
		next := s.Bus
		next.QueueSuccess = value
		if err := next.Validate(); err != nil {
			return err
		}
		s.Bus = next

	case "bus.queue_failure":
		next := s.Bus
		next.QueueFailure = value
		if err := next.Validate(); err != nil {
			return err
		}
		s.Bus = next

	case "bus.max_number_of_messages":
		v, err := strconv.Atoi(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be an integer")
		}
		next := s.Bus
		next.MaxNumberOfMessages = v
		if err := next.Validate(); err != nil {
			return err
		}
		s.Bus = next

	case "bus.visibility_timeout":
		v, err := strconv.Atoi(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be an integer")
		}
		next := s.Bus
		next.VisibilityTimeout = v
		if err := next.Validate(); err != nil {
			return err
		}
		s.Bus = next

	case "bus.wait_time_seconds":
		v, err := strconv.Atoi(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be an integer")
		}
		next := s.Bus
		next.WaitTimeSeconds = v
		if err := next.Validate(); err != nil {
			return err
		}
		s.Bus = next

	case "bus.delay_seconds":
		v, err := strconv.Atoi(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be an integer")
		}
		next := s.Bus
		next.DelaySeconds = v
		if err := next.Validate(); err != nil {
			return err
		}
		s.Bus = next

	case "bus.maximum_message_size":
		v, err := strconv.Atoi(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be an integer")
		}
		next := s.Bus
		next.MaximumMessageSize = v
		if err := next.Validate(); err != nil {
			return err
		}
		s.Bus = next

	case "bus.message_retention_period":
		v, err := strconv.Atoi(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be an integer")
		}
		next := s.Bus
		next.MessageRetentionPeriod = v
		if err := next.Validate(); err != nil {
			return err
		}
		s.Bus = next

	case "bus.poll_wait_success":
		d, err := time.ParseDuration(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be a duration, e.g. 2s")
		}
		next := s.Bus
		next.PollWaitSuccess = d
		if err := next.Validate(); err != nil {
			return err
		}
		s.Bus = next

	case "bus.poll_wait_failure":
		d, err := time.ParseDuration(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be a duration, e.g. 2s")
		}
		next := s.Bus
		next.PollWaitFailure = d
		if err := next.Validate(); err != nil {
			return err
		}
		s.Bus = next

	case "bus.iterations_before_failure_check":
		v, err := strconv.Atoi(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be an integer")
		}
		next := s.Bus
		next.IterationsBeforeFailureCheck = v
		if err := next.Validate(); err != nil {
			return err
		}
		s.Bus = next

	case "session.cache_expiration_time":
		d, err := time.ParseDuration(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be a duration, e.g. 15m")
		}
		next := s.Session
		next.CacheExpirationTime = d
		if err := next.Validate(); err != nil {
			return err
		}
		s.Session = next

	case "session.max_invocations":
		v, err := strconv.Atoi(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be an integer")
		}
		next := s.Session
		next.MaxInvocations = v
		if err := next.Validate(); err != nil {
			return err
		}
		s.Session = next

	case "session.provider":
		next := s.Session
		next.Provider = Provider(value)
		if err := next.Validate(); err != nil {
			return err
		}
		s.Session = next

	case "session.verbose":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be a boolean")
		}
		s.Session.Verbose = v

	case "session.task_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be a duration, e.g. 5m")
		}
		next := s.Session
		next.TaskTimeout = d
		if err := next.Validate(); err != nil {
			return err
		}
		s.Session = next

	case "session.overall_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be a duration, e.g. 30m")
		}
		next := s.Session
		next.OverallTimeout = d
		if err := next.Validate(); err != nil {
			return err
		}
		s.Session = next

	case "engine.database":
		next := s.Engine
		next.Database = value
		if err := next.Validate(); err != nil {
			return err
		}
		s.Engine = next

	case "engine.read_only":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return lakeerr.NewConfigError(key, "must be a boolean")
		}
		s.Engine.ReadOnly = v

	default:
		return lakeerr.NewConfigError(key, "unknown configuration key")
	}

	return nil
}

// fileConfig mirrors Session's shape for YAML (de)serialization with
// lowercase group names matching the "<group>.<name>" surface.
type fileConfig struct {
	Worker  WorkerConfig  `yaml:"worker"`
	Bus     BusConfig     `yaml:"bus"`
	Session SessionConfig `yaml:"session"`
	Engine  EngineConfig  `yaml:"engine"`
}

// LoadFile reads a YAML session config file, falling back to defaults
// for any group not present, and validates the result.
func LoadFile(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lakeerr.Wrapf(err, lakeerr.KindConfigError, "reading config file %s", path)
	}

	fc := fileConfig{
		Worker:  DefaultWorkerConfig(),
		Bus:     DefaultBusConfig(),
		Session: DefaultSessionConfig(),
		Engine:  DefaultEngineConfig(),
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, lakeerr.Wrapf(err, lakeerr.KindConfigError, "parsing config file %s", path)
	}

	s := &Session{Worker: fc.Worker, Bus: fc.Bus, Session: fc.Session, Engine: fc.Engine}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) String() string {
	return fmt.Sprintf("Session{worker=%+v bus=%+v session=%+v engine=%+v}", s.Worker, s.Bus, s.Session, s.Engine)
}
