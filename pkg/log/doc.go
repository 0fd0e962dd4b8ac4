/*
Package log provides structured logging for the orchestrator using
zerolog.

It wraps zerolog with a global logger, configurable level and output
format, and helper constructors for context-scoped child loggers keyed
to the concepts the controller actually works with: a query's
fingerprint, a DAG stage, and a task.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("controller starting")

	stageLog := log.WithStageID(stage.ID)
	stageLog.Info().Int("task_count", len(stage.Tasks)).Msg("dispatching stage")

	taskLog := log.WithTaskFingerprint(task.Fingerprint)
	taskLog.Error().Err(err).Msg("task failed")

# Context loggers

WithComponent, WithQueryFingerprint, WithStageID, and WithTaskFingerprint
each return a zerolog.Logger with one field attached; chain .With() on
the result to add more. Prefer these over the bare global Logger
whenever a log line is attributable to a specific query, stage, or
task — it is the difference between an error log a human can trace back
to one execution and one they can't.

# Levels

Debug is for plan/task construction detail not needed outside
development. Info covers query acceptance, stage dispatch, and task
completion. Warn is reserved for degraded-but-continuing conditions
(e.g. a stale cache entry ignored). Error marks a failed
stage or task. Fatal exits the process and is only used for
unrecoverable startup failures (bad config, unreachable blob store).
*/
package log
