// Package controller implements the Execution Controller (C5): it
// walks a Plan's DAG in dependency order, resolves each stage's
// concrete input, builds and dispatches its tasks, waits for their
// completion, and maintains the Cache Index (cache.go, C9).
//
// The Controller's own control flow is single-threaded cooperative:
// one stage executes at a time, submit-then-poll, with all real
// parallelism living below the Dispatcher. It's a poll-driven, mutex-
// guarded control loop logging through zerolog and timing itself with
// metrics.Timer.
package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tobiasegelund/duckingit/pkg/completionbus"
	"github.com/tobiasegelund/duckingit/pkg/config"
	"github.com/tobiasegelund/duckingit/pkg/dispatch"
	"github.com/tobiasegelund/duckingit/pkg/events"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
	"github.com/tobiasegelund/duckingit/pkg/log"
	"github.com/tobiasegelund/duckingit/pkg/metrics"
	"github.com/tobiasegelund/duckingit/pkg/source"
	"github.com/tobiasegelund/duckingit/pkg/taskbuilder"
	"github.com/tobiasegelund/duckingit/pkg/types"
)

// Controller ties a Dispatcher, a CompletionBus, a Source Resolver,
// and the Cache Index together to drive one Plan to completion.
type Controller struct {
	dispatcher dispatch.Dispatcher
	bus        completionbus.Bus
	resolver   *source.Resolver
	cache      *Cache
	session    config.SessionConfig
	busCfg     config.BusConfig
	logger     zerolog.Logger
	broker     *events.Broker

	mu           sync.Mutex
	activeByKind map[types.StageKind]int
	queueDepth   int
}

// New builds a Controller. session supplies MaxInvocations,
// OverallTimeout (each stage's wall-clock ceiling), TaskTimeout (each
// dispatched task's wall-clock ceiling), and CacheExpirationTime;
// busCfg supplies the poll cadence (PollWaitSuccess, PollWaitFailure,
// IterationsBeforeFailureCheck) the poll loop alternates on.
func New(dispatcher dispatch.Dispatcher, bus completionbus.Bus, resolver *source.Resolver, cache *Cache, session config.SessionConfig, busCfg config.BusConfig) *Controller {
	return &Controller{
		dispatcher:   dispatcher,
		bus:          bus,
		resolver:     resolver,
		cache:        cache,
		session:      session,
		busCfg:       busCfg,
		logger:       log.WithComponent("controller"),
		activeByKind: make(map[types.StageKind]int),
	}
}

// SetEventBroker attaches an events.Broker the Controller publishes
// query/stage/task lifecycle events and cache hits to. Intended for use
// when SessionConfig.Verbose is set; a Controller with no broker
// attached skips publishing entirely rather than allocating events no
// one reads.
func (c *Controller) SetEventBroker(b *events.Broker) {
	c.broker = b
}

func (c *Controller) publish(evType events.EventType, message string, metadata map[string]string) {
	if c.broker == nil {
		return
	}
	c.broker.Publish(&events.Event{Type: evType, Message: message, Metadata: metadata})
}

// Execute drives plan's DAG to completion and returns the root stage's
// output object keys. outputPrefix is the scratch root each stage's
// tasks write under, namespaced per stage id beneath it. There is no
// whole-query deadline here: OverallTimeout is a per-stage ceiling,
// applied fresh to each stage in runStage, so a query with many
// stages isn't bounded by a single query-wide clock.
func (c *Controller) Execute(ctx context.Context, plan *types.Plan, outputPrefix string) ([]string, error) {
	c.publish(events.EventQuerySubmitted, "query submitted", map[string]string{"fingerprint": plan.Query.Fingerprint})

	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.QueryDuration)
	}()

	order, err := topologicalOrder(plan)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		c.publish(events.EventQueryFailed, err.Error(), map[string]string{"fingerprint": plan.Query.Fingerprint})
		return nil, err
	}

	outputs := make(map[string][]string, len(order))
	for _, stage := range order {
		stageOutputs, err := c.executeStage(ctx, stage, outputs, outputPrefix)
		if err != nil {
			metrics.QueriesTotal.WithLabelValues("error").Inc()
			c.publish(events.EventQueryFailed, err.Error(), map[string]string{"fingerprint": plan.Query.Fingerprint})
			return nil, err
		}
		outputs[stage.ID] = stageOutputs
	}

	metrics.QueriesTotal.WithLabelValues("success").Inc()
	c.publish(events.EventQueryCompleted, "query completed", map[string]string{"fingerprint": plan.Query.Fingerprint})
	return outputs[plan.Root.ID], nil
}

// topologicalOrder returns plan's stages leaves-first. Every
// dependency of a stage appears before it: no task of stage S is
// dispatched before every task of every dep has produced its output.
func topologicalOrder(plan *types.Plan) ([]*types.Stage, error) {
	var order []*types.Stage
	visited := make(map[string]bool)
	visiting := make(map[string]bool)

	var visit func(s *types.Stage) error
	visit = func(s *types.Stage) error {
		if visited[s.ID] {
			return nil
		}
		if visiting[s.ID] {
			return lakeerr.Newf(lakeerr.KindInternal, "cycle detected at stage %s", s.ID)
		}
		visiting[s.ID] = true
		for _, dep := range s.Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		visiting[s.ID] = false
		visited[s.ID] = true
		order = append(order, s)
		return nil
	}

	if err := visit(plan.Root); err != nil {
		return nil, err
	}
	return order, nil
}

func (c *Controller) executeStage(ctx context.Context, stage *types.Stage, outputs map[string][]string, outputPrefix string) ([]string, error) {
	logger := log.WithStageID(stage.ID)
	timer := metrics.NewTimer()
	c.trackActive(stage.Kind, 1)
	defer c.trackActive(stage.Kind, -1)
	c.publish(events.EventStageDispatched, "stage dispatched", map[string]string{"stage_id": stage.ID, "kind": string(stage.Kind)})

	var sourceFiles []string
	depOutputs := taskbuilder.DepOutputs{}
	if stage.IsLeaf() {
		uri, err := taskbuilder.LeafSourceURI(stage)
		if err != nil {
			return nil, err
		}
		files, err := c.resolver.Resolve(ctx, uri)
		if err != nil {
			return nil, err
		}
		sourceFiles = files
	} else {
		for id := range stage.Dependencies {
			depOutputs[id] = outputs[id]
		}
	}

	stagePrefix := fmt.Sprintf("%s/%s", outputPrefix, stage.ID)

	resultKeys, err := c.runStage(ctx, stage, sourceFiles, depOutputs, stagePrefix)
	if err != nil {
		metrics.StagesFailedTotal.WithLabelValues(string(stage.Kind)).Inc()
		c.publish(events.EventStageFailed, err.Error(), map[string]string{"stage_id": stage.ID})
		return nil, err
	}

	timer.ObserveDurationVec(metrics.StageDuration, string(stage.Kind))
	logger.Info().Int("outputs", len(resultKeys)).Msg("stage completed")
	c.publish(events.EventStageCompleted, "stage completed", map[string]string{"stage_id": stage.ID})
	return resultKeys, nil
}

// runStage builds this stage's tasks, skips any already cached,
// dispatches the rest, and polls the bus until every dispatched
// task's outcome is known or the stage's deadline fires. A single
// TaskFailed aborts the whole stage with no automatic retry — the
// failure queue is purged before the error is returned, so a late or
// redelivered failure message can't leak into a later stage.
//
// stageCtx carries OverallTimeout, the stage's own wall-clock ceiling;
// each individual Dispatch call additionally gets its own TaskTimeout-
// scoped context, since a single slow dispatch shouldn't be allowed to
// consume the whole stage's budget.
func (c *Controller) runStage(ctx context.Context, stage *types.Stage, sourceFiles []string, depOutputs taskbuilder.DepOutputs, stagePrefix string) ([]string, error) {
	tasks, err := taskbuilder.Build(stage, sourceFiles, depOutputs, c.session.MaxInvocations, stagePrefix)
	if err != nil {
		return nil, err
	}
	stage.Tasks = tasks

	stageCtx, cancel := context.WithTimeout(ctx, c.session.OverallTimeout)
	defer cancel()

	outputs := make([]string, 0, len(tasks))
	pending := make(map[string]*types.Task, len(tasks))

	for _, task := range tasks {
		outputs = append(outputs, task.OutputKey)

		if c.cache.Check(stageCtx, task.Fingerprint, task.OutputKey) {
			c.publish(events.EventCacheHit, "cache hit", map[string]string{"fingerprint": task.Fingerprint})
			continue
		}

		if err := c.dispatchTask(stageCtx, task); err != nil {
			return nil, err
		}
		c.trackQueue(1)
		pending[task.Fingerprint] = task
		metrics.TasksDispatchedTotal.Inc()
		c.publish(events.EventTaskDispatched, "task dispatched", map[string]string{"fingerprint": task.Fingerprint})
	}

	if err := c.pollUntilDone(stageCtx, stage.ID, pending); err != nil {
		_ = c.bus.Purge(context.Background())
		c.publish(events.EventCachePurged, "failure queue purged", map[string]string{"stage_id": stage.ID})
		return nil, err
	}

	return outputs, nil
}

// dispatchTask hands one task to the Dispatcher under its own
// TaskTimeout-scoped context, derived from the stage's stageCtx so a
// stage deadline still cuts a dispatch short even if TaskTimeout
// hasn't elapsed yet.
func (c *Controller) dispatchTask(stageCtx context.Context, task *types.Task) error {
	taskCtx, cancel := context.WithTimeout(stageCtx, c.session.TaskTimeout)
	defer cancel()
	return c.dispatcher.Dispatch(taskCtx, task.Fingerprint, task.Subquery, task.OutputKey)
}

// pollUntilDone alternates IterationsBeforeFailureCheck success polls
// with one failure poll until pending is empty. Any failure-queue
// message aborts immediately —
// the failure poll short-circuits the whole stage rather than waiting
// out the remaining success rounds.
func (c *Controller) pollUntilDone(ctx context.Context, stageID string, pending map[string]*types.Task) error {
	for len(pending) > 0 {
		for i := 0; i < c.busCfg.IterationsBeforeFailureCheck && len(pending) > 0; i++ {
			successEvents, err := c.bus.PollSuccess(ctx, c.busCfg.PollWaitSuccess)
			if err != nil {
				return lakeerr.Wrap(err, lakeerr.KindStageTimeout, fmt.Sprintf("stage %s timed out waiting for completion", stageID))
			}
			c.handleSuccessEvents(ctx, successEvents, pending)
		}
		if len(pending) == 0 {
			break
		}

		failures, err := c.bus.PollFailure(ctx, c.busCfg.PollWaitFailure)
		if err != nil {
			return lakeerr.Wrap(err, lakeerr.KindStageTimeout, fmt.Sprintf("stage %s timed out waiting for completion", stageID))
		}
		if len(failures) > 0 {
			_ = c.bus.Ack(ctx, []string{failures[0].Handle})
			metrics.TasksFailedTotal.Inc()
			c.publish(events.EventTaskFailed, failures[0].Err.Error(), map[string]string{"stage_id": stageID})
			return failures[0].Err
		}
	}
	return nil
}

func (c *Controller) handleSuccessEvents(ctx context.Context, successEvents []completionbus.Event, pending map[string]*types.Task) {
	var handles []string
	for _, ev := range successEvents {
		task, ok := pending[ev.RequestID]
		if !ok {
			// A completion for a different stage's task, or a
			// redelivered message already accounted for.
			handles = append(handles, ev.Handle)
			continue
		}
		delete(pending, ev.RequestID)
		c.trackQueue(-1)
		metrics.TasksCompletedTotal.Inc()
		c.cache.Record(task.Fingerprint)
		c.publish(events.EventTaskCompleted, "task completed", map[string]string{"fingerprint": task.Fingerprint})
		handles = append(handles, ev.Handle)
	}
	if len(handles) > 0 {
		_ = c.bus.Ack(ctx, handles)
	}
}

func (c *Controller) trackActive(kind types.StageKind, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeByKind[kind] += delta
}

func (c *Controller) trackQueue(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queueDepth += delta
}

// ActiveStagesByKind implements metrics.StatsProvider.
func (c *Controller) ActiveStagesByKind() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.activeByKind))
	for kind, n := range c.activeByKind {
		out[string(kind)] = n
	}
	return out
}

// CacheSize implements metrics.StatsProvider.
func (c *Controller) CacheSize() int {
	return c.cache.Size()
}

// DispatchQueueDepth implements metrics.StatsProvider.
func (c *Controller) DispatchQueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queueDepth
}

// WorkerPoolActive implements metrics.StatsProvider. The in-process
// binding's pool tracks its own active count; a remote binding (Lambda)
// has no local pool to report, so this returns 0 there.
func (c *Controller) WorkerPoolActive() int {
	type activeCounter interface{ Active() int }
	if pooled, ok := c.dispatcher.(activeCounter); ok {
		return pooled.Active()
	}
	return 0
}
