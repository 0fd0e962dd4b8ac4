// Package workerpool runs Tasks against an embedded engine.Engine on a
// bounded set of goroutines. It backs the in-process Dispatcher binding
// (pkg/dispatch/inprocess.go): a Config struct validated at
// construction, and a fixed-size pool of long-lived goroutines reading
// off a shared channel.
package workerpool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tobiasegelund/duckingit/pkg/engine"
	"github.com/tobiasegelund/duckingit/pkg/lakeerr"
	"github.com/tobiasegelund/duckingit/pkg/log"
	"github.com/tobiasegelund/duckingit/pkg/types"
)

// Config holds worker pool configuration.
type Config struct {
	Concurrency int
}

func (c Config) Validate() error {
	if c.Concurrency <= 0 {
		return lakeerr.NewConfigError("workerpool.concurrency", "must be positive")
	}
	return nil
}

// Result is one task's outcome, reported back to whatever submitted it.
type Result struct {
	Task *types.Task
	Err  error
}

// Pool runs tasks against a shared *engine.Engine on Concurrency
// goroutines. A single engine.Engine is safe for concurrent use:
// database/sql pools its own connections internally.
type Pool struct {
	eng    *engine.Engine
	jobs   chan job
	logger zerolog.Logger

	active int64 // atomic, read by metrics.StatsProvider implementations
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
}

type job struct {
	task     *types.Task
	resultCh chan<- Result
}

// New creates a Pool with cfg.Concurrency goroutines pulling from an
// unbuffered job channel, running tasks against eng.
func New(cfg Config, eng *engine.Engine) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		eng:    eng,
		jobs:   make(chan job),
		logger: log.WithComponent("workerpool"),
		stopCh: make(chan struct{}),
	}

	for i := 0; i < cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.run()
	}

	return p, nil
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case j, ok := <-p.jobs:
			if !ok {
				return
			}
			p.execute(j)
		case <-p.stopCh:
			return
		}
	}
}

func (p *Pool) execute(j job) {
	atomic.AddInt64(&p.active, 1)
	defer atomic.AddInt64(&p.active, -1)

	err := p.eng.Execute(context.Background(), j.task.Subquery, j.task.OutputKey)
	if err != nil {
		p.logger.Error().Err(err).Str("fingerprint", j.task.Fingerprint).Msg("task execution failed")
	}
	j.resultCh <- Result{Task: j.task, Err: err}
}

// Submit enqueues task and returns a channel that receives exactly one
// Result once it completes. Submit blocks if every goroutine is busy
// and the job channel has no taker yet — callers needing back-pressure
// visibility should watch Active alongside this.
func (p *Pool) Submit(ctx context.Context, task *types.Task) <-chan Result {
	resultCh := make(chan Result, 1)

	select {
	case p.jobs <- job{task: task, resultCh: resultCh}:
	case <-ctx.Done():
		resultCh <- Result{Task: task, Err: lakeerr.Wrap(ctx.Err(), lakeerr.KindDispatchError, "submitting task")}
	case <-p.stopCh:
		resultCh <- Result{Task: task, Err: lakeerr.New(lakeerr.KindDispatchError, "worker pool stopped")}
	}

	return resultCh
}

// Active returns the number of goroutines currently executing a task.
func (p *Pool) Active() int {
	return int(atomic.LoadInt64(&p.active))
}

// Stop signals every goroutine to exit and waits for them to drain.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
}
