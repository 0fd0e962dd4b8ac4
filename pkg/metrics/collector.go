package metrics

import "time"

// StatsProvider is implemented by the controller to expose a periodic
// snapshot of in-flight work. Decoupling the collector from the
// controller type avoids an import cycle, since the controller already
// imports this package for Timer.
type StatsProvider interface {
	ActiveStagesByKind() map[string]int
	CacheSize() int
	DispatchQueueDepth() int
	WorkerPoolActive() int
}

// Collector periodically polls a StatsProvider and updates the
// corresponding gauges.
type Collector struct {
	provider StatsProvider
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector polling provider every
// interval (15s if interval is zero).
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		provider: provider,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics in a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for kind, count := range c.provider.ActiveStagesByKind() {
		StagesActive.WithLabelValues(kind).Set(float64(count))
	}

	CacheEntriesTotal.Set(float64(c.provider.CacheSize()))
	DispatchQueueDepth.Set(float64(c.provider.DispatchQueueDepth()))
	WorkerPoolActive.Set(float64(c.provider.WorkerPoolActive()))
}
