/*
Package metrics provides Prometheus metrics collection and exposition
for the orchestrator.

Metrics are declared as package-level variables and registered at
init(), following the pattern used throughout this codebase: callers
never initialize anything, they just observe.

# Metrics catalog

Query: lakerunner_queries_total{status}, lakerunner_query_duration_seconds.

Stage: lakerunner_stages_active{kind}, lakerunner_stage_duration_seconds{kind},
lakerunner_stages_failed_total{kind}.

Task: lakerunner_tasks_dispatched_total, lakerunner_tasks_completed_total,
lakerunner_tasks_failed_total, lakerunner_task_duration_seconds.

Cache: lakerunner_cache_hits_total, lakerunner_cache_misses_total,
lakerunner_cache_entries_total.

Dispatch: lakerunner_dispatch_queue_depth, lakerunner_worker_pool_active.

Dataset: lakerunner_dataset_materialize_duration_seconds{mode}.

# Usage

	timer := metrics.NewTimer()
	_, err := ctrl.Execute(ctx, plan, outputPrefix)
	timer.ObserveDuration(metrics.QueryDuration)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues("error").Inc()
	} else {
		metrics.QueriesTotal.WithLabelValues("success").Inc()
	}

	http.Handle("/metrics", metrics.Handler())

Gauges that describe the controller's live state (active stages,
queue depth, worker pool occupancy) are not updated inline — they are
polled on an interval by Collector, which accepts anything satisfying
StatsProvider. The controller implements that interface; tests can
satisfy it with a stub.
*/
package metrics
