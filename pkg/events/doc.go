/*
Package events provides an in-memory event broker used to observe
query execution without coupling the controller to its observers.

It broadcasts query/stage/task lifecycle events and cache hits to any
number of subscribers over buffered channels. Publish never blocks on a
slow subscriber; a full subscriber buffer simply drops the event rather
than stalling the controller's dispatch loop.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for ev := range sub {
			log.Info(ev.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventStageDispatched,
		Message: "stage dispatched",
		Metadata: map[string]string{
			"stage_id":   stage.ID,
			"task_count": strconv.Itoa(len(stage.Tasks)),
		},
	})

# Event catalog

Query events (query.submitted/completed/failed) bracket one full
Controller.Execute call. Stage events (stage.dispatched/completed/failed)
fire once per DAG node as the controller's post-order walk visits it.
Task events (task.dispatched/completed/failed) fire per task, at the
Dispatcher/CompletionBus boundary. cache.hit fires when the cache index
lets the controller skip dispatching a task; cache.purged fires after a
failed stage has purged the completion bus's queues (no cache entry is
removed).

This package has no opinion on who subscribes: any number of
subscribers (the CLI's progress reporter, test assertions) receive
every event independently.
*/
package events
