/*
Package event provides a type-safe pub/sub event system for the chainlit-ui
runtime.

Every externally observable occurrence in the runtime flows through a Bus:
step lifecycle, message appends, action attach/remove, task-list snapshots,
session state changes. The gateway's SSE and WebSocket feeds, the history
store, and the metrics layer are all plain subscribers, so the runtime core
never knows who is listening.

# Architecture

The package is built on top of watermill's gochannel for infrastructure while
maintaining direct-call semantics to preserve Go type information on Data.

# Event Types

Session events:
  - session.created: new session registered
  - session.resumed: session reconstructed from persisted history
  - session.state: active/stopping transition
  - session.destroyed: session torn down

Message events:
  - message.created: message appended to a session's chat context

Step events:
  - step.started: wrapped function entered, step pushed
  - step.updated: input/output overridden while running
  - step.closed: step reached a terminal status (immutable snapshot)

Interaction events:
  - action.attached: action bound to an outgoing message
  - action.removed: action removed (published once per action)
  - tasklist.updated: task-list snapshot pushed

Control events:
  - stop.requested: cooperative stop signalled for a session
  - hook.failed: a registered callback raised
  - config.changed: dev-mode watcher saw the config file change

# Basic Usage

Publishing:

	bus.Publish(event.StepClosed, event.StepClosedData{Info: step})

Subscribing:

	unsubscribe := bus.Subscribe(event.StepClosed, func(e event.Event) {
		data := e.Data.(event.StepClosedData)
		log.Info().Str("step", data.Info.ID).Msg("step closed")
	})
	defer unsubscribe()

# Subscriber Safety

With PublishSync, subscribers run in the publisher's goroutine. Subscribers
must complete quickly, use non-blocking channel sends, and never publish
re-entrantly or take locks the publisher might hold. Feed-style consumers
should buffer and drop:

	bus.SubscribeAll(func(e event.Event) {
	    select {
	    case eventChan <- e:
	    default:
	        // channel full, drop rather than block the runtime
	    }
	})

# Thread Safety

The Bus is safe for concurrent use. Publish runs each subscriber in its own
goroutine; PublishSync preserves per-caller ordering and is the choice where
open-before-close ordering matters.
*/
package event
