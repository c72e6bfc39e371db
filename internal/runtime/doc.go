// Package runtime implements the conversational session runtime: the session
// registry, step tracing, hook dispatch, cooperative cancellation, and the
// per-session chat transcript, action registry, and task list.
//
// # Architecture
//
// A Registry owns all live sessions plus the infrastructure they share (event
// bus, step emitter, history backend, metrics). Each Session bundles:
//
//   - ChatContext: the append-only message transcript
//   - Tracker: the arena of traced steps, linked parent to child by ID
//   - Actions: named UI actions with monotonic removal
//   - TaskList: coarse progress items published as snapshots
//   - Canceller: the set of live task contexts for stop propagation
//
// Application code plugs in through Hooks: lifecycle callbacks (chat start,
// message, stop, chat end, chat resume), named action callbacks, and the
// starters, chat profiles, and auth providers.
//
// # Tasks
//
// Every hook dispatch runs as a task: a goroutine whose context carries the
// session and is cancelled by Stop and teardown. Hook errors and panics are
// surfaced into the session as system messages; the session stays alive.
//
// # Steps
//
// Wrap turns a function into a traced step:
//
//	genAnswer := runtime.Wrap(types.StepTypeLLM, "generate",
//		func(ctx context.Context, prompt string) (string, error) {
//			// nested Wrap calls become child steps of "generate"
//			return callModel(ctx, prompt)
//		})
//
// The wrapped call opens a step, records input and output, and closes the
// step on every exit path, including panics and cancellation. Outside a
// session task the function runs untraced.
//
// # Stop
//
// Stop flags open steps stopped from the innermost outwards and cancels all
// task contexts. Cancellation is cooperative: step bodies observe it at their
// next blocking point. A step that completes naturally before noticing still
// closes as succeeded. When the last task exits, the session returns to
// active and keeps accepting messages.
package runtime
