package event

import "github.com/FabG/chainlit-ui/pkg/types"

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	Info *types.SessionInfo `json:"info"`
}

// SessionResumedData is the data for session.resumed events.
type SessionResumedData struct {
	Info     *types.SessionInfo `json:"info"`
	Messages int                `json:"messages"` // seeded history length
}

// SessionStateData is the data for session.state events, published on every
// active/stopping transition.
type SessionStateData struct {
	SessionID string             `json:"sessionID"`
	State     types.SessionState `json:"state"`
}

// SessionDestroyedData is the data for session.destroyed events.
type SessionDestroyedData struct {
	SessionID string `json:"sessionID"`
}

// MessageCreatedData is the data for message.created events.
type MessageCreatedData struct {
	Info *types.Message `json:"info"`
}

// StepStartedData is the data for step.started events.
type StepStartedData struct {
	Info *types.Step `json:"info"`
}

// StepUpdatedData is the data for step.updated events (input/output
// overridden while the step is still running).
type StepUpdatedData struct {
	Info *types.Step `json:"info"`
}

// StepClosedData is the data for step.closed events. Info is the immutable
// closed snapshot handed to the emitter.
type StepClosedData struct {
	Info *types.Step `json:"info"`
}

// ActionAttachedData is the data for action.attached events.
type ActionAttachedData struct {
	SessionID string        `json:"sessionID"`
	Info      *types.Action `json:"info"`
}

// ActionRemovedData is the data for action.removed events. Published once per
// action; repeat removals stay silent.
type ActionRemovedData struct {
	SessionID string `json:"sessionID"`
	ID        string `json:"id"`
	Name      string `json:"name"`
}

// TaskListUpdatedData is the data for tasklist.updated events.
type TaskListUpdatedData struct {
	Info *types.TaskListInfo `json:"info"`
}

// StopRequestedData is the data for stop.requested events.
type StopRequestedData struct {
	SessionID string `json:"sessionID"`
}

// HookFailedData is the data for hook.failed events.
type HookFailedData struct {
	SessionID string `json:"sessionID,omitempty"`
	Hook      string `json:"hook"`
	Error     string `json:"error"`
}

// ConfigChangedData is the data for config.changed events published by the
// dev-mode watcher.
type ConfigChangedData struct {
	Path string `json:"path"`
}
