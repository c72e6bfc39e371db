package types

// TaskStatus describes one task-list item's state.
type TaskStatus string

const (
	TaskReady   TaskStatus = "ready"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// Task is one presentational work item in a session's task list.
type Task struct {
	Title  string     `json:"title"`
	Status TaskStatus `json:"status"`
	ForID  *string    `json:"forID,omitempty"` // optional link to a Message
}

// TaskListInfo is an immutable snapshot of a session's task list, pushed to
// the UI collaborator on Send.
type TaskListInfo struct {
	SessionID string `json:"sessionID"`
	Status    string `json:"status,omitempty"` // free-form header, e.g. "Running"
	Tasks     []Task `json:"tasks"`
}
