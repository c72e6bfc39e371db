package runtime

import (
	"fmt"
	"sync"

	"github.com/FabG/chainlit-ui/internal/event"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// TaskList tracks coarse-grained progress items for a session. Mutations are
// local until Send publishes a snapshot; subscribers never observe a
// half-updated list.
type TaskList struct {
	sessionID string
	bus       *event.Bus

	mu     sync.Mutex
	status string
	tasks  []types.Task
}

// NewTaskList creates an empty task list for the session.
func NewTaskList(sessionID string, bus *event.Bus) *TaskList {
	return &TaskList{sessionID: sessionID, bus: bus}
}

// SetStatus sets the headline status text, e.g. "Running" or "Done".
func (l *TaskList) SetStatus(status string) {
	l.mu.Lock()
	l.status = status
	l.mu.Unlock()
}

// Add appends a task and returns its index. An empty task status defaults to
// ready.
func (l *TaskList) Add(t types.Task) int {
	if t.Status == "" {
		t.Status = types.TaskReady
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = append(l.tasks, t)
	return len(l.tasks) - 1
}

// Update changes the status of the task at index.
func (l *TaskList) Update(index int, status types.TaskStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.tasks) {
		return fmt.Errorf("task index %d out of range", index)
	}
	l.tasks[index].Status = status
	return nil
}

// Send publishes the current task list as an immutable snapshot.
func (l *TaskList) Send() {
	info := l.Snapshot()
	l.bus.Publish(event.TaskListUpdated, event.TaskListUpdatedData{Info: info})
}

// Snapshot returns a copy of the task list.
func (l *TaskList) Snapshot() *types.TaskListInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	tasks := make([]types.Task, len(l.tasks))
	copy(tasks, l.tasks)
	return &types.TaskListInfo{
		SessionID: l.sessionID,
		Status:    l.status,
		Tasks:     tasks,
	}
}
