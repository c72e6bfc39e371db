package runtime

import (
	"testing"
	"time"

	"github.com/FabG/chainlit-ui/internal/event"
	"github.com/FabG/chainlit-ui/pkg/types"
)

func TestTaskListDefaultsAndUpdate(t *testing.T) {
	r := newTestRegistry(t, nil)
	s := newTestSession(t, r)
	list := s.Tasks()

	i := list.Add(types.Task{Title: "fetch documents"})
	list.Add(types.Task{Title: "summarize", Status: types.TaskRunning})

	snap := list.Snapshot()
	if len(snap.Tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(snap.Tasks))
	}
	if snap.Tasks[0].Status != types.TaskReady {
		t.Errorf("first task status = %s, want ready by default", snap.Tasks[0].Status)
	}
	if snap.Tasks[1].Status != types.TaskRunning {
		t.Errorf("second task status = %s, want running", snap.Tasks[1].Status)
	}

	if err := list.Update(i, types.TaskDone); err != nil {
		t.Fatal(err)
	}
	if got := list.Snapshot().Tasks[i].Status; got != types.TaskDone {
		t.Errorf("status after update = %s, want done", got)
	}

	if err := list.Update(99, types.TaskDone); err == nil {
		t.Error("out of range update should fail")
	}
}

func TestTaskListSnapshotIsolation(t *testing.T) {
	r := newTestRegistry(t, nil)
	s := newTestSession(t, r)
	list := s.Tasks()
	list.Add(types.Task{Title: "immutable"})

	snap := list.Snapshot()
	snap.Tasks[0].Status = types.TaskFailed

	if got := list.Snapshot().Tasks[0].Status; got != types.TaskReady {
		t.Errorf("status = %s, mutation of a snapshot must not leak", got)
	}
}

func TestTaskListSendPublishes(t *testing.T) {
	r := newTestRegistry(t, nil)
	s := newTestSession(t, r)

	got := make(chan *types.TaskListInfo, 1)
	unsub := r.Bus().Subscribe(event.TaskListUpdated, func(e event.Event) {
		if data, ok := e.Data.(event.TaskListUpdatedData); ok {
			select {
			case got <- data.Info:
			default:
			}
		}
	})
	defer unsub()

	list := s.Tasks()
	list.SetStatus("Running")
	list.Add(types.Task{Title: "step one"})
	list.Add(types.Task{Title: "step two"})
	list.Send()

	select {
	case info := <-got:
		if info.SessionID != s.ID {
			t.Errorf("session = %s, want %s", info.SessionID, s.ID)
		}
		if info.Status != "Running" || len(info.Tasks) != 2 {
			t.Errorf("unexpected snapshot: %+v", info)
		}
	case <-time.After(time.Second):
		t.Fatal("no task list event")
	}
}
