package runtime

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/FabG/chainlit-ui/internal/metrics"
	"github.com/FabG/chainlit-ui/pkg/types"
)

type stepCtxKey struct{}

// Tracker records the step tree of a single session. Steps are stored in an
// arena keyed by ID with parent/child links by ID, so closing order never
// invalidates references. The open list is kept in opening order; the tail is
// the innermost running step.
type Tracker struct {
	sessionID string
	emitter   *Emitter
	metrics   *metrics.Metrics
	log       zerolog.Logger

	mu         sync.Mutex
	steps      map[string]*types.Step
	open       []string
	overridden map[string]bool
}

// NewTracker creates a tracker for the session.
func NewTracker(sessionID string, emitter *Emitter, m *metrics.Metrics, log zerolog.Logger) *Tracker {
	return &Tracker{
		sessionID:  sessionID,
		emitter:    emitter,
		metrics:    m,
		log:        log,
		steps:      make(map[string]*types.Step),
		overridden: make(map[string]bool),
	}
}

// StepHandle refers to a step in the arena. Handles stay valid after the step
// closes; mutating methods become no-ops once the step is no longer running.
type StepHandle struct {
	t  *Tracker
	id string
}

// ID returns the step ID.
func (h *StepHandle) ID() string { return h.id }

// Info returns a snapshot of the step.
func (h *StepHandle) Info() *types.Step {
	h.t.mu.Lock()
	defer h.t.mu.Unlock()
	if st, ok := h.t.steps[h.id]; ok {
		return st.Clone()
	}
	return nil
}

// SetInput replaces the recorded input while the step is running.
func (h *StepHandle) SetInput(v types.Value) {
	h.t.update(h.id, func(st *types.Step) {
		st.Input = v
	})
}

// SetOutput sets the step output, overriding the wrapped function's return
// value.
func (h *StepHandle) SetOutput(v types.Value) {
	h.t.update(h.id, func(st *types.Step) {
		st.Output = v
		h.t.overridden[h.id] = true
	})
}

// SetMeta attaches a metadata key to the step.
func (h *StepHandle) SetMeta(key string, value any) {
	h.t.update(h.id, func(st *types.Step) {
		if st.Meta == nil {
			st.Meta = make(map[string]any)
		}
		st.Meta[key] = value
	})
}

// CurrentStep returns a handle to the innermost step tracked by the calling
// context, if any. The handle can override the step's input and output while
// it is still running.
func CurrentStep(ctx context.Context) (*StepHandle, bool) {
	id, _ := ctx.Value(stepCtxKey{}).(string)
	if id == "" {
		return nil, false
	}
	s := FromContext(ctx)
	if s == nil {
		return nil, false
	}
	return &StepHandle{t: s.tracker, id: id}, true
}

// Open records a new step under the context's current step and returns a
// derived context that makes it the current step. The caller must close the
// returned handle; Wrap does this automatically.
func (t *Tracker) Open(ctx context.Context, typ types.StepType, name string, input types.Value) (context.Context, *StepHandle) {
	parentID, _ := ctx.Value(stepCtxKey{}).(string)

	st := &types.Step{
		ID:        ulid.Make().String(),
		SessionID: t.sessionID,
		Type:      typ,
		Name:      name,
		Input:     input,
		Status:    types.StepRunning,
		StartedAt: time.Now().UnixMilli(),
	}
	if parentID != "" {
		st.ParentID = &parentID
	}

	t.mu.Lock()
	t.steps[st.ID] = st
	t.open = append(t.open, st.ID)
	if parentID != "" {
		if parent, ok := t.steps[parentID]; ok {
			parent.Children = append(parent.Children, st.ID)
		}
	}
	clone := st.Clone()
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.StepsOpened.WithLabelValues(string(typ)).Inc()
	}
	t.log.Debug().Str("step", st.ID).Str("name", name).Str("type", string(typ)).Msg("step started")
	t.emitter.StepStarted(clone)

	return context.WithValue(ctx, stepCtxKey{}, st.ID), &StepHandle{t: t, id: st.ID}
}

// finish closes the step. The final status is decided here, under the lock:
// a nil error means the step succeeded even if a stop signal provisionally
// marked it stopped while it was finishing. The first close wins; later calls
// are no-ops.
func (t *Tracker) finish(id string, err error, output types.Value) {
	t.mu.Lock()
	st, ok := t.steps[id]
	if !ok || st.Closed() {
		t.mu.Unlock()
		return
	}

	now := time.Now().UnixMilli()
	st.EndedAt = &now
	switch {
	case err == nil:
		st.Status = types.StepSucceeded
		if !t.overridden[id] {
			st.Output = output
		}
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		st.Status = types.StepStopped
	default:
		st.Status = types.StepFailed
		if !t.overridden[id] {
			st.Output = types.StringValue(err.Error())
		}
	}
	delete(t.overridden, id)
	t.removeOpen(id)
	clone := st.Clone()
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.StepsClosed.WithLabelValues(string(st.Type), string(clone.Status)).Inc()
		t.metrics.StepDuration.WithLabelValues(string(st.Type)).Observe(float64(now-clone.StartedAt) / 1000)
	}
	t.log.Debug().Str("step", id).Str("status", string(clone.Status)).Msg("step closed")
	t.emitter.StepClosed(clone)
}

// update applies fn to a running step and publishes the update.
func (t *Tracker) update(id string, fn func(*types.Step)) {
	t.mu.Lock()
	st, ok := t.steps[id]
	if !ok || st.Closed() {
		t.mu.Unlock()
		return
	}
	fn(st)
	clone := st.Clone()
	t.mu.Unlock()

	t.emitter.StepUpdated(clone)
}

// MarkStopping flags every open step as stopped, innermost first. The flag is
// provisional; finish decides the final status when the step body returns.
func (t *Tracker) MarkStopping() {
	t.mu.Lock()
	var clones []*types.Step
	for i := len(t.open) - 1; i >= 0; i-- {
		st := t.steps[t.open[i]]
		if st.Status == types.StepRunning {
			st.Status = types.StepStopped
			clones = append(clones, st.Clone())
		}
	}
	t.mu.Unlock()

	for _, c := range clones {
		t.emitter.StepUpdated(c)
	}
}

// CloseAllStopped force-closes every open step with stopped status. Used during
// teardown so persisted traces never contain dangling open steps.
func (t *Tracker) CloseAllStopped() {
	t.mu.Lock()
	now := time.Now().UnixMilli()
	var clones []*types.Step
	for i := len(t.open) - 1; i >= 0; i-- {
		st := t.steps[t.open[i]]
		if st.Closed() {
			continue
		}
		st.Status = types.StepStopped
		st.EndedAt = &now
		clones = append(clones, st.Clone())
	}
	t.open = t.open[:0]
	t.mu.Unlock()

	for _, c := range clones {
		if t.metrics != nil {
			t.metrics.StepsClosed.WithLabelValues(string(c.Type), string(c.Status)).Inc()
		}
		t.emitter.StepClosed(c)
	}
}

// Depth returns the number of open steps.
func (t *Tracker) Depth() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

// Get returns a snapshot of a step by ID.
func (t *Tracker) Get(id string) (*types.Step, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.steps[id]
	if !ok {
		return nil, false
	}
	return st.Clone(), true
}

// Steps returns snapshots of every recorded step in opening order.
func (t *Tracker) Steps() []*types.Step {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*types.Step, 0, len(t.steps))
	for _, st := range t.steps {
		out = append(out, st.Clone())
	}
	sortStepsByStart(out)
	return out
}

func (t *Tracker) removeOpen(id string) {
	for i, openID := range t.open {
		if openID == id {
			t.open = append(t.open[:i], t.open[i+1:]...)
			return
		}
	}
}

func sortStepsByStart(steps []*types.Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].StartedAt != steps[j].StartedAt {
			return steps[i].StartedAt < steps[j].StartedAt
		}
		return steps[i].ID < steps[j].ID
	})
}
