package runtime

import (
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/FabG/chainlit-ui/internal/event"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// Actions is the per-session action registry. Attaching under an existing name
// replaces the previous entry; removal is monotonic and notifies subscribers
// exactly once per action.
type Actions struct {
	sessionID string
	bus       *event.Bus
	log       zerolog.Logger

	mu          sync.Mutex
	byName      map[string]*types.Action
	removedMsgs map[string]bool
}

// NewActions creates an empty action registry for the session.
func NewActions(sessionID string, bus *event.Bus, log zerolog.Logger) *Actions {
	return &Actions{
		sessionID:   sessionID,
		bus:         bus,
		log:         log,
		byName:      make(map[string]*types.Action),
		removedMsgs: make(map[string]bool),
	}
}

// Attach registers an action, replacing any previous action with the same
// name. A fresh ID is assigned when the action has none. Returns a snapshot of
// the stored action.
func (a *Actions) Attach(action *types.Action) *types.Action {
	clone := action.Clone()
	if clone.ID == "" {
		clone.ID = ulid.Make().String()
	}
	clone.Removed = false

	a.mu.Lock()
	a.byName[clone.Name] = clone
	out := clone.Clone()
	a.mu.Unlock()

	a.log.Debug().Str("action", clone.Name).Msg("action attached")
	a.bus.Publish(event.ActionAttached, event.ActionAttachedData{SessionID: a.sessionID, Info: out.Clone()})
	return out
}

// Remove marks the named action removed. The first removal publishes a single
// notification; repeated removals and removals of unknown names are no-ops.
func (a *Actions) Remove(name string) bool {
	a.mu.Lock()
	action, ok := a.byName[name]
	if !ok || action.Removed {
		a.mu.Unlock()
		return false
	}
	action.Removed = true
	if action.AttachedMessageID != nil {
		a.removedMsgs[*action.AttachedMessageID] = true
	}
	id := action.ID
	a.mu.Unlock()

	a.log.Debug().Str("action", name).Msg("action removed")
	a.bus.Publish(event.ActionRemoved, event.ActionRemovedData{
		SessionID: a.sessionID,
		ID:        id,
		Name:      name,
	})
	return true
}

// Get returns a snapshot of the named action.
func (a *Actions) Get(name string) (*types.Action, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	action, ok := a.byName[name]
	if !ok {
		return nil, false
	}
	return action.Clone(), true
}

// List returns snapshots of all attached actions, sorted by name. Removed
// actions are included with their Removed flag set.
func (a *Actions) List() []*types.Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*types.Action, 0, len(a.byName))
	for _, action := range a.byName {
		out = append(out, action.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the names of all attached actions.
func (a *Actions) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.byName))
	for name := range a.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RemovedMessageIDs returns the IDs of messages that removed actions were
// attached to.
func (a *Actions) RemovedMessageIDs() map[string]bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]bool, len(a.removedMsgs))
	for id := range a.removedMsgs {
		out[id] = true
	}
	return out
}

// closest returns the candidate with the smallest edit distance from name.
// Candidates more than three edits away are not considered plausible typos.
func closest(name string, candidates []string) string {
	best := ""
	bestDist := 4
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(name, c); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}
