package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/FabG/chainlit-ui/internal/event"
	"github.com/FabG/chainlit-ui/internal/metrics"
	"github.com/FabG/chainlit-ui/internal/store"
	"github.com/FabG/chainlit-ui/pkg/types"
)

const (
	chatEndTimeout   = 10 * time.Second
	taskDrainTimeout = 5 * time.Second
)

// Session is one live conversation. It owns the chat transcript, the step
// tracker, the action registry, the task list, and the cancellation scope for
// every hook dispatched into it.
//
// Hook dispatches run as tasks: goroutines whose context carries the session
// and is cancelled by Stop and by teardown. Everything else is safe to call
// from any goroutine.
type Session struct {
	ID        string
	CreatedAt int64

	hooks   *Hooks
	bus     *event.Bus
	emitter *Emitter
	history store.History
	metrics *metrics.Metrics
	log     zerolog.Logger

	chat      *ChatContext
	tracker   *Tracker
	actions   *Actions
	tasks     *TaskList
	canceller *Canceller

	baseCtx context.Context
	cancel  context.CancelFunc

	skipRemovedActionMessages bool

	mu         sync.Mutex
	state      types.SessionState
	profile    *string
	user       *types.User
	destroying bool
}

func newSession(id string, r *Registry, profile *string, user *types.User) *Session {
	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		CreatedAt: time.Now().UnixMilli(),

		hooks:   r.hooks,
		bus:     r.bus,
		emitter: r.emitter,
		history: r.history,
		metrics: r.metrics,
		log:     r.log.With().Str("session", id).Logger(),

		baseCtx: baseCtx,
		cancel:  cancel,

		skipRemovedActionMessages: r.skipRemovedActionMessages,

		state:   types.SessionActive,
		profile: profile,
		user:    user,
	}
	s.chat = NewChatContext(id)
	s.tracker = NewTracker(id, r.emitter, r.metrics, s.log)
	s.actions = NewActions(id, r.bus, s.log)
	s.tasks = NewTaskList(id, r.bus)
	s.canceller = NewCanceller(s.onDrain)
	return s
}

// State returns the session lifecycle state.
func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Profile returns the selected chat profile, if any.
func (s *Session) Profile() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// User returns the authenticated user, if any.
func (s *Session) User() *types.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Chat returns the session transcript.
func (s *Session) Chat() *ChatContext { return s.chat }

// Actions returns the session action registry.
func (s *Session) Actions() *Actions { return s.actions }

// Tasks returns the session task list.
func (s *Session) Tasks() *TaskList { return s.tasks }

// Steps returns snapshots of every step recorded in the session.
func (s *Session) Steps() []*types.Step { return s.tracker.Steps() }

// Step returns a snapshot of one step by ID.
func (s *Session) Step(id string) (*types.Step, bool) { return s.tracker.Get(id) }

// Info returns a snapshot of the session for listings and events.
func (s *Session) Info() *types.SessionInfo {
	s.mu.Lock()
	state := s.state
	profile := s.profile
	user := s.user
	s.mu.Unlock()

	return &types.SessionInfo{
		ID:        s.ID,
		State:     state,
		Profile:   profile,
		User:      user,
		CreatedAt: s.CreatedAt,
		Messages:  s.chat.Len(),
		OpenSteps: s.tracker.Depth(),
		Tasks:     len(s.tasks.Snapshot().Tasks),
	}
}

// Send appends a message to the transcript, publishes it, and persists it.
// The message is stamped with an ID and timestamp; an empty author defaults
// to the assistant. When the context carries a current step and the message
// has no parent, the message is linked to that step.
func (s *Session) Send(ctx context.Context, msg *types.Message) (*types.Message, error) {
	s.mu.Lock()
	if s.state == types.SessionEnded {
		s.mu.Unlock()
		return nil, ErrSessionEnded
	}
	s.mu.Unlock()

	clone := msg.Clone()
	clone.ID = ulid.Make().String()
	clone.SessionID = s.ID
	clone.CreatedAt = time.Now().UnixMilli()
	if clone.Author == "" {
		clone.Author = types.AuthorAssistant
	}
	if clone.ParentStepID == nil {
		if h, ok := CurrentStep(ctx); ok {
			stepID := h.ID()
			clone.ParentStepID = &stepID
		}
	}

	s.chat.Append(clone)
	if s.metrics != nil {
		s.metrics.Messages.WithLabelValues(string(clone.Author)).Inc()
	}
	s.bus.Publish(event.MessageCreated, event.MessageCreatedData{Info: clone.Clone()})

	if s.history != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), emitSaveTimeout)
		if err := s.history.SaveMessage(saveCtx, clone); err != nil {
			s.log.Warn().Err(err).Str("message", clone.ID).Msg("message save failed")
		}
		cancel()
	}
	return clone.Clone(), nil
}

// SendText is a convenience wrapper around Send.
func (s *Session) SendText(ctx context.Context, author types.MessageAuthor, content string) (*types.Message, error) {
	return s.Send(ctx, &types.Message{Author: author, Content: content})
}

// HandleMessage records an incoming user message and dispatches the message
// hook as a session task. It returns the recorded message without waiting for
// the hook.
func (s *Session) HandleMessage(ctx context.Context, content string, metadata map[string]any) (*types.Message, error) {
	msg, err := s.Send(ctx, &types.Message{
		Author:   types.AuthorUser,
		Content:  content,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	if fn := s.hooks.messageHandler(); fn != nil {
		s.runTask("message", func(ctx context.Context) error {
			return fn(ctx, s, msg.Clone())
		})
	}
	return msg, nil
}

// HandleAction invokes the callback registered for the named action as a
// session task. The action snapshot passed to the callback comes from the
// session registry when the action is attached, with the request payload
// filling in otherwise. Unknown names return an UnknownActionError carrying a
// close-match suggestion.
func (s *Session) HandleAction(ctx context.Context, name string, payload types.Value) error {
	s.mu.Lock()
	if s.state == types.SessionEnded {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	s.mu.Unlock()

	fn, ok := s.hooks.Action(name)
	if !ok {
		candidates := s.hooks.ActionNames()
		candidates = append(candidates, s.actions.Names()...)
		return &UnknownActionError{Name: name, Suggestion: closest(name, candidates)}
	}

	action, attached := s.actions.Get(name)
	if attached && action.Removed {
		return fmt.Errorf("action %q has been removed", name)
	}
	if !attached {
		action = &types.Action{ID: ulid.Make().String(), Name: name}
	}
	if !payload.IsZero() {
		action.Payload = payload
	}

	s.runTask("action:"+name, func(ctx context.Context) error {
		return fn(ctx, s, action)
	})
	return nil
}

// Stop signals cooperative cancellation. Open steps are flagged stopped from
// the innermost outwards, live tasks get their contexts cancelled, and the
// stop hook is dispatched as a fresh task. When the last task exits the
// session returns to active; the transcript survives and further messages
// are accepted.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case types.SessionEnded:
		s.mu.Unlock()
		return ErrSessionEnded
	case types.SessionStopping:
		s.mu.Unlock()
		return nil
	}
	s.state = types.SessionStopping
	s.mu.Unlock()

	s.log.Info().Msg("stop requested")
	if s.metrics != nil {
		s.metrics.StopSignals.Inc()
	}
	s.bus.Publish(event.SessionState, event.SessionStateData{SessionID: s.ID, State: types.SessionStopping})
	s.bus.Publish(event.StopRequested, event.StopRequestedData{SessionID: s.ID})

	s.tracker.MarkStopping()
	s.canceller.CancelAll()

	// The stop hook task also drives the drain transition when no other work
	// was in flight.
	stopFn := s.hooks.stopHandler()
	s.runStopTask(func(ctx context.Context) error {
		if stopFn == nil {
			return nil
		}
		return stopFn(ctx, s)
	})
	return nil
}

// onDrain runs when the last task exits while the session is stopping.
func (s *Session) onDrain() {
	s.mu.Lock()
	if s.state != types.SessionStopping || s.destroying {
		s.mu.Unlock()
		return
	}
	s.state = types.SessionActive
	s.mu.Unlock()

	s.log.Debug().Msg("stop drained, session active again")
	s.bus.Publish(event.SessionState, event.SessionStateData{SessionID: s.ID, State: types.SessionActive})
}

// runTask dispatches fn as a session task on its own goroutine. Errors and
// panics from fn are surfaced into the session; cancellation errors are
// expected during stop and teardown and are not surfaced.
func (s *Session) runTask(name string, fn func(context.Context) error) {
	s.mu.Lock()
	if s.state == types.SessionEnded || s.destroying {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.spawn(name, fn)
}

// runStopTask is runTask without the destroying gate, so the stop hook still
// runs when a destroy and a stop race.
func (s *Session) runStopTask(fn func(context.Context) error) {
	s.mu.Lock()
	if s.state == types.SessionEnded {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.spawn("stop", fn)
}

func (s *Session) spawn(name string, fn func(context.Context) error) {
	taskCtx, done := s.canceller.register(s.baseCtx)
	taskCtx = WithSession(taskCtx, s)

	go func() {
		defer done()
		err := s.invoke(taskCtx, fn)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.surfaceHookError(name, err)
		}
	}()
}

// invoke runs fn, converting panics into errors.
func (s *Session) invoke(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// surfaceHookError records a hook failure and reports it into the session as
// a system message. The session stays alive.
func (s *Session) surfaceHookError(hook string, err error) {
	hookErr := &HookError{Hook: hook, Err: err}
	s.log.Error().Err(err).Str("hook", hook).Msg("hook failed")
	if s.metrics != nil {
		s.metrics.HookErrors.WithLabelValues(hook).Inc()
	}
	s.bus.Publish(event.HookFailed, event.HookFailedData{
		SessionID: s.ID,
		Hook:      hook,
		Error:     hookErr.Error(),
	})
	if _, sendErr := s.SendText(s.baseCtx, types.AuthorSystem, hookErr.Error()); sendErr != nil {
		s.log.Warn().Err(sendErr).Msg("could not surface hook error")
	}
}

// ProviderMessages renders the transcript for a model call. When configured,
// messages that removed actions were attached to are skipped.
func (s *Session) ProviderMessages() []*schema.Message {
	var exclude map[string]bool
	if s.skipRemovedActionMessages {
		exclude = s.actions.RemovedMessageIDs()
	}
	return s.chat.ProviderMessages(exclude)
}

// destroy tears the session down: the chat end hook runs first, then all
// tasks are cancelled and awaited, open steps are force-closed, and the ended
// state is published. Resources are released even when the hook or the drain
// fails; those failures are collected into the returned error.
func (s *Session) destroy(ctx context.Context) error {
	s.mu.Lock()
	if s.state == types.SessionEnded {
		s.mu.Unlock()
		return nil
	}
	s.destroying = true
	s.mu.Unlock()

	var errs *multierror.Error

	if fn := s.hooks.chatEndHandler(); fn != nil {
		hookCtx, cancel := context.WithTimeout(WithSession(ctx, s), chatEndTimeout)
		err := s.invoke(hookCtx, func(ctx context.Context) error { return fn(ctx, s) })
		cancel()
		if err != nil {
			hookErr := &HookError{Hook: "chat end", Err: err}
			s.log.Error().Err(err).Msg("chat end hook failed")
			if s.metrics != nil {
				s.metrics.HookErrors.WithLabelValues("chat end").Inc()
			}
			s.bus.Publish(event.HookFailed, event.HookFailedData{SessionID: s.ID, Hook: "chat end", Error: hookErr.Error()})
			errs = multierror.Append(errs, hookErr)
		}
	}

	s.cancel()
	waitCtx, cancel := context.WithTimeout(ctx, taskDrainTimeout)
	if err := s.canceller.Wait(waitCtx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("tasks did not drain: %w", err))
	}
	cancel()

	s.tracker.CloseAllStopped()

	s.mu.Lock()
	s.state = types.SessionEnded
	s.mu.Unlock()

	s.log.Info().Msg("session destroyed")
	s.bus.Publish(event.SessionState, event.SessionStateData{SessionID: s.ID, State: types.SessionEnded})
	s.bus.Publish(event.SessionDestroyed, event.SessionDestroyedData{SessionID: s.ID})

	return errs.ErrorOrNil()
}
