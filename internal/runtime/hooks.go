package runtime

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/FabG/chainlit-ui/pkg/types"
)

// Handler signatures for application callbacks. Handlers receive the session
// task's context; it carries the session for step tracing and is cancelled by
// stop signals and teardown.
type (
	// ChatStartHandler runs once when a session is created.
	ChatStartHandler func(ctx context.Context, s *Session) error
	// MessageHandler runs for each incoming user message.
	MessageHandler func(ctx context.Context, s *Session, msg *types.Message) error
	// StopHandler runs once per stop signal, after open steps have been
	// notified.
	StopHandler func(ctx context.Context, s *Session) error
	// ChatEndHandler runs when a session is destroyed, before resources are
	// released.
	ChatEndHandler func(ctx context.Context, s *Session) error
	// ChatResumeHandler runs when a session is resumed from persisted history.
	ChatResumeHandler func(ctx context.Context, s *Session, history []*types.Message) error
	// ActionHandler runs when the named action is invoked.
	ActionHandler func(ctx context.Context, s *Session, action *types.Action) error
	// StartersProvider supplies conversation starters for new sessions.
	StartersProvider func(ctx context.Context) []types.Starter
	// ProfilesProvider supplies the chat profiles offered to a user.
	ProfilesProvider func(ctx context.Context, user *types.User) []types.ChatProfile
	// AuthHandler validates credentials and returns the authenticated user.
	AuthHandler func(ctx context.Context, username, password string) (*types.User, error)
)

// Hooks is the callback registry shared by all sessions. Lifecycle hooks are
// singletons; registering one twice is a configuration error and fails
// loudly. Action callbacks are keyed by name, and re-registering a name
// replaces the previous callback.
//
// All registration normally happens before the first session is created, but
// the registry is safe for concurrent use.
type Hooks struct {
	mu         sync.RWMutex
	chatStart  ChatStartHandler
	message    MessageHandler
	stop       StopHandler
	chatEnd    ChatEndHandler
	chatResume ChatResumeHandler
	starters   StartersProvider
	profiles   ProfilesProvider
	auth       AuthHandler
	actions    map[string]ActionHandler
}

// NewHooks creates an empty callback registry.
func NewHooks() *Hooks {
	return &Hooks{actions: make(map[string]ActionHandler)}
}

// OnChatStart registers the chat start hook.
func (h *Hooks) OnChatStart(fn ChatStartHandler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.chatStart != nil {
		return &RegistrationError{Kind: "chat start hook", Err: ErrDuplicateHook}
	}
	h.chatStart = fn
	return nil
}

// OnMessage registers the message hook.
func (h *Hooks) OnMessage(fn MessageHandler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.message != nil {
		return &RegistrationError{Kind: "message hook", Err: ErrDuplicateHook}
	}
	h.message = fn
	return nil
}

// OnStop registers the stop hook.
func (h *Hooks) OnStop(fn StopHandler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return &RegistrationError{Kind: "stop hook", Err: ErrDuplicateHook}
	}
	h.stop = fn
	return nil
}

// OnChatEnd registers the chat end hook.
func (h *Hooks) OnChatEnd(fn ChatEndHandler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.chatEnd != nil {
		return &RegistrationError{Kind: "chat end hook", Err: ErrDuplicateHook}
	}
	h.chatEnd = fn
	return nil
}

// OnChatResume registers the chat resume hook.
func (h *Hooks) OnChatResume(fn ChatResumeHandler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.chatResume != nil {
		return &RegistrationError{Kind: "chat resume hook", Err: ErrDuplicateHook}
	}
	h.chatResume = fn
	return nil
}

// OnAction registers a callback for the named action. Registering the same
// name again replaces the previous callback.
func (h *Hooks) OnAction(name string, fn ActionHandler) error {
	if name == "" {
		return &RegistrationError{Kind: "action callback", Err: errors.New("name is required")}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions[name] = fn
	return nil
}

// SetStarters registers the starters provider.
func (h *Hooks) SetStarters(fn StartersProvider) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.starters != nil {
		return &RegistrationError{Kind: "starters provider", Err: ErrDuplicateHook}
	}
	h.starters = fn
	return nil
}

// SetChatProfiles registers the chat profiles provider.
func (h *Hooks) SetChatProfiles(fn ProfilesProvider) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.profiles != nil {
		return &RegistrationError{Kind: "chat profiles provider", Err: ErrDuplicateHook}
	}
	h.profiles = fn
	return nil
}

// SetAuth registers the authentication callback.
func (h *Hooks) SetAuth(fn AuthHandler) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.auth != nil {
		return &RegistrationError{Kind: "auth callback", Err: ErrDuplicateHook}
	}
	h.auth = fn
	return nil
}

// StartersFor returns the configured conversation starters, or nil when no
// provider is registered.
func (h *Hooks) StartersFor(ctx context.Context) []types.Starter {
	h.mu.RLock()
	fn := h.starters
	h.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// ProfilesFor returns the chat profiles offered to the user, or nil when no
// provider is registered.
func (h *Hooks) ProfilesFor(ctx context.Context, user *types.User) []types.ChatProfile {
	h.mu.RLock()
	fn := h.profiles
	h.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, user)
}

// Authenticate validates credentials through the registered auth callback.
func (h *Hooks) Authenticate(ctx context.Context, username, password string) (*types.User, error) {
	h.mu.RLock()
	fn := h.auth
	h.mu.RUnlock()
	if fn == nil {
		return nil, ErrAuthNotConfigured
	}
	return fn(ctx, username, password)
}

// HasAuth reports whether an auth callback is registered.
func (h *Hooks) HasAuth() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.auth != nil
}

// Action returns the callback registered for the named action.
func (h *Hooks) Action(name string) (ActionHandler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.actions[name]
	return fn, ok
}

// ActionNames returns the names of all registered action callbacks.
func (h *Hooks) ActionNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.actions))
	for name := range h.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Hooks) chatStartHandler() ChatStartHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.chatStart
}

func (h *Hooks) messageHandler() MessageHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.message
}

func (h *Hooks) stopHandler() StopHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stop
}

func (h *Hooks) chatEndHandler() ChatEndHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.chatEnd
}

func (h *Hooks) chatResumeHandler() ChatResumeHandler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.chatResume
}
