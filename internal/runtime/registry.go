package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/FabG/chainlit-ui/internal/event"
	"github.com/FabG/chainlit-ui/internal/logging"
	"github.com/FabG/chainlit-ui/internal/metrics"
	"github.com/FabG/chainlit-ui/internal/store"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// Registry owns every live session and the infrastructure they share: the
// event bus, the step emitter, the history backend, and the metrics set.
// There is no ambient global; transports hold a *Registry and go through it.
type Registry struct {
	hooks   *Hooks
	bus     *event.Bus
	emitter *Emitter
	history store.History
	metrics *metrics.Metrics
	log     zerolog.Logger

	skipRemovedActionMessages bool

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

type registryOptions struct {
	bus     *event.Bus
	history store.History
	metrics *metrics.Metrics
	log     *zerolog.Logger
	runtime types.RuntimeConfig
}

// Option configures a Registry.
type Option func(*registryOptions)

// WithBus sets the event bus. A registry without this option creates its own.
func WithBus(b *event.Bus) Option {
	return func(o *registryOptions) { o.bus = b }
}

// WithHistory sets the persistence backend. Without it, sessions are
// in-memory only.
func WithHistory(h store.History) Option {
	return func(o *registryOptions) { o.history = h }
}

// WithMetrics sets the metrics set. A registry without this option creates
// its own.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *registryOptions) { o.metrics = m }
}

// WithLogger sets the base logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *registryOptions) { o.log = &log }
}

// WithRuntimeConfig applies runtime tuning from the loaded configuration.
func WithRuntimeConfig(cfg types.RuntimeConfig) Option {
	return func(o *registryOptions) { o.runtime = cfg }
}

// NewRegistry creates a registry around the given hook set.
func NewRegistry(hooks *Hooks, opts ...Option) *Registry {
	var o registryOptions
	for _, opt := range opts {
		opt(&o)
	}
	if hooks == nil {
		hooks = NewHooks()
	}
	if o.bus == nil {
		o.bus = event.NewBus()
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	log := logging.Component("runtime")
	if o.log != nil {
		log = *o.log
	}

	return &Registry{
		hooks:   hooks,
		bus:     o.bus,
		emitter: NewEmitter(o.runtime.Emitter, o.bus, o.history, o.metrics, log),
		history: o.history,
		metrics: o.metrics,
		log:     log,

		skipRemovedActionMessages: o.runtime.SkipRemovedActionMessages,

		sessions: make(map[string]*Session),
	}
}

// Hooks returns the callback registry.
func (r *Registry) Hooks() *Hooks { return r.hooks }

// Bus returns the event bus.
func (r *Registry) Bus() *event.Bus { return r.bus }

// Metrics returns the metrics set.
func (r *Registry) Metrics() *metrics.Metrics { return r.metrics }

// CreateOptions carries optional attributes for Create and Resume.
type CreateOptions struct {
	// ID sets the session ID. Create generates one when empty; Resume
	// requires it.
	ID string
	// Profile selects a chat profile by name. Validated against the profiles
	// provider when one is registered.
	Profile *string
	// User is the authenticated user, if any.
	User *types.User
}

// Create registers a new session and dispatches the chat start hook. The
// returned session is live immediately; the hook runs as a session task.
func (r *Registry) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	profile, err := r.resolveProfile(ctx, opts.Profile, opts.User)
	if err != nil {
		return nil, err
	}

	id := opts.ID
	if id == "" {
		id = ulid.Make().String()
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if _, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}
	s := newSession(id, r, profile, opts.User)
	r.sessions[id] = s
	r.mu.Unlock()

	r.metrics.SessionsCreated.Inc()
	r.metrics.SessionsActive.Inc()
	s.log.Info().Msg("session created")
	r.bus.Publish(event.SessionCreated, event.SessionCreatedData{Info: s.Info()})
	r.saveSession(s)

	if fn := r.hooks.chatStartHandler(); fn != nil {
		s.runTask("chat start", func(ctx context.Context) error {
			return fn(ctx, s)
		})
	}
	return s, nil
}

// Resume registers a session seeded with persisted history and dispatches
// the chat resume hook. When msgs is nil the transcript is loaded from the
// history backend; a session unknown to the backend cannot be resumed.
func (r *Registry) Resume(ctx context.Context, opts CreateOptions, msgs []*types.Message) (*Session, error) {
	if opts.ID == "" {
		return nil, errors.New("session id is required to resume")
	}

	if msgs == nil {
		if r.history == nil {
			return nil, ErrSessionNotFound
		}
		if _, err := r.history.Session(ctx, opts.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, fmt.Errorf("load session %s: %w", opts.ID, err)
		}
		var err error
		msgs, err = r.history.Messages(ctx, opts.ID)
		if err != nil {
			return nil, fmt.Errorf("load history %s: %w", opts.ID, err)
		}
	}

	profile, err := r.resolveProfile(ctx, opts.Profile, opts.User)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	if _, ok := r.sessions[opts.ID]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, opts.ID)
	}
	s := newSession(opts.ID, r, profile, opts.User)
	s.chat.Seed(msgs)
	r.sessions[opts.ID] = s
	r.mu.Unlock()

	r.metrics.SessionsResumed.Inc()
	r.metrics.SessionsActive.Inc()
	s.log.Info().Int("messages", len(msgs)).Msg("session resumed")
	r.bus.Publish(event.SessionResumed, event.SessionResumedData{Info: s.Info(), Messages: len(msgs)})
	r.saveSession(s)

	if fn := r.hooks.chatResumeHandler(); fn != nil {
		history := s.chat.Messages()
		s.runTask("chat resume", func(ctx context.Context) error {
			return fn(ctx, s, history)
		})
	}
	return s, nil
}

// Get returns a live session by ID.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// List returns snapshots of every live session, oldest first.
func (r *Registry) List() []*types.SessionInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]*types.SessionInfo, len(sessions))
	for i, s := range sessions {
		infos[i] = s.Info()
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt != infos[j].CreatedAt {
			return infos[i].CreatedAt < infos[j].CreatedAt
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Destroy removes a session and tears it down. Destroying an unknown session
// is a no-op, so repeated destroys are safe.
func (r *Registry) Destroy(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	err := s.destroy(ctx)
	r.metrics.SessionsActive.Dec()
	return err
}

// Shutdown destroys every session, flushes the emitter, and closes the bus
// and the history backend. Safe to call more than once.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var errs *multierror.Error
	for _, s := range sessions {
		if err := s.destroy(ctx); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("destroy %s: %w", s.ID, err))
		}
		r.metrics.SessionsActive.Dec()
	}

	if err := r.emitter.Flush(ctx); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("flush emitter: %w", err))
	}
	r.emitter.Close()
	r.bus.Close()
	if r.history != nil {
		if err := r.history.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close history: %w", err))
		}
	}

	r.log.Info().Msg("registry shut down")
	return errs.ErrorOrNil()
}

// resolveProfile validates the requested chat profile against the profiles
// provider. With no request, the provider's default profile is selected.
func (r *Registry) resolveProfile(ctx context.Context, requested *string, user *types.User) (*string, error) {
	profiles := r.hooks.ProfilesFor(ctx, user)
	if requested == nil {
		for _, p := range profiles {
			if p.Default {
				name := p.Name
				return &name, nil
			}
		}
		return nil, nil
	}
	if len(profiles) == 0 {
		return requested, nil
	}
	names := make([]string, len(profiles))
	for i, p := range profiles {
		names[i] = p.Name
		if p.Name == *requested {
			return requested, nil
		}
	}
	return nil, &UnknownProfileError{Name: *requested, Suggestion: closest(*requested, names)}
}

// saveSession persists the session record, best effort.
func (r *Registry) saveSession(s *Session) {
	if r.history == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.Background(), emitSaveTimeout)
	defer cancel()
	if err := r.history.SaveSession(saveCtx, s.Info()); err != nil {
		s.log.Warn().Err(err).Msg("session save failed")
	}
}
