package runtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/FabG/chainlit-ui/internal/event"
	"github.com/FabG/chainlit-ui/internal/metrics"
	"github.com/FabG/chainlit-ui/internal/store"
	"github.com/FabG/chainlit-ui/pkg/types"
)

const (
	emitRetryInitialInterval = 100 * time.Millisecond
	emitRetryMaxInterval     = 2 * time.Second
	emitSaveTimeout          = 5 * time.Second
)

// Emitter is the egress path for step events. Lifecycle events go straight to
// the bus; closed steps additionally flow through a bounded queue to the
// history backend, with exponential backoff on transient failures so a slow
// store never blocks step closing.
//
// Hidden patterns suppress bus events for matching steps. Hidden steps are
// still persisted.
type Emitter struct {
	bus     *event.Bus
	history store.History
	metrics *metrics.Metrics
	log     zerolog.Logger

	hidden     []string
	maxElapsed time.Duration

	queue   chan *types.Step
	pending atomic.Int64

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewEmitter creates an emitter and starts its delivery worker. history may be
// nil when no persistence backend is configured.
func NewEmitter(cfg types.EmitterConfig, bus *event.Bus, history store.History, m *metrics.Metrics, log zerolog.Logger) *Emitter {
	buffer := cfg.BufferSize
	if buffer <= 0 {
		buffer = 256
	}
	maxElapsed := time.Duration(cfg.MaxRetrySeconds) * time.Second
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}

	e := &Emitter{
		bus:        bus,
		history:    history,
		metrics:    m,
		log:        log,
		hidden:     cfg.Hidden,
		maxElapsed: maxElapsed,
		queue:      make(chan *types.Step, buffer),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	go e.run()
	return e
}

// StepStarted publishes a step started event unless the step is hidden.
func (e *Emitter) StepStarted(st *types.Step) {
	if e.isHidden(st) {
		return
	}
	e.bus.Publish(event.StepStarted, event.StepStartedData{Info: st})
}

// StepUpdated publishes a step updated event unless the step is hidden.
func (e *Emitter) StepUpdated(st *types.Step) {
	if e.isHidden(st) {
		return
	}
	e.bus.Publish(event.StepUpdated, event.StepUpdatedData{Info: st})
}

// StepClosed enqueues a closed step for delivery. On a full queue the step is
// dropped from the delivery path with an error log; the caller keeps the step
// in its tracker arena either way.
func (e *Emitter) StepClosed(st *types.Step) {
	select {
	case e.queue <- st:
		e.pending.Add(1)
	default:
		e.log.Error().Str("step", st.ID).Msg("emitter queue full, step delivery dropped")
	}
}

// Flush blocks until every enqueued step has been delivered or the context is
// done.
func (e *Emitter) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if e.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close drains the queue and stops the worker.
func (e *Emitter) Close() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
	<-e.doneCh
}

func (e *Emitter) run() {
	defer close(e.doneCh)
	for {
		select {
		case st := <-e.queue:
			e.deliver(st)
			e.pending.Add(-1)
		case <-e.stopCh:
			for {
				select {
				case st := <-e.queue:
					e.deliver(st)
					e.pending.Add(-1)
				default:
					return
				}
			}
		}
	}
}

func (e *Emitter) deliver(st *types.Step) {
	if !e.isHidden(st) {
		e.bus.Publish(event.StepClosed, event.StepClosedData{Info: st})
	}
	if e.history == nil {
		return
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = emitRetryInitialInterval
	b.MaxInterval = emitRetryMaxInterval
	b.MaxElapsedTime = e.maxElapsed

	op := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), emitSaveTimeout)
		defer cancel()
		return e.history.SaveStep(ctx, st)
	}
	notify := func(err error, next time.Duration) {
		if e.metrics != nil {
			e.metrics.EmitRetries.Inc()
		}
		e.log.Warn().Err(err).Dur("retry_in", next).Str("step", st.ID).Msg("step save failed, retrying")
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		e.log.Error().Err(err).Str("step", st.ID).Msg("step save failed permanently")
	}
}

// isHidden reports whether any hidden pattern matches the step. Patterns match
// against both "type/name" and the bare step name.
func (e *Emitter) isHidden(st *types.Step) bool {
	if len(e.hidden) == 0 {
		return false
	}
	key := string(st.Type) + "/" + st.Name
	for _, pat := range e.hidden {
		if ok, err := doublestar.Match(pat, key); err == nil && ok {
			return true
		}
		if ok, err := doublestar.Match(pat, st.Name); err == nil && ok {
			return true
		}
	}
	return false
}
