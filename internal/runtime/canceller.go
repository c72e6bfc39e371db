package runtime

import (
	"context"
	"sync"
)

// Canceller owns the live task contexts of one session. Every hook dispatch
// runs as a task registered here, so a stop signal can cancel all in-flight
// work, and the drain callback fires exactly when the last task exits while
// the session is stopping.
type Canceller struct {
	onDrain func()

	mu       sync.Mutex
	nextID   uint64
	cancels  map[uint64]context.CancelFunc
	active   int
	stopping bool
	wg       sync.WaitGroup
}

// NewCanceller creates a canceller. onDrain runs outside the lock whenever the
// last task exits while a stop is in progress.
func NewCanceller(onDrain func()) *Canceller {
	return &Canceller{
		onDrain: onDrain,
		cancels: make(map[uint64]context.CancelFunc),
	}
}

// register derives a cancellable context for a new task. The returned done
// function must be called when the task exits; it is safe to call exactly
// once.
func (c *Canceller) register(ctx context.Context) (context.Context, func()) {
	taskCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.cancels[id] = cancel
	c.active++
	c.wg.Add(1)
	c.mu.Unlock()

	done := func() {
		c.mu.Lock()
		delete(c.cancels, id)
		c.active--
		drained := c.stopping && c.active == 0
		if drained {
			c.stopping = false
		}
		c.mu.Unlock()

		cancel()
		c.wg.Done()
		if drained && c.onDrain != nil {
			c.onDrain()
		}
	}
	return taskCtx, done
}

// CancelAll cancels every live task and arms the drain callback. The caller is
// expected to register at least one more task (the stop hook) afterwards, so
// the drain fires once all cancelled work and the stop hook have exited.
func (c *Canceller) CancelAll() {
	c.mu.Lock()
	c.stopping = true
	cancels := make([]context.CancelFunc, 0, len(c.cancels))
	for _, cancel := range c.cancels {
		cancels = append(cancels, cancel)
	}
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Wait blocks until every live task has exited or the context is done.
func (c *Canceller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active returns the number of live tasks.
func (c *Canceller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
