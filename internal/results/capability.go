package results

import (
	"sync"
	"sync/atomic"
)

// Capability initialises an optional heavy dependency once, on first use, and
// caches the outcome. Callers that cannot wait check Ready and render a
// placeholder until the value is available.
type Capability[T any] struct {
	init    func() (T, error)
	once    sync.Once
	done    chan struct{}
	ready   atomic.Bool
	value   T
	initErr error
}

// NewCapability wraps init without running it.
func NewCapability[T any](init func() (T, error)) *Capability[T] {
	return &Capability[T]{init: init, done: make(chan struct{})}
}

// Warm starts initialisation in the background.
func (c *Capability[T]) Warm() {
	go c.load()
}

// Load blocks until initialisation has run and returns its outcome.
func (c *Capability[T]) Load() (T, error) {
	c.load()
	return c.value, c.initErr
}

// Ready reports whether initialisation finished successfully.
func (c *Capability[T]) Ready() bool {
	return c.ready.Load()
}

// Peek returns the value without blocking. ok is false while initialisation
// is pending or after it failed; err carries the failure.
func (c *Capability[T]) Peek() (value T, ok bool, err error) {
	select {
	case <-c.done:
		return c.value, c.initErr == nil, c.initErr
	default:
		var zero T
		return zero, false, nil
	}
}

func (c *Capability[T]) load() {
	c.once.Do(func() {
		defer close(c.done)
		c.value, c.initErr = c.init()
		if c.initErr == nil {
			c.ready.Store(true)
		}
	})
}
