// Package collector implements the isolate object collector (spec
// component C): a place for code running on any thread to queue up
// deletion of isolate-owned objects (V8 handles, backing-store release
// funcs) without touching the isolate directly, plus a drain operation
// the isolate manager's pump thread runs to actually perform the
// deletions.
//
// Implemented as a mutex-guarded slice of pending closures drained by
// the owning pump goroutine, the same shape a job queue takes.
package collector

import "sync"

// Runner posts a task to run on the isolate's pump thread, the same
// contract internal/isolate.Manager's Run method satisfies. Collector
// depends only on this interface to avoid an import cycle with
// internal/isolate.
type Runner interface {
	Run(task func()) error
}

// Collector accumulates deferred cleanup closures and lets the owning
// pump thread drain them on demand. It satisfies values.Deferrer.
type Collector struct {
	mu      sync.Mutex
	pending []func()
	runner  Runner

	// waiters receives a non-blocking signal on every Defer. Nothing in
	// this package reads from it; Collector has no Wait method.
	waiters chan struct{}
}

// New creates an empty Collector.
func New() *Collector {
	return &Collector{waiters: make(chan struct{}, 1)}
}

// SetRunner wires r as the pump Defer posts through. Called once, right
// after the owning context's Isolate Manager exists.
func (c *Collector) SetRunner(r Runner) {
	c.mu.Lock()
	c.runner = r
	c.mu.Unlock()
}

// Defer queues fn to run on a future Drain call and immediately posts a
// Drain to the pump thread, since this kind of cleanup touches
// isolate-owned state. If the runner rejects the post, Defer drains
// directly on the caller's goroutine; with no runner set, fn waits for
// an explicit Drain. Safe to call from any thread, including
// concurrently with Drain.
func (c *Collector) Defer(fn func()) {
	c.mu.Lock()
	c.pending = append(c.pending, fn)
	runner := c.runner
	c.mu.Unlock()
	select {
	case c.waiters <- struct{}{}:
	default:
	}

	if runner == nil {
		return
	}
	if err := runner.Run(func() { c.Drain() }); err != nil {
		// The pump is stopping or already stopped: nothing else will
		// ever drain this closure, so run it directly rather than
		// leaking it.
		c.Drain()
	}
}

// Drain runs and clears every closure queued so far. Must be called
// from the isolate's pump thread, since the closures it runs are
// typically V8 backing-store release funcs that are only safe to call
// there. Returns the number of closures run.
func (c *Collector) Drain() int {
	c.mu.Lock()
	batch := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Len reports how many closures are currently queued, without running
// them.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
