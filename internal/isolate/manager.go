package isolate

import (
	"errors"
	"sync/atomic"
)

// State is one of the three states the pump can be in, per the isolate
// manager's design: Run allows JS, NoJavaScript keeps the pump alive
// (so teardown-adjacent bookkeeping can still run) and stops its
// microtask checkpoints, and Stop tells the pump to exit. NoJavaScript
// does not prevent a posted task from running JS.
type State int32

const (
	StateRun State = iota
	StateNoJavaScript
	StateStop
)

// ErrStopped is returned by Run when the manager has already been
// stopped; posting further work is rejected rather than silently
// dropped so callers notice a programming error (posting after
// teardown) instead of a task vanishing.
var ErrStopped = errors.New("isolate: manager stopped")

// Manager is the dedicated pump thread that serializes all access to a
// single isolate. V8 isolates are not safe for concurrent access from
// multiple threads, and mixing locker/unlocker scopes with tasks,
// promises and microtasks is fragile — funnelling everything through
// one thread eliminates that whole class of bugs.
type Manager struct {
	holder *Holder

	state atomic.Int32

	queue  chan func()
	closed atomic.Bool
	done   chan struct{}
}

// NewManager starts the pump goroutine for holder. The caller retains
// ownership of holder and must not touch its isolate/context directly
// once the manager is running.
func NewManager(holder *Holder) *Manager {
	m := &Manager{
		holder: holder,
		queue:  make(chan func(), 64),
		done:   make(chan struct{}),
	}
	go m.pump()
	return m
}

// State returns the manager's current state. Lock-free scalar read.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Run posts task to run on the pump thread and returns immediately;
// task's completion is observed by whatever the caller composes on top
// (the cancelable task runner's on-completed/on-canceled callbacks).
// Safe to call from any thread. Tasks posted from the same goroutine
// execute in submission order; tasks from different goroutines
// interleave arbitrarily but each runs to completion before the next
// starts.
func (m *Manager) Run(task func()) error {
	if m.closed.Load() {
		return ErrStopped
	}
	select {
	case m.queue <- task:
		return nil
	case <-m.done:
		return ErrStopped
	}
}

// RunSync posts task and blocks until it has run on the pump thread.
// Used for bootstrap and teardown bookkeeping where the caller needs a
// happens-before relationship with pump state, not for general
// JS-running work (which should go through the cancelable task runner
// so cancellation and timeouts apply).
func (m *Manager) RunSync(task func()) error {
	doneCh := make(chan struct{})
	err := m.Run(func() {
		defer close(doneCh)
		task()
	})
	if err != nil {
		return err
	}
	<-doneCh
	return nil
}

// TerminateOngoingTask asks the isolate to interrupt whatever JS is
// currently executing. Safe to call from any thread, including
// concurrently with the pump running other, unrelated tasks — V8
// guarantees TerminateExecution is safe cross-thread.
func (m *Manager) TerminateOngoingTask() {
	m.holder.Isolate.TerminateExecution()
}

// StopJavaScript transitions to NoJavaScript and interrupts any script
// currently running. The pump keeps processing non-JS housekeeping
// tasks (e.g. deferred backing-store releases) after this call.
func (m *Manager) StopJavaScript() error {
	err := m.Run(func() {
		m.state.Store(int32(StateNoJavaScript))
	})
	if err != nil && !errors.Is(err, ErrStopped) {
		return err
	}
	m.holder.Isolate.TerminateExecution()
	return nil
}

// Stop transitions to Stop, drains any tasks already queued, and then
// exits the pump goroutine. Further calls to Run fail with ErrStopped.
// Stop blocks until the pump goroutine has exited, so the caller can
// safely dispose the isolate immediately after Stop returns.
func (m *Manager) Stop() {
	if m.closed.CompareAndSwap(false, true) {
		m.state.Store(int32(StateStop))
		close(m.queue)
	}
	<-m.done
}

// pump is the dedicated isolate-owning goroutine. It runs the
// foreground message loop in "wait for work" terms: block on the queue,
// run whatever arrives, and perform a microtask checkpoint after each
// item while in the Run state.
func (m *Manager) pump() {
	defer close(m.done)
	for task := range m.queue {
		task()
		if State(m.state.Load()) == StateRun {
			m.holder.Context.PerformMicrotaskCheckpoint()
		}
	}
}
