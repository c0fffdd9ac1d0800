package isolate

import (
	"sync"
	"time"
)

// TimerID identifies a pending setTimeout/setInterval registration.
type TimerID uint64

// Timers is the Go-backed bookkeeping for setTimeout/setInterval/
// clearTimeout. V8 itself has no notion of timers; a host embedding it
// is expected to supply them, firing callbacks by posting tasks back
// onto the isolate's thread. Every fire is routed through the owning
// Manager so the callback runs with the rest of the pump's guarantees
// (one task at a time, followed by a microtask checkpoint).
type Timers struct {
	mgr *Manager

	mu      sync.Mutex
	nextID  TimerID
	pending map[TimerID]*time.Timer
}

// NewTimers creates an empty timer table bound to mgr.
func NewTimers(mgr *Manager) *Timers {
	return &Timers{
		mgr:     mgr,
		nextID:  1,
		pending: make(map[TimerID]*time.Timer),
	}
}

// SetTimeout schedules fn to run once, after delay, on the pump thread.
// It returns immediately with an id usable with Clear.
func (t *Timers) SetTimeout(delay time.Duration, fn func()) TimerID {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.mu.Unlock()

	timer := time.AfterFunc(delay, func() {
		t.mu.Lock()
		_, stillPending := t.pending[id]
		delete(t.pending, id)
		t.mu.Unlock()
		if !stillPending {
			return
		}
		_ = t.mgr.Run(fn)
	})

	t.mu.Lock()
	t.pending[id] = timer
	t.mu.Unlock()
	return id
}

// SetInterval schedules fn to run every period on the pump thread,
// starting after the first period elapses, until Clear(id) is called.
func (t *Timers) SetInterval(period time.Duration, fn func()) TimerID {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.mu.Unlock()

	var arm func()
	arm = func() {
		timer := time.AfterFunc(period, func() {
			t.mu.Lock()
			_, stillPending := t.pending[id]
			t.mu.Unlock()
			if !stillPending {
				return
			}
			_ = t.mgr.Run(fn)
			t.mu.Lock()
			_, stillPending = t.pending[id]
			t.mu.Unlock()
			if stillPending {
				arm()
			}
		})
		t.mu.Lock()
		t.pending[id] = timer
		t.mu.Unlock()
	}
	arm()
	return id
}

// Clear cancels a pending timeout or interval. Idempotent: clearing an
// unknown or already-fired id is a no-op, matching clearTimeout's
// behavior in every JS engine.
func (t *Timers) Clear(id TimerID) {
	t.mu.Lock()
	timer, ok := t.pending[id]
	delete(t.pending, id)
	t.mu.Unlock()
	if ok {
		timer.Stop()
	}
}

// Len reports the number of still-pending timers.
func (t *Timers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// StopAll cancels every pending timer. Called during context teardown,
// after StopJavaScript, so no further callbacks get posted to a manager
// that's about to be stopped.
func (t *Timers) StopAll() {
	t.mu.Lock()
	timers := make([]*time.Timer, 0, len(t.pending))
	for id, timer := range t.pending {
		timers = append(timers, timer)
		delete(t.pending, id)
	}
	t.mu.Unlock()
	for _, timer := range timers {
		timer.Stop()
	}
}
