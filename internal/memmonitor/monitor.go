// Package memmonitor implements the memory monitor (spec component D):
// a background watcher that polls isolate heap statistics and
// terminates the running script if a hard limit is breached, while
// also exposing a moderate-memory-pressure flag for soft-limit
// breaches.
//
// The engine binding's GetHeapStatistics is a point-in-time snapshot
// with no callback hook (no GC epilogue/prologue registration is
// exposed on the isolate type), so rather than hang this off V8's
// AddGCEpilogueCallback, this monitor instead samples on a ticker —
// the same polling approach other isolate health checks use.
package memmonitor

import (
	"sync"
	"sync/atomic"
	"time"

	v8 "github.com/tommie/v8go"
)

// Terminator is the subset of the isolate manager a Monitor needs: the
// ability to interrupt running JS and to run a task on the pump
// thread (heap statistics must be read from there).
type Terminator interface {
	TerminateOngoingTask()
	RunSync(func()) error
}

// Monitor polls an isolate's heap usage and enforces soft ("moderate
// pressure") and hard (terminate) limits.
type Monitor struct {
	iso  *v8.Isolate
	term Terminator

	mu   sync.Mutex
	soft uint64 // bytes; 0 disables
	hard uint64 // bytes; 0 disables

	softReached atomic.Bool
	hardReached atomic.Bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a Monitor for iso, enforced through term. SetLimits must
// be called before Start to arm either threshold.
func New(iso *v8.Isolate, term Terminator) *Monitor {
	return &Monitor{iso: iso, term: term, stop: make(chan struct{})}
}

// SetLimits configures the soft and hard byte thresholds, resetting
// the "reached" flag of any threshold that is disabled or changed to a
// different value, so that after a limit change subsequent checks
// reflect current usage rather than a stale trip. Setting a threshold
// to the nonzero value it already has keeps its flag.
func (m *Monitor) SetLimits(softBytes, hardBytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if softBytes == 0 || softBytes != m.soft {
		m.softReached.Store(false)
	}
	if hardBytes == 0 || hardBytes != m.hard {
		m.hardReached.Store(false)
	}
	m.soft = softBytes
	m.hard = hardBytes
}

// ResetFlags clears both reached-flags without touching the configured
// thresholds. The code evaluator calls this before each top-level
// evaluation so a breach from a prior, unrelated run doesn't leak into
// the next one's classification.
func (m *Monitor) ResetFlags() {
	m.softReached.Store(false)
	m.hardReached.Store(false)
}

// SoftBreached reports whether usage has crossed the soft limit since
// it was last armed or reset.
func (m *Monitor) SoftBreached() bool { return m.softReached.Load() }

// HardBreached reports whether usage has crossed the hard limit (and
// TerminateOngoingTask was therefore called) since it was last armed
// or reset.
func (m *Monitor) HardBreached() bool { return m.hardReached.Load() }

// Start begins polling at the given period in a background goroutine.
// Safe to call once; call Stop before disposing the isolate.
func (m *Monitor) Start(period time.Duration) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				m.poll()
			}
		}
	}()
}

// Stop halts the polling goroutine and waits for it to exit.
func (m *Monitor) Stop() {
	close(m.stop)
	m.wg.Wait()
}

func (m *Monitor) poll() {
	m.mu.Lock()
	soft, hard := m.soft, m.hard
	m.mu.Unlock()
	if soft == 0 && hard == 0 {
		return
	}

	var used uint64
	_ = m.term.RunSync(func() {
		used = m.iso.GetHeapStatistics().UsedHeapSize
	})

	if soft != 0 && used >= soft {
		m.softReached.Store(true)
	}
	if hard != 0 && used >= hard {
		if m.hardReached.CompareAndSwap(false, true) {
			m.term.TerminateOngoingTask()
		}
	}
}
