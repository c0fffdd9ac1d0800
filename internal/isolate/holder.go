// Package isolate implements the isolate holder and isolate manager
// (spec components A and B): the thin owner of a single V8 isolate and
// its array-buffer allocator, and the dedicated pump thread that
// serializes every access to that isolate. It also hosts the
// breaker-thread timeout helper the code evaluator uses and the
// Go-backed setTimeout/setInterval bookkeeping that lets the pump make
// timers progress alongside promises and microtasks.
//
// Isolate creation (with resource constraints and dispose ordering)
// and timer bookkeeping are generalized here off any particular
// worker-pool's specifics into a single-isolate-per-Context shape.
package isolate

import (
	v8 "github.com/tommie/v8go"
)

// Holder owns one V8 isolate and the one persistent JS context created
// for it. Its only job is construction/disposal in the right order —
// all actual use of the isolate happens through Manager, never directly
// through Holder.
type Holder struct {
	Isolate *v8.Isolate
	Context *v8.Context
}

// Limits configures the isolate's heap. Zero values mean "use V8's
// defaults" as documented by v8go.NewIsolateWith.
type Limits struct {
	InitialHeapBytes uint64
	MaxHeapBytes     uint64
}

// NewHolder creates an isolate (honoring limits, if non-zero) and its
// single persistent context.
func NewHolder(limits Limits) *Holder {
	var iso *v8.Isolate
	if limits.InitialHeapBytes != 0 || limits.MaxHeapBytes != 0 {
		iso = v8.NewIsolateWith(limits.InitialHeapBytes, limits.MaxHeapBytes)
	} else {
		iso = v8.NewIsolate()
	}
	return &Holder{
		Isolate: iso,
		Context: v8.NewContext(iso),
	}
}

// Dispose closes the context and disposes the isolate, in that order.
// Must be called after Manager.Stop has returned (the pump goroutine
// has exited), once JS has been stopped and all pending tasks have
// completed or been canceled.
func (h *Holder) Dispose() {
	h.Context.Close()
	h.Isolate.Dispose()
}
