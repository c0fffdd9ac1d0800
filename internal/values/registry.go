package values

import (
	"fmt"
	"sync"
)

// Registry is the per-context mapping from handle to owning BinaryValue,
// described in the data model as "Handle Registry". Any foreign-supplied
// handle may be invalid; Lookup never panics and callers are expected to
// surface a value_exception BinaryValue instead.
type Registry struct {
	mu     sync.RWMutex
	byHdl  map[Handle]*BinaryValue
	nextID uint64
}

// NewRegistry creates an empty handle registry. Handle 0 is reserved as
// "never valid" so callers can use it as a sentinel for "no handle".
func NewRegistry() *Registry {
	return &Registry{
		byHdl:  make(map[Handle]*BinaryValue),
		nextID: 1,
	}
}

// Remember assigns v a fresh handle, registers it, and returns the
// handle. Handles are monotonically increasing and are never reused
// within the life of the registry, per the data model's invariant.
func (r *Registry) Remember(v *BinaryValue) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := Handle(r.nextID)
	r.nextID++
	v.handle = h
	if v.onFree == nil {
		// A buffer-kind value already carries its own onFree (release the
		// backing store, then forget); don't clobber it. Everything else
		// just needs forgetting.
		v.onFree = r.forgetLocked
	}
	r.byHdl[h] = v
	return h
}

// Lookup returns the value for h, or (nil, false) if h is unknown. This
// never panics, including for handles that were never issued by this
// registry or have already been forgotten.
func (r *Registry) Lookup(h Handle) (*BinaryValue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.byHdl[h]
	return v, ok
}

// Forget removes h from the registry. Idempotent: forgetting an unknown
// or already-forgotten handle is a no-op.
func (r *Registry) Forget(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byHdl, h)
}

// forgetLocked is installed as each BinaryValue's onFree callback so
// that Free() on the value also evicts it from the registry, without
// requiring callers to know the handle.
func (r *Registry) forgetLocked(v *BinaryValue) {
	r.mu.Lock()
	delete(r.byHdl, v.handle)
	r.mu.Unlock()
}

// Count returns the number of currently-registered handles.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHdl)
}

// BadHandle builds the value_exception BinaryValue that every operation
// taking a foreign handle must return instead of crashing when the
// handle doesn't resolve. It is not itself registered — callers
// register it like any other fresh value before handing it back.
func BadHandle(h Handle, context string) *BinaryValue {
	return NewException(KindValueException, fmt.Sprintf("%s: invalid handle %d", context, h))
}
