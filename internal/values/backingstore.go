package values

import "sync"

// BackingStoreMap is the mapping from a BinaryValue's handle to a
// strong reference to its JS ArrayBuffer/SharedArrayBuffer backing
// store, keeping the backing store alive for as long as the foreign
// side holds the handle. The entry is erased when the BinaryValue is
// freed.
type BackingStoreMap struct {
	mu      sync.Mutex
	byHdl   map[Handle]any
}

// NewBackingStoreMap creates an empty backing-store map.
func NewBackingStoreMap() *BackingStoreMap {
	return &BackingStoreMap{byHdl: make(map[Handle]any)}
}

// Retain stores ref (typically a *v8go.Value referencing the
// ArrayBuffer/SharedArrayBuffer, or anything else the engine binding
// uses to keep the backing store's reference count alive) under h.
func (m *BackingStoreMap) Retain(h Handle, ref any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byHdl[h] = ref
}

// Release drops the reference held for h, if any.
func (m *BackingStoreMap) Release(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byHdl, h)
}

// Has reports whether h currently has a retained backing store. Used by
// tests to assert the round-trip in property 2 of the testable
// properties: free_value followed by lookup must leave no trace.
func (m *BackingStoreMap) Has(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byHdl[h]
	return ok
}

// Len returns the number of retained backing stores.
func (m *BackingStoreMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byHdl)
}
