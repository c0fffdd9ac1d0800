package values

import (
	"strings"
	"unicode/utf8"

	v8 "github.com/tommie/v8go"
)

// Deferrer defers a zero-arg function to run later on the isolate's pump
// thread. The Isolate Object Collector (internal/collector) implements
// this; Factory depends only on the interface to avoid a cycle between
// the two packages.
type Deferrer interface {
	Defer(fn func())
}

// Factory allocates BinaryValues from JS values (convert_from_v8) and
// owns the registry and backing-store map on behalf of a single runtime
// context. FromV8 must only be called from the context's pump thread,
// since converting a value inspects live V8 state; Alloc, Lookup and
// Free go through the mutex-guarded registry and are called from any
// goroutine.
type Factory struct {
	Registry *Registry
	backing  *BackingStoreMap
	deferrer Deferrer

	// identityHash, when non-nil, is a JS function of one argument
	// (`function(o){...}`) backed by a per-context WeakMap that assigns
	// a stable small integer to any object/function/symbol it is
	// called with. V8's own GetIdentityHash() is not part of the
	// engine binding's public surface, so identity hashing is done in
	// JS instead — see SetIdentityHashFunc.
	identityHash *v8.Function
}

// NewFactory creates a Factory backed by a fresh registry and
// backing-store map, deferring isolate-owned cleanup through d.
func NewFactory(d Deferrer) *Factory {
	return &Factory{
		Registry: NewRegistry(),
		backing:  NewBackingStoreMap(),
		deferrer: d,
	}
}

// SetIdentityHashFunc installs the per-context identity-hash helper.
// Called once, right after the context's JS environment is bootstrapped.
func (f *Factory) SetIdentityHashFunc(fn *v8.Function) {
	f.identityHash = fn
}

// Alloc registers v in the factory's registry and returns its handle.
// Every BinaryValue handed to foreign code must go through Alloc so it
// becomes a registry-valid handle, per the data model's invariant.
func (f *Factory) Alloc(v *BinaryValue) Handle {
	return f.Registry.Remember(v)
}

// Free frees the value at h, if any, and is a no-op for an unknown or
// already-freed handle (forget is idempotent).
func (f *Factory) Free(h Handle) {
	if v, ok := f.Registry.Lookup(h); ok {
		v.Free()
	}
}

// Lookup resolves a handle to its BinaryValue, or reports a well-formed
// value_exception (not yet registered) if h is unknown. Every operation
// accepting a foreign handle should route through this rather than
// indexing the registry directly.
func (f *Factory) Lookup(h Handle, context string) (*BinaryValue, *BinaryValue) {
	if v, ok := f.Registry.Lookup(h); ok {
		return v, nil
	}
	return nil, BadHandle(h, context)
}

// FromV8 maps a JS value to a BinaryValue by type dispatch, in this
// order: null/undefined, Boolean, Int32, Date, other Number, String,
// SharedArrayBuffer/ArrayBuffer/ArrayBufferView, Function, Symbol,
// Array, then any other object (tag + identity hash). It returns nil
// for a JS value of a kind this runtime doesn't represent (e.g. a
// Proxy-specific internal type); callers must handle that case.
//
// Must be called on the pump thread: it may read backing-store bytes
// and call into the per-context identity-hash helper.
func (f *Factory) FromV8(v *v8.Value) *BinaryValue {
	switch {
	case v.IsNull(), v.IsUndefined():
		return NewNull()
	case v.IsBoolean():
		return NewBool(v.Boolean())
	case v.IsInt32():
		// Narrowed to unsigned 32 then stored in the 64-bit integer
		// field, per the data model's "integer" rule.
		return NewInteger(uint64(v.Uint32()))
	case v.IsDate():
		return NewDate(v.Number())
	case v.IsNumber():
		// Non-Int32 numerics, including NaN/Infinity, map to double per
		// ECMA-262 4.3.20 — this covers every JS "Number" that isn't a
		// 32-bit integer.
		return NewDouble(v.Number())
	case v.IsString():
		return NewString(v.String())
	case v.IsSharedArrayBuffer():
		return f.fromBuffer(v, true)
	case v.IsArrayBuffer(), v.IsArrayBufferView():
		return f.fromBuffer(v, false)
	case v.IsFunction():
		return &BinaryValue{Kind: KindFunction, Integer: uint64(f.identityHashOf(v)), Native: f.nativeObject(v)}
	case v.IsSymbol():
		return &BinaryValue{Kind: KindSymbol}
	case v.IsArray():
		return &BinaryValue{Kind: KindArray, Integer: uint64(f.identityHashOf(v)), Native: f.nativeObject(v)}
	case v.IsObject():
		return &BinaryValue{Kind: KindObject, Integer: uint64(f.identityHashOf(v)), Native: f.nativeObject(v)}
	default:
		return nil
	}
}

// nativeObject resolves v to its live *v8go.Object, or nil if the
// conversion fails (which would itself indicate v wasn't really an
// object despite the Is* check, an engine-level inconsistency the
// object manipulator surfaces as a value_exception rather than panic).
func (f *Factory) nativeObject(v *v8.Value) any {
	obj, err := v.AsObject()
	if err != nil {
		return nil
	}
	return obj
}

// identityHashOf calls the installed identity-hash helper, or returns 0
// if none was installed (e.g. during early bootstrap before it exists).
func (f *Factory) identityHashOf(v *v8.Value) int64 {
	if f.identityHash == nil {
		return 0
	}
	rtn, err := f.identityHash.Call(v, v)
	if err != nil || rtn == nil {
		return 0
	}
	return rtn.Integer()
}

// fromBuffer captures a strong reference to v's backing store in the
// backing-store map (keyed by the new value's handle, once Alloc'd) and
// returns a BinaryValue pointing at its bytes. shared distinguishes
// SharedArrayBuffer from ArrayBuffer/ArrayBufferView per the data
// model's variant tags.
func (f *Factory) fromBuffer(v *v8.Value, shared bool) *BinaryValue {
	var (
		data    []byte
		release func()
		err     error
	)
	if shared {
		data, release, err = v.SharedArrayBufferGetContents()
	} else {
		data, release, err = v.ArrayBufferGetContents()
	}
	if err != nil {
		return NewException(KindValueException, "reading buffer contents: "+err.Error())
	}

	kind := KindArrayBuffer
	if shared {
		kind = KindSharedArrayBuffer
	}
	bv := &BinaryValue{Kind: kind, Bytes: data}
	bv.onFree = func(*BinaryValue) {
		h := bv.handle
		f.Registry.forgetLocked(bv)
		f.backing.Release(h)
		if f.deferrer != nil {
			f.deferrer.Defer(release)
		} else {
			release()
		}
	}
	return bv
}

// RetainBuffer must be called right after Alloc for a buffer-kind
// value, so the backing-store map is keyed by its now-known handle.
func (f *Factory) RetainBuffer(h Handle, v *BinaryValue) {
	if v.Kind == KindSharedArrayBuffer || v.Kind == KindArrayBuffer {
		f.backing.Retain(h, v.Bytes)
	}
}

// HasBackingStore reports whether h currently has a retained backing
// store, for callers outside this package asserting the free path
// (factory.Free) actually released it.
func (f *Factory) HasBackingStore(h Handle) bool {
	return f.backing.Has(h)
}

// FastPathCallTarget reports whether trimmed matches the fast-path
// pattern `<identifier>()` that the code evaluator tries before falling
// back to a full compile. Per the Open Question resolution in
// SPEC_FULL.md, dotted names such as "a.b()" are accepted here — if no
// global exists under that literal text, the lookup simply misses and
// the evaluator falls through to the slow path.
func FastPathCallTarget(code string) (name string, ok bool) {
	trimmed := strings.TrimSpace(code)
	if !strings.HasSuffix(trimmed, "()") {
		return "", false
	}
	name = strings.TrimSpace(trimmed[:len(trimmed)-2])
	if name == "" || strings.ContainsAny(name, "\n\r\t ") {
		return "", false
	}
	if !utf8.ValidString(name) {
		return "", false
	}
	return name, true
}
