// Package objects implements the object manipulator (spec component
// I): property get/set/delete, enumeration of a JS object's own
// property names, array splice, and calling or applying a function
// handle, all addressed by opaque handles rather than live V8
// references.
//
// Builds on Get/Set/Delete wrapped with handle lookups, generalized to
// the full get/set/del/splice/call surface the data model names.
package objects

import (
	v8 "github.com/tommie/v8go"

	"github.com/sqreen/go-mini-racer/internal/values"
)

// Manipulator performs property-level operations on JS objects,
// resolving and producing values.Handle rather than live V8 values. All
// methods must run on the owning context's pump thread.
type Manipulator struct {
	ctx     *v8.Context
	factory *values.Factory

	// ownPropertyNames is a JS helper `function(o){ return
	// Object.getOwnPropertyNames(o); }` installed once per context.
	// Enumerating own keys has no direct method on Object in the engine
	// binding's surface, so it's done in JS like identity hashing.
	ownPropertyNames *v8.Function
}

// New creates a Manipulator bound to ctx and factory.
func New(ctx *v8.Context, factory *values.Factory) *Manipulator {
	return &Manipulator{ctx: ctx, factory: factory}
}

// SetOwnPropertyNamesFunc installs the own-property-names helper.
func (m *Manipulator) SetOwnPropertyNamesFunc(fn *v8.Function) {
	m.ownPropertyNames = fn
}

func (m *Manipulator) resolveObject(h values.Handle, op string) (*v8.Object, *values.BinaryValue) {
	bv, exc := m.factory.Lookup(h, op)
	if exc != nil {
		return nil, exc
	}
	if bv.Kind != values.KindObject && bv.Kind != values.KindFunction && bv.Kind != values.KindArray {
		return nil, values.NewException(values.KindValueException, op+": handle does not refer to an object")
	}
	obj, ok := bv.Native.(*v8.Object)
	if !ok || obj == nil {
		return nil, values.NewException(values.KindValueException, op+": object has no live V8 reference")
	}
	return obj, nil
}

// Get resolves h, reads key, and returns the converted result, or a
// key_exception if the property doesn't exist or reading it threw.
func (m *Manipulator) Get(h values.Handle, key string) *values.BinaryValue {
	obj, exc := m.resolveObject(h, "get")
	if exc != nil {
		return exc
	}
	if !obj.Has(key) {
		return values.NewException(values.KindKeyException, "no such property: "+key)
	}
	v, err := obj.Get(key)
	if err != nil {
		return values.NewException(values.KindKeyException, "get "+key+": "+err.Error())
	}
	bv := m.factory.FromV8(v)
	if bv == nil {
		return values.NewNull()
	}
	return bv
}

// Set resolves h and assigns value to key. Returns a value_exception if
// the assignment throws (e.g. a setter that throws, or the object is
// frozen).
func (m *Manipulator) Set(h values.Handle, key string, value any) *values.BinaryValue {
	obj, exc := m.resolveObject(h, "set")
	if exc != nil {
		return exc
	}
	if err := obj.Set(key, value); err != nil {
		return values.NewException(values.KindValueException, "set "+key+": "+err.Error())
	}
	return values.NewBool(true)
}

// Delete resolves h and deletes key, reporting whether a property was
// actually removed (JS delete's own return convention).
func (m *Manipulator) Delete(h values.Handle, key string) *values.BinaryValue {
	obj, exc := m.resolveObject(h, "del")
	if exc != nil {
		return exc
	}
	return values.NewBool(obj.Delete(key))
}

// OwnPropertyNames enumerates h's own enumerable and non-enumerable
// string keys in the JS-defined insertion order.
func (m *Manipulator) OwnPropertyNames(h values.Handle) *values.BinaryValue {
	obj, exc := m.resolveObject(h, "own_property_names")
	if exc != nil {
		return exc
	}
	if m.ownPropertyNames == nil {
		return values.NewException(values.KindValueException, "own_property_names: helper not installed")
	}
	rtn, err := m.ownPropertyNames.Call(m.ctx.Global(), obj)
	if err != nil {
		return values.NewException(values.KindValueException, "own_property_names: "+err.Error())
	}
	bv := m.factory.FromV8(rtn)
	if bv == nil {
		return values.NewNull()
	}
	return bv
}

// IdentityHash returns h's identity hash, 0 if unavailable. Provided
// here (rather than only inside the factory) since it's one of the
// object-level operations the FFI surface exposes directly.
func (m *Manipulator) IdentityHash(h values.Handle) *values.BinaryValue {
	bv, exc := m.factory.Lookup(h, "identity_hash")
	if exc != nil {
		return exc
	}
	if bv.Kind != values.KindObject && bv.Kind != values.KindFunction && bv.Kind != values.KindArray {
		return values.NewInteger(0)
	}
	return values.NewInteger(bv.Integer)
}

// Call resolves h as a function and invokes func.apply(this, argv): this
// may be nil, in which case the global object stands in, matching a
// bare function call's receiver in non-strict JS.
func (m *Manipulator) Call(h values.Handle, this *v8.Value, args ...*v8.Value) *values.BinaryValue {
	bv, exc := m.factory.Lookup(h, "call_function")
	if exc != nil {
		return exc
	}
	if bv.Kind != values.KindFunction {
		return values.NewException(values.KindValueException, "call_function: handle is not a function")
	}
	fnObj, ok := bv.Native.(*v8.Object)
	if !ok {
		return values.NewException(values.KindValueException, "call_function: missing live reference")
	}
	fn, err := fnObj.AsFunction()
	if err != nil {
		return values.NewException(values.KindValueException, "call_function: "+err.Error())
	}

	var receiver v8.Valuer = m.ctx.Global()
	if this != nil {
		receiver = this
	}
	valuers := make([]v8.Valuer, len(args))
	for i, a := range args {
		valuers[i] = a
	}
	rtn, err := fn.Call(receiver, valuers...)
	if err != nil {
		return values.NewException(values.KindExecuteException, err.Error())
	}
	out := m.factory.FromV8(rtn)
	if out == nil {
		return values.NewNull()
	}
	return out
}

// Splice resolves h as an array and replaces count elements starting
// at index with at most one replacement value, matching the data
// model's "0 or 1 replacement" constraint (a richer splice has no
// caller in this runtime's surface). count=0 with hasReplacement is a
// pure insert; hasReplacement=false with count>0 is a pure removal.
func (m *Manipulator) Splice(h values.Handle, index, count int, replacement any, hasReplacement bool) *values.BinaryValue {
	obj, exc := m.resolveObject(h, "splice")
	if exc != nil {
		return exc
	}
	spliceFn, err := obj.Get("splice")
	if err != nil || spliceFn == nil || !spliceFn.IsFunction() {
		return values.NewException(values.KindValueException, "splice: target has no splice method")
	}
	fn, err := spliceFn.AsFunction()
	if err != nil {
		return values.NewException(values.KindValueException, "splice: "+err.Error())
	}

	args := []any{int32(index), int32(count)}
	if hasReplacement {
		args = append(args, replacement)
	}
	valuers := make([]v8.Valuer, 0, len(args))
	for _, a := range args {
		v, err := m.ctx.NewValue(a)
		if err != nil {
			return values.NewException(values.KindValueException, "splice: "+err.Error())
		}
		valuers = append(valuers, v)
	}

	rtn, err := fn.Call(obj, valuers...)
	if err != nil {
		return values.NewException(values.KindExecuteException, err.Error())
	}
	out := m.factory.FromV8(rtn)
	if out == nil {
		return values.NewNull()
	}
	return out
}
