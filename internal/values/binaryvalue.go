// Package values implements the binary-value factory and handle
// registry: a tagged union
// that represents any JS value crossing the language boundary, plus the
// registry that hands foreign code stable handles to those values.
package values

import "fmt"

// Kind tags the variant held by a BinaryValue, mirroring the tagged
// union in the data model: scalars, owned-resource variants, and the
// exception variants that let errors cross the ABI like any other value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindDouble
	KindDate
	KindString
	KindSymbol
	KindFunction
	KindObject
	KindArray
	KindSharedArrayBuffer
	KindArrayBuffer

	// Exception variants. Kept contiguous so callers can range-check
	// with IsException below.
	KindParseException
	KindExecuteException
	KindOOMException
	KindTimeoutException
	KindTerminatedException
	KindValueException
	KindKeyException
)

// IsException reports whether k is one of the exception variants.
func (k Kind) IsException() bool {
	return k >= KindParseException && k <= KindKeyException
}

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindDate:
		return "date"
	case KindString:
		return "string_utf8"
	case KindSymbol:
		return "symbol"
	case KindFunction:
		return "function"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindSharedArrayBuffer:
		return "shared_array_buffer"
	case KindArrayBuffer:
		return "array_buffer"
	case KindParseException:
		return "parse_exception"
	case KindExecuteException:
		return "execute_exception"
	case KindOOMException:
		return "oom_exception"
	case KindTimeoutException:
		return "timeout_exception"
	case KindTerminatedException:
		return "terminated_exception"
	case KindValueException:
		return "value_exception"
	case KindKeyException:
		return "key_exception"
	default:
		return "unknown"
	}
}

// Handle is the opaque, pointer-stable identifier foreign code uses to
// refer to a BinaryValue. It is unique per (runtime context, live value)
// and is never reused within the life of a context.
type Handle uint64

// BinaryValue is the opaque representation of a value crossing the
// language boundary. A value is either scalar or owns exactly one heap
// resource (string bytes or a backing-store reference); Free enforces
// type-correct destruction of whichever resource it owns.
type BinaryValue struct {
	Kind Kind

	Bool    bool
	Integer uint64  // reinterpreted per need: Int32 narrowed to u32, or an identity hash
	Double  float64 // also used for KindDate (ms since Unix epoch)

	// Owned string bytes for KindString, or the human-readable message
	// for an exception variant.
	Str string

	// Set for KindSharedArrayBuffer / KindArrayBuffer: a view into the
	// backing store's bytes. The backing store itself is kept alive by
	// the factory's backing-store map, keyed by this value's handle.
	Bytes []byte

	// Native holds the live engine-side reference for KindObject,
	// KindFunction and KindArray (a *v8go.Object) so the object
	// manipulator can operate on it without re-resolving from JS. Never
	// set for any other kind, and never crosses the FFI boundary itself.
	Native any

	handle    Handle
	onFree    func(*BinaryValue)
	freedOnce bool
}

// Handle returns the handle this value was registered under, or 0 if it
// has not been registered (e.g. a value still being constructed).
func (v *BinaryValue) Handle() Handle { return v.handle }

// Free releases any heap resource the value owns. Idempotent: freeing an
// already-freed value is a no-op, matching forget(handle)'s idempotence.
func (v *BinaryValue) Free() {
	if v == nil || v.freedOnce {
		return
	}
	v.freedOnce = true
	if v.onFree != nil {
		v.onFree(v)
	}
}

// NewException builds an exception-variant BinaryValue with a
// human-readable message. kind must be one of the Kind*Exception
// constants; NewException panics otherwise since it signals a bug in
// the calling component, not a runtime condition.
func NewException(kind Kind, message string) *BinaryValue {
	if !kind.IsException() {
		panic(fmt.Sprintf("values: NewException called with non-exception kind %v", kind))
	}
	return &BinaryValue{Kind: kind, Str: message}
}

// NewNull, NewBool, NewInteger, NewDouble and NewString construct
// scalar BinaryValues that own no heap resource and therefore never
// need to be routed through a Factory.
func NewNull() *BinaryValue                { return &BinaryValue{Kind: KindNull} }
func NewBool(b bool) *BinaryValue          { return &BinaryValue{Kind: KindBool, Bool: b} }
func NewInteger(i uint64) *BinaryValue     { return &BinaryValue{Kind: KindInteger, Integer: i} }
func NewDouble(f float64) *BinaryValue     { return &BinaryValue{Kind: KindDouble, Double: f} }
func NewDate(msSinceEpoch float64) *BinaryValue {
	return &BinaryValue{Kind: KindDate, Double: msSinceEpoch}
}
func NewString(s string) *BinaryValue { return &BinaryValue{Kind: KindString, Str: s} }
