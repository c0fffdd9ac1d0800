// Package promise implements the promise attacher (spec component J):
// attaching a one-shot fulfilled/rejected pair of callbacks to a JS
// promise, reporting synchronously whether the attach itself succeeded
// (the handle really was a promise, the isolate wasn't already torn
// down) while the eventual resolution arrives later, asynchronously,
// through the callbacks.
//
// A single-fire resolve/reject pair wired to a host callback,
// generalized from a single use case (e.g. a fetch response) to any
// promise handle.
package promise

import (
	v8 "github.com/tommie/v8go"

	"github.com/sqreen/go-mini-racer/internal/values"
)

// Attacher attaches host callbacks to JS promises. Must be used from
// the owning context's pump thread.
type Attacher struct {
	ctx     *v8.Context
	factory *values.Factory
}

// New creates an Attacher bound to ctx and factory.
func New(ctx *v8.Context, factory *values.Factory) *Attacher {
	return &Attacher{ctx: ctx, factory: factory}
}

// Attach resolves h as a promise and installs onFulfilled/onRejected,
// each called at most once with the settled value converted to a
// BinaryValue. It reports false (with no callback ever firing) if h
// doesn't refer to a live promise.
func (a *Attacher) Attach(h values.Handle, onFulfilled, onRejected func(*values.BinaryValue)) bool {
	bv, exc := a.factory.Lookup(h, "attach_promise_then")
	if exc != nil {
		return false
	}
	obj, ok := bv.Native.(*v8.Object)
	if !ok || obj == nil || !obj.IsPromise() {
		return false
	}
	p, err := obj.AsPromise()
	if err != nil {
		return false
	}

	once := newSingleFire()
	undef := func(info *v8.FunctionCallbackInfo) *v8.Value {
		return v8.Undefined(info.Context().Isolate())
	}

	fulfilledCb := func(info *v8.FunctionCallbackInfo) *v8.Value {
		once.do(func() {
			var result *values.BinaryValue
			if args := info.Args(); len(args) > 0 {
				result = a.factory.FromV8(args[0])
			}
			if result == nil {
				result = values.NewNull()
			}
			if onFulfilled != nil {
				onFulfilled(result)
			}
		})
		return undef(info)
	}
	rejectedCb := func(info *v8.FunctionCallbackInfo) *v8.Value {
		once.do(func() {
			var result *values.BinaryValue
			if args := info.Args(); len(args) > 0 {
				result = a.factory.FromV8(args[0])
			}
			if result == nil {
				result = values.NewException(values.KindExecuteException, "promise rejected with no reason")
			}
			if onRejected != nil {
				onRejected(result)
			}
		})
		return undef(info)
	}

	// Then installs both handlers on the promise itself; Catch on the
	// chained promise Then returns guards against onFulfilled throwing
	// and silently swallowing the failure.
	chained := p.Then(fulfilledCb, rejectedCb)
	chained.Catch(rejectedCb)
	return true
}

// singleFire runs its argument at most once, guarding against a
// misbehaving JS promise implementation invoking both handlers (V8's
// own promises never do, but a Proxy-wrapped thenable could).
type singleFire struct {
	ran bool
}

func newSingleFire() *singleFire { return &singleFire{} }

func (s *singleFire) do(fn func()) {
	if s.ran {
		return
	}
	s.ran = true
	fn()
}
