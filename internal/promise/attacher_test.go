package promise

import (
	"testing"
	"time"

	v8 "github.com/tommie/v8go"

	"github.com/sqreen/go-mini-racer/internal/values"
)

func TestAttachResolvedPromise(t *testing.T) {
	iso := v8.NewIsolate()
	ctx := v8.NewContext(iso)
	defer func() { ctx.Close(); iso.Dispose() }()

	factory := values.NewFactory(nil)
	a := New(ctx, factory)

	v, err := ctx.RunScript("Promise.resolve(42)", "p.js")
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	bv := factory.FromV8(v)
	h := factory.Alloc(bv)

	fulfilled := make(chan *values.BinaryValue, 1)
	ok := a.Attach(h, func(r *values.BinaryValue) { fulfilled <- r }, func(r *values.BinaryValue) { t.Error("unexpected rejection") })
	if !ok {
		t.Fatal("Attach returned false for a real promise")
	}

	// A resolved promise's reaction only runs on a microtask checkpoint.
	ctx.PerformMicrotaskCheckpoint()

	select {
	case r := <-fulfilled:
		if r.Kind.IsException() {
			t.Fatalf("unexpected exception: %s", r.Str)
		}
	case <-time.After(time.Second):
		t.Fatal("onFulfilled never called")
	}
}

func TestAttachRejectsNonPromise(t *testing.T) {
	iso := v8.NewIsolate()
	ctx := v8.NewContext(iso)
	defer func() { ctx.Close(); iso.Dispose() }()

	factory := values.NewFactory(nil)
	a := New(ctx, factory)

	v, err := ctx.RunScript("42", "p.js")
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	bv := factory.FromV8(v)
	h := factory.Alloc(bv)

	ok := a.Attach(h, func(*values.BinaryValue) {}, func(*values.BinaryValue) {})
	if ok {
		t.Fatal("Attach returned true for a non-promise handle")
	}
}

func TestAttachUnknownHandle(t *testing.T) {
	iso := v8.NewIsolate()
	ctx := v8.NewContext(iso)
	defer func() { ctx.Close(); iso.Dispose() }()

	factory := values.NewFactory(nil)
	a := New(ctx, factory)

	ok := a.Attach(values.Handle(12345), nil, nil)
	if ok {
		t.Fatal("Attach returned true for an unknown handle")
	}
}
