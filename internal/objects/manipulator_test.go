package objects

import (
	"testing"

	v8 "github.com/tommie/v8go"

	"github.com/sqreen/go-mini-racer/internal/values"
)

func newTestManipulator(t *testing.T) (*Manipulator, *v8.Isolate, *v8.Context, *values.Factory) {
	t.Helper()
	iso := v8.NewIsolate()
	ctx := v8.NewContext(iso)
	factory := values.NewFactory(nil)
	m := New(ctx, factory)

	ownNames, err := ctx.RunScript("(function(o){ return Object.getOwnPropertyNames(o); })", "setup.js")
	if err != nil {
		t.Fatalf("installing own-property-names helper: %v", err)
	}
	fn, err := ownNames.AsFunction()
	if err != nil {
		t.Fatalf("AsFunction: %v", err)
	}
	m.SetOwnPropertyNamesFunc(fn)

	return m, iso, ctx, factory
}

func allocObject(t *testing.T, ctx *v8.Context, factory *values.Factory, src string) values.Handle {
	t.Helper()
	v, err := ctx.RunScript(src, "obj.js")
	if err != nil {
		t.Fatalf("RunScript(%q): %v", src, err)
	}
	bv := factory.FromV8(v)
	if bv == nil {
		t.Fatalf("FromV8(%q) returned nil", src)
	}
	return factory.Alloc(bv)
}

func TestManipulatorGetSetDelete(t *testing.T) {
	m, iso, ctx, factory := newTestManipulator(t)
	defer func() { ctx.Close(); iso.Dispose() }()

	h := allocObject(t, ctx, factory, "({a: 1, b: 2})")

	got := m.Get(h, "a")
	if got.Kind.IsException() {
		t.Fatalf("Get(a) exception: %s", got.Str)
	}

	if exc := m.Set(h, "c", int32(3)); exc.Kind.IsException() {
		t.Fatalf("Set(c) exception: %s", exc.Str)
	}
	got = m.Get(h, "c")
	if got.Kind.IsException() {
		t.Fatalf("Get(c) after Set exception: %s", got.Str)
	}

	del := m.Delete(h, "a")
	if del.Kind != values.KindBool || !del.Bool {
		t.Fatalf("Delete(a) = %+v, want Bool true", del)
	}

	missing := m.Get(h, "a")
	if missing.Kind != values.KindKeyException {
		t.Fatalf("Get(a) after Delete: Kind = %v, want KindKeyException", missing.Kind)
	}
}

func TestManipulatorGetUnknownHandle(t *testing.T) {
	m, iso, ctx, _ := newTestManipulator(t)
	defer func() { ctx.Close(); iso.Dispose() }()

	got := m.Get(values.Handle(999999), "x")
	if got.Kind != values.KindValueException {
		t.Fatalf("Kind = %v, want KindValueException", got.Kind)
	}
}

func TestManipulatorOwnPropertyNames(t *testing.T) {
	m, iso, ctx, factory := newTestManipulator(t)
	defer func() { ctx.Close(); iso.Dispose() }()

	h := allocObject(t, ctx, factory, "({x: 1, y: 2})")
	got := m.OwnPropertyNames(h)
	if got.Kind.IsException() {
		t.Fatalf("OwnPropertyNames exception: %s", got.Str)
	}
	if got.Kind != values.KindArray {
		t.Fatalf("Kind = %v, want KindArray", got.Kind)
	}
}

func TestManipulatorCallFunction(t *testing.T) {
	m, iso, ctx, factory := newTestManipulator(t)
	defer func() { ctx.Close(); iso.Dispose() }()

	h := allocObject(t, ctx, factory, "(function(){ return 7; })")
	got := m.Call(h, nil)
	if got.Kind.IsException() {
		t.Fatalf("Call exception: %s", got.Str)
	}
}

func TestManipulatorCallFunctionWithExplicitThis(t *testing.T) {
	m, iso, ctx, factory := newTestManipulator(t)
	defer func() { ctx.Close(); iso.Dispose() }()

	h := allocObject(t, ctx, factory, "(function(){ return this.n; })")
	thisVal, err := ctx.RunScript("({n: 42})", "this.js")
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	got := m.Call(h, thisVal)
	if got.Kind.IsException() {
		t.Fatalf("Call exception: %s", got.Str)
	}
	if got.Kind != values.KindInteger || got.Integer != 42 {
		t.Fatalf("result = %+v, want integer 42", got)
	}
}

func TestManipulatorSplice(t *testing.T) {
	m, iso, ctx, factory := newTestManipulator(t)
	defer func() { ctx.Close(); iso.Dispose() }()

	h := allocObject(t, ctx, factory, "([1,2,3,4])")
	got := m.Splice(h, 1, 2, int32(9), true)
	if got.Kind.IsException() {
		t.Fatalf("Splice exception: %s", got.Str)
	}
}
