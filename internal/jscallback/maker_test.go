package jscallback

import (
	"errors"
	"testing"

	v8 "github.com/tommie/v8go"
)

func TestMakeWiresCallThrough(t *testing.T) {
	iso := v8.NewIsolate()
	ctx := v8.NewContext(iso)
	defer func() { ctx.Close(); iso.Dispose() }()

	var gotArgs Args
	fn, id := Make(ctx, func(args Args) (any, error) {
		gotArgs = args
		return "ok", nil
	})
	defer Unregister(id)

	if err := ctx.Global().Set("hostFn", fn); err != nil {
		t.Fatalf("Set: %v", err)
	}

	v, err := ctx.RunScript(`hostFn("a", 1)`, "test.js")
	if err != nil {
		t.Fatalf("RunScript: %v", err)
	}
	if v.String() != "ok" {
		t.Fatalf("result = %q, want %q", v.String(), "ok")
	}
	if len(gotArgs) != 2 {
		t.Fatalf("len(gotArgs) = %d, want 2", len(gotArgs))
	}
}

func TestMakeSurfacesCallbackErrorAsJSException(t *testing.T) {
	iso := v8.NewIsolate()
	ctx := v8.NewContext(iso)
	defer func() { ctx.Close(); iso.Dispose() }()

	fn, id := Make(ctx, func(Args) (any, error) {
		return nil, errors.New("boom")
	})
	defer Unregister(id)

	if err := ctx.Global().Set("hostFn", fn); err != nil {
		t.Fatalf("Set: %v", err)
	}

	_, err := ctx.RunScript(`hostFn()`, "test.js")
	if err == nil {
		t.Fatal("expected an error from a throwing host callback")
	}
}

func TestMakeAfterUnregisterThrows(t *testing.T) {
	iso := v8.NewIsolate()
	ctx := v8.NewContext(iso)
	defer func() { ctx.Close(); iso.Dispose() }()

	fn, id := Make(ctx, func(Args) (any, error) { return "x", nil })
	Unregister(id)

	if err := ctx.Global().Set("hostFn", fn); err != nil {
		t.Fatalf("Set: %v", err)
	}

	_, err := ctx.RunScript(`hostFn()`, "test.js")
	if err == nil {
		t.Fatal("expected a JS exception calling an unregistered callback")
	}
}
