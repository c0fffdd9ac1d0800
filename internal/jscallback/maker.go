package jscallback

import (
	v8 "github.com/tommie/v8go"
)

// WrapRaw wraps handle in a FunctionTemplate and returns the resulting
// JS function. It does not register anything and does not read id:
// both Make and Context.MakeJSCallback Register a CallerID first and
// pass a handle closure that refers only to that integer id. Make
// layers a scalar argument/result conversion on top of this; a caller
// that needs the raw *v8.FunctionCallbackInfo (to forward live object
// arguments rather than lossy scalar copies, for instance) can call it
// directly.
func WrapRaw(ctx *v8.Context, id CallerID, handle func(info *v8.FunctionCallbackInfo) *v8.Value) *v8.Function {
	tmpl := v8.NewFunctionTemplate(ctx.Isolate(), handle)
	return tmpl.GetFunction(ctx)
}

// Make registers fn and returns a JS function wired to call it. The
// returned *v8.Function's V8-side closure captures only the integer
// CallerID, never fn or any host pointer, so the function remains safe
// to call (it will just report "no such callback" via Invoke) even
// after the context that created it tears down and Unregister(id) has
// run.
func Make(ctx *v8.Context, fn HostCallback) (*v8.Function, CallerID) {
	id := Register(fn)

	f := WrapRaw(ctx, id, func(info *v8.FunctionCallbackInfo) *v8.Value {
		iso := info.Context().Isolate()

		args := make(Args, len(info.Args()))
		for i, a := range info.Args() {
			args[i] = nativeValue(a)
		}

		result, err, ok := Invoke(id, args)
		if !ok {
			return throw(iso, "callback no longer registered")
		}
		if err != nil {
			return throw(iso, err.Error())
		}

		v, convErr := info.Context().NewValue(result)
		if convErr != nil {
			return throw(iso, convErr.Error())
		}
		return v
	})

	return f, id
}

// nativeValue extracts a plain Go value (string/float64/bool/nil) from
// a JS argument for the common scalar cases a host callback needs;
// anything richer than a scalar should be resolved by the caller
// through the object manipulator instead of here.
func nativeValue(v *v8.Value) any {
	switch {
	case v.IsNull(), v.IsUndefined():
		return nil
	case v.IsBoolean():
		return v.Boolean()
	case v.IsNumber():
		return v.Number()
	case v.IsString():
		return v.String()
	default:
		return v.String()
	}
}

func throw(iso *v8.Isolate, message string) *v8.Value {
	val, err := v8.NewValue(iso, message)
	if err != nil {
		return nil
	}
	return iso.ThrowException(val)
}
