// Command libminirac builds the flat C-ABI surface over the minirac
// runtime (spec component M): a thin //export layer that resolves
// opaque context/task/value ids to Go objects and never lets a Go
// panic or an invalid id cross back into C.
//
// Follows the same id-indirection C-export shape as other Go/V8
// worker bindings (export C-callable functions keyed by small integer
// ids rather than passed pointers), generalized from a
// single-worker/single-callback shape to the multi-context,
// multi-task, multi-handle shape this runtime needs.
package main

/*
#include <stdint.h>

typedef void (*host_callback_fn)(uint64_t callback_id, uint64_t value_handle, void *user_data);

static inline void invoke_host_callback(host_callback_fn fn, uint64_t callback_id, uint64_t value_handle, void *user_data) {
	if (fn != NULL) {
		fn(callback_id, value_handle, user_data);
	}
}
*/
import "C"

import (
	"time"
	"unsafe"

	v8 "github.com/tommie/v8go"

	minirac "github.com/sqreen/go-mini-racer"
	"github.com/sqreen/go-mini-racer/internal/values"
)

var registry = minirac.NewContextRegistry()

// init_v8 exists for parity with the external interface's process-wide
// setup step. V8 flag/ICU/snapshot configuration is one of this
// runtime's declared external collaborators (distribution of engine
// data files is out of scope), so there is nothing for this build to
// do beyond being a documented, idempotent no-op call site.
//
//export init_v8
func init_v8(_ *C.char, _ *C.char, _ *C.char) {}

//export v8_version
func v8_version() *C.char {
	return C.CString(v8.Version())
}

// init_context creates a new runtime context and wires hostCallback
// (a C function pointer plus an opaque user_data the caller gets back
// on every invocation) as its host callback.
//
//export init_context
func init_context(hostCallback C.host_callback_fn, userData unsafe.Pointer) C.uint64_t {
	id := registry.Add(minirac.Config{}, func(callbackID uint64, h values.Handle) {
		C.invoke_host_callback(hostCallback, C.uint64_t(callbackID), C.uint64_t(h), userData)
	})
	return C.uint64_t(id)
}

//export free_context
func free_context(contextID C.uint64_t) {
	registry.Free(minirac.ContextID(contextID))
}

//export context_count
func context_count() C.uint64_t {
	return C.uint64_t(registry.Count())
}

func withContext(contextID C.uint64_t, fn func(ctx *minirac.Context)) {
	ctx, ok := registry.Get(minirac.ContextID(contextID))
	if !ok {
		return
	}
	fn(ctx)
}

//export set_hard_memory_limit
func set_hard_memory_limit(contextID C.uint64_t, bytes C.uint64_t) {
	withContext(contextID, func(ctx *minirac.Context) { ctx.SetHardMemoryLimit(uint64(bytes)) })
}

//export set_soft_memory_limit
func set_soft_memory_limit(contextID C.uint64_t, bytes C.uint64_t) {
	withContext(contextID, func(ctx *minirac.Context) { ctx.SetSoftMemoryLimit(uint64(bytes)) })
}

//export hard_memory_limit_reached
func hard_memory_limit_reached(contextID C.uint64_t) C.int {
	var reached bool
	withContext(contextID, func(ctx *minirac.Context) { reached = ctx.HardMemoryLimitReached() })
	return boolToC(reached)
}

//export soft_memory_limit_reached
func soft_memory_limit_reached(contextID C.uint64_t) C.int {
	var reached bool
	withContext(contextID, func(ctx *minirac.Context) { reached = ctx.SoftMemoryLimitReached() })
	return boolToC(reached)
}

//export low_memory_notification
func low_memory_notification(contextID C.uint64_t) {
	withContext(contextID, func(ctx *minirac.Context) { ctx.LowMemoryNotification() })
}

//export alloc_bool_val
func alloc_bool_val(contextID C.uint64_t, b C.int) C.uint64_t {
	var h values.Handle
	withContext(contextID, func(ctx *minirac.Context) { h = ctx.AllocBool(b != 0) })
	return C.uint64_t(h)
}

//export alloc_int_val
func alloc_int_val(contextID C.uint64_t, i C.uint64_t) C.uint64_t {
	var h values.Handle
	withContext(contextID, func(ctx *minirac.Context) { h = ctx.AllocInteger(uint64(i)) })
	return C.uint64_t(h)
}

//export alloc_null_val
func alloc_null_val(contextID C.uint64_t) C.uint64_t {
	var h values.Handle
	withContext(contextID, func(ctx *minirac.Context) { h = ctx.AllocNull() })
	return C.uint64_t(h)
}

//export alloc_double_val
func alloc_double_val(contextID C.uint64_t, f C.double) C.uint64_t {
	var h values.Handle
	withContext(contextID, func(ctx *minirac.Context) { h = ctx.AllocDouble(float64(f)) })
	return C.uint64_t(h)
}

//export alloc_date_val
func alloc_date_val(contextID C.uint64_t, msSinceEpoch C.double) C.uint64_t {
	var h values.Handle
	withContext(contextID, func(ctx *minirac.Context) { h = ctx.AllocDate(float64(msSinceEpoch)) })
	return C.uint64_t(h)
}

// alloc_string_val takes a (pointer, length) UTF-8 buffer per the
// external interface's string convention — no null-termination
// required on the caller's side.
//
//export alloc_string_val
func alloc_string_val(contextID C.uint64_t, ptr *C.char, length C.int) C.uint64_t {
	s := C.GoStringN(ptr, length)
	var h values.Handle
	withContext(contextID, func(ctx *minirac.Context) { h = ctx.AllocString(s) })
	return C.uint64_t(h)
}

//export free_value
func free_value(contextID C.uint64_t, handle C.uint64_t) {
	withContext(contextID, func(ctx *minirac.Context) { ctx.FreeValue(values.Handle(handle)) })
}

//export value_count
func value_count(contextID C.uint64_t) C.uint64_t {
	var n int
	withContext(contextID, func(ctx *minirac.Context) { n = ctx.ValueCount() })
	return C.uint64_t(n)
}

//export make_js_callback
func make_js_callback(contextID C.uint64_t, callbackID C.uint64_t) C.uint64_t {
	var h values.Handle
	withContext(contextID, func(ctx *minirac.Context) { h = ctx.MakeJSCallback(uint64(callbackID)) })
	return C.uint64_t(h)
}

//export get_identity_hash
func get_identity_hash(contextID C.uint64_t, handle C.uint64_t) C.uint64_t {
	var h values.Handle
	withContext(contextID, func(ctx *minirac.Context) { h = ctx.IdentityHash(values.Handle(handle)) })
	return C.uint64_t(h)
}

//export get_own_property_names
func get_own_property_names(contextID C.uint64_t, handle C.uint64_t) C.uint64_t {
	var h values.Handle
	withContext(contextID, func(ctx *minirac.Context) { h = ctx.OwnPropertyNames(values.Handle(handle)) })
	return C.uint64_t(h)
}

//export get_object_item
func get_object_item(contextID C.uint64_t, handle C.uint64_t, key *C.char, keyLen C.int) C.uint64_t {
	k := C.GoStringN(key, keyLen)
	var h values.Handle
	withContext(contextID, func(ctx *minirac.Context) { h = ctx.GetObjectItem(values.Handle(handle), k) })
	return C.uint64_t(h)
}

//export set_object_item
func set_object_item(contextID C.uint64_t, handle C.uint64_t, key *C.char, keyLen C.int, valueHandle C.uint64_t) C.uint64_t {
	k := C.GoStringN(key, keyLen)
	var h values.Handle
	withContext(contextID, func(ctx *minirac.Context) {
		h = ctx.SetObjectItemHandle(values.Handle(handle), k, values.Handle(valueHandle))
	})
	return C.uint64_t(h)
}

//export del_object_item
func del_object_item(contextID C.uint64_t, handle C.uint64_t, key *C.char, keyLen C.int) C.uint64_t {
	k := C.GoStringN(key, keyLen)
	var h values.Handle
	withContext(contextID, func(ctx *minirac.Context) { h = ctx.DelObjectItem(values.Handle(handle), k) })
	return C.uint64_t(h)
}

//export splice_array
func splice_array(contextID C.uint64_t, handle C.uint64_t, index C.int, count C.int, replacementHandle C.uint64_t, hasReplacement C.int) C.uint64_t {
	var h values.Handle
	withContext(contextID, func(ctx *minirac.Context) {
		h = ctx.SpliceArrayHandle(values.Handle(handle), int(index), int(count), values.Handle(replacementHandle), hasReplacement != 0)
	})
	return C.uint64_t(h)
}

// eval schedules code_handle's string contents for asynchronous
// evaluation, returning a task_id. timeoutMS == 0 means "use the
// context's default timeout".
//
//export eval
func eval(contextID C.uint64_t, codeHandle C.uint64_t, timeoutMS C.uint64_t, callbackID C.uint64_t) C.uint64_t {
	var taskID uint64
	withContext(contextID, func(ctx *minirac.Context) {
		id, err := ctx.EvalHandle(values.Handle(codeHandle), time.Duration(timeoutMS)*time.Millisecond, uint64(callbackID))
		if err == nil {
			taskID = id
		}
	})
	return C.uint64_t(taskID)
}

// call_function schedules func.apply(this, argv) asynchronously.
// this_handle of 0 means "no explicit receiver" (defaults to the
// global object); argv_handle must resolve to an array BinaryValue.
//
//export call_function
func call_function(contextID C.uint64_t, funcHandle C.uint64_t, thisHandle C.uint64_t, argvHandle C.uint64_t, callbackID C.uint64_t) C.uint64_t {
	var taskID uint64
	withContext(contextID, func(ctx *minirac.Context) {
		id, err := ctx.CallFunctionHandle(values.Handle(funcHandle), values.Handle(thisHandle), values.Handle(argvHandle), uint64(callbackID))
		if err == nil {
			taskID = id
		}
	})
	return C.uint64_t(taskID)
}

//export heap_stats
func heap_stats(contextID C.uint64_t, callbackID C.uint64_t) C.uint64_t {
	var taskID uint64
	withContext(contextID, func(ctx *minirac.Context) {
		id, err := ctx.HeapStats(uint64(callbackID))
		if err == nil {
			taskID = id
		}
	})
	return C.uint64_t(taskID)
}

//export heap_snapshot
func heap_snapshot(contextID C.uint64_t, callbackID C.uint64_t) C.uint64_t {
	var taskID uint64
	withContext(contextID, func(ctx *minirac.Context) {
		id, err := ctx.HeapSnapshot(uint64(callbackID))
		if err == nil {
			taskID = id
		}
	})
	return C.uint64_t(taskID)
}

//export attach_promise_then
func attach_promise_then(contextID C.uint64_t, handle C.uint64_t, callbackID C.uint64_t) C.int {
	var attached bool
	withContext(contextID, func(ctx *minirac.Context) {
		attached = ctx.AttachPromiseThen(values.Handle(handle), uint64(callbackID))
	})
	return boolToC(attached)
}

//export cancel_task
func cancel_task(contextID C.uint64_t, taskID C.uint64_t) {
	withContext(contextID, func(ctx *minirac.Context) { ctx.CancelTask(uint64(taskID)) })
}

func boolToC(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

func main() {}
