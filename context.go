// Package minirac is the public façade over an embedded JavaScript
// execution runtime: one Context per isolated V8 isolate, composing
// the isolate manager, the binary-value factory and handle registry,
// the code evaluator, the object manipulator, the promise attacher,
// and the JS-callback maker behind a single API surface.
//
// A single façade owns construction/teardown order for all of these
// subsystems, the same way a pool type aggregates its workers — except
// here there is exactly one isolate per Context rather than a pool.
package minirac

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	v8 "github.com/tommie/v8go"

	"github.com/sqreen/go-mini-racer/internal/collector"
	"github.com/sqreen/go-mini-racer/internal/evaluator"
	"github.com/sqreen/go-mini-racer/internal/isolate"
	"github.com/sqreen/go-mini-racer/internal/jscallback"
	"github.com/sqreen/go-mini-racer/internal/memmonitor"
	"github.com/sqreen/go-mini-racer/internal/objects"
	"github.com/sqreen/go-mini-racer/internal/promise"
	"github.com/sqreen/go-mini-racer/internal/task"
	"github.com/sqreen/go-mini-racer/internal/values"
)

// HostCallback is invoked once per completed async operation or fired
// promise/JS-callback reaction, with the callback_id the caller chose
// and a handle to the result already registered in this Context's
// value registry.
type HostCallback func(callbackID uint64, handle values.Handle)

// Context is one fully isolated runtime: one isolate, one pump thread,
// one handle registry, one set of in-flight tasks. Every exported
// method is safe to call from any goroutine; internally, work that
// touches V8 is always funneled through the isolate manager.
type Context struct {
	cfg          Config
	hostCallback HostCallback

	holder    *isolate.Holder
	mgr       *isolate.Manager
	timers    *isolate.Timers
	collector *collector.Collector
	monitor   *memmonitor.Monitor
	factory   *values.Factory
	evaluator *evaluator.Evaluator
	objects   *objects.Manipulator
	promise   *promise.Attacher

	arrayOfFn *v8.Function

	mu            sync.Mutex
	nextTaskID    uint64
	pending       map[uint64]*task.Runner
	jsCallbackIDs []jscallback.CallerID
	softLimit     uint64
	hardLimit     uint64

	closed atomic.Bool
}

// New creates a fully wired Context: isolate, pump, memory monitor,
// evaluator, object manipulator and promise attacher, then bootstraps
// the small JS helpers (identity hashing, own-property enumeration,
// argument packing) the rest of the runtime depends on.
func New(cfg Config, hostCallback HostCallback) *Context {
	cfg = cfg.withDefaults()

	holder := isolate.NewHolder(isolate.Limits{
		InitialHeapBytes: cfg.InitialHeapBytes,
		MaxHeapBytes:     cfg.MaxHeapBytes,
	})
	mgr := isolate.NewManager(holder)
	col := collector.New()
	col.SetRunner(mgr)
	factory := values.NewFactory(col)
	monitor := memmonitor.New(holder.Isolate, mgr)
	monitor.SetLimits(cfg.SoftMemoryLimitBytes, cfg.HardMemoryLimitBytes)
	monitor.Start(cfg.MemoryPollInterval)

	c := &Context{
		cfg:          cfg,
		hostCallback: hostCallback,
		holder:       holder,
		mgr:          mgr,
		timers:       isolate.NewTimers(mgr),
		collector:    col,
		monitor:      monitor,
		factory:      factory,
		objects:      objects.New(holder.Context, factory),
		promise:      promise.New(holder.Context, factory),
		pending:      make(map[uint64]*task.Runner),
		softLimit:    cfg.SoftMemoryLimitBytes,
		hardLimit:    cfg.HardMemoryLimitBytes,
	}
	c.evaluator = evaluator.New(holder.Context, holder.Isolate, mgr, monitor, factory)

	_ = mgr.RunSync(c.bootstrap)
	return c
}

// bootstrap installs the per-context JS helpers that stand in for
// engine-binding methods the underlying API surface doesn't expose
// directly: identity hashing (no GetIdentityHash in this binding) and
// own-property-name enumeration, plus an arguments-packing helper used
// by JS-callback-maker functions to turn `arguments` into a real array.
func (c *Context) bootstrap() {
	identityHashSrc := `(function(){
		var wm = new WeakMap();
		var next = 1;
		return function(o){
			if (!wm.has(o)) { wm.set(o, next++); }
			return wm.get(o);
		};
	})()`
	if v, err := c.holder.Context.RunScript(identityHashSrc, "bootstrap_identity_hash.js"); err == nil {
		if fn, err := v.AsFunction(); err == nil {
			c.factory.SetIdentityHashFunc(fn)
		}
	}

	ownPropSrc := `(function(o){ return Object.getOwnPropertyNames(o); })`
	if v, err := c.holder.Context.RunScript(ownPropSrc, "bootstrap_own_property_names.js"); err == nil {
		if fn, err := v.AsFunction(); err == nil {
			c.objects.SetOwnPropertyNamesFunc(fn)
		}
	}

	arrayOfSrc := `(function(){ return Array.prototype.slice.call(arguments); })`
	if v, err := c.holder.Context.RunScript(arrayOfSrc, "bootstrap_array_of.js"); err == nil {
		if fn, err := v.AsFunction(); err == nil {
			c.arrayOfFn = fn
		}
	}
}

// fireCallback registers result in the handle registry and invokes the
// host callback with (callbackID, handle). Called from the pump thread,
// from a terminal task callback (which runs on whichever goroutine
// completed or canceled the task), and from the reject paths on the
// caller's goroutine; the registry it allocates into is mutex-guarded.
func (c *Context) fireCallback(callbackID uint64, result *values.BinaryValue) {
	h := c.factory.Alloc(result)
	if result.Kind == values.KindSharedArrayBuffer || result.Kind == values.KindArrayBuffer {
		c.factory.RetainBuffer(h, result)
	}
	if c.hostCallback != nil {
		c.hostCallback(callbackID, h)
	}
}

// newTaskID reserves the next task id, enforcing MaxPendingTasks.
func (c *Context) newTaskID() (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.MaxPendingTasks > 0 && len(c.pending) >= c.cfg.MaxPendingTasks {
		return 0, ErrTooManyPendingTasks
	}
	c.nextTaskID++
	return c.nextTaskID, nil
}

// runAsync schedules work on the pump as a cancelable task, firing
// callbackID with the eventual result (or a terminated_exception, if
// canceled before or during execution).
func (c *Context) runAsync(taskID uint64, callbackID uint64, work func() *values.BinaryValue) error {
	if c.closed.Load() {
		c.fireCallback(callbackID, values.NewException(values.KindTerminatedException, ErrContextClosed.Error()))
		c.finishTask(taskID)
		return ErrContextClosed
	}

	var result *values.BinaryValue
	runner := task.New(
		func() {
			c.fireCallback(callbackID, result)
			c.finishTask(taskID)
		},
		func() {
			c.fireCallback(callbackID, values.NewException(values.KindTerminatedException, "execution terminated"))
			c.finishTask(taskID)
		},
	)

	c.mu.Lock()
	c.pending[taskID] = runner
	c.mu.Unlock()

	err := c.mgr.Run(func() {
		runner.Execute(func() { result = work() })
	})
	if err != nil {
		// The pump rejected the post (e.g. it's already stopping): the
		// task.Runner we just registered will never run, so fire its
		// callback here instead of leaving the caller waiting forever.
		c.fireCallback(callbackID, values.NewException(values.KindTerminatedException, err.Error()))
		c.finishTask(taskID)
		return err
	}
	return nil
}

func (c *Context) finishTask(taskID uint64) {
	c.mu.Lock()
	delete(c.pending, taskID)
	c.mu.Unlock()
}

// rejectTask fires callbackID with a terminated_exception describing
// err and reports taskID 0 with a nil error, the same "fire the
// callback exactly once, even on the reject path" contract EvalHandle
// already follows for a bad handle. newTaskID rejects a request before
// any task.Runner exists to deliver that eventual callback, so every
// async entry point routes a newTaskID rejection through here instead
// of returning the raw error. runAsync fires the callback itself on its
// own rejection paths.
func (c *Context) rejectTask(callbackID uint64, err error) (uint64, error) {
	c.fireCallback(callbackID, values.NewException(values.KindTerminatedException, err.Error()))
	return 0, nil
}

// Eval schedules code for asynchronous evaluation. timeout <= 0 uses
// Config.DefaultEvalTimeout.
func (c *Context) Eval(code string, timeout time.Duration, callbackID uint64) (taskID uint64, err error) {
	if timeout <= 0 {
		timeout = c.cfg.DefaultEvalTimeout
	}
	taskID, err = c.newTaskID()
	if err != nil {
		return c.rejectTask(callbackID, err)
	}
	if err := c.runAsync(taskID, callbackID, func() *values.BinaryValue {
		return c.evaluator.Eval(code, timeout)
	}); err != nil {
		return 0, nil
	}
	return taskID, nil
}

// CallFunction schedules func.apply(this, argv) asynchronously, per
// the object manipulator's call operation. this may be nil for a bare
// call (receiver defaults to the global object).
func (c *Context) CallFunction(fn values.Handle, this *v8.Value, args []*v8.Value, callbackID uint64) (taskID uint64, err error) {
	taskID, err = c.newTaskID()
	if err != nil {
		return c.rejectTask(callbackID, err)
	}
	if err := c.runAsync(taskID, callbackID, func() *values.BinaryValue {
		return c.objects.Call(fn, this, args...)
	}); err != nil {
		return 0, nil
	}
	return taskID, nil
}

// CallFunctionHandle resolves thisHandle (optional, 0 means "no
// explicit receiver") and argvHandle (an array BinaryValue whose live
// elements are read off via its Native object) before delegating to
// CallFunction. Resolution itself touches V8 (reading argv's "length"
// and indexed elements), so it runs on the pump thread as part of the
// same async task rather than synchronously up front — mirroring
// EvalHandle's approach of keeping handle resolution close to use.
func (c *Context) CallFunctionHandle(fn values.Handle, thisHandle values.Handle, argvHandle values.Handle, callbackID uint64) (taskID uint64, err error) {
	taskID, err = c.newTaskID()
	if err != nil {
		return c.rejectTask(callbackID, err)
	}
	if err := c.runAsync(taskID, callbackID, func() *values.BinaryValue {
		var this *v8.Value
		if thisHandle != 0 {
			bv, exc := c.factory.Lookup(thisHandle, "call_function")
			if exc != nil {
				return exc
			}
			v, ok := nativeToValue(bv)
			if !ok {
				return values.NewException(values.KindValueException, "call_function: this handle has no live value")
			}
			this = v
		}
		args, exc := c.resolveArgv(argvHandle)
		if exc != nil {
			return exc
		}
		return c.objects.Call(fn, this, args...)
	}); err != nil {
		return 0, nil
	}
	return taskID, nil
}

// resolveArgv reads argvHandle as an array and returns its elements as
// live *v8.Value via the array object's indexed getter. Must run on
// the pump thread.
func (c *Context) resolveArgv(argvHandle values.Handle) ([]*v8.Value, *values.BinaryValue) {
	bv, exc := c.factory.Lookup(argvHandle, "call_function")
	if exc != nil {
		return nil, exc
	}
	if bv.Kind != values.KindArray {
		return nil, values.NewException(values.KindValueException, "call_function: argv handle is not an array")
	}
	obj, ok := bv.Native.(*v8.Object)
	if !ok || obj == nil {
		return nil, values.NewException(values.KindValueException, "call_function: argv has no live reference")
	}
	lengthVal, err := obj.Get("length")
	if err != nil {
		return nil, values.NewException(values.KindValueException, "call_function: "+err.Error())
	}
	n := int(lengthVal.Uint32())
	args := make([]*v8.Value, n)
	for i := 0; i < n; i++ {
		v, err := obj.GetIdx(uint32(i))
		if err != nil {
			return nil, values.NewException(values.KindValueException, "call_function: "+err.Error())
		}
		args[i] = v
	}
	return args, nil
}

// nativeToValue extracts the live *v8.Value backing bv, for the object/
// function/array kinds that carry one in Native.
func nativeToValue(bv *values.BinaryValue) (*v8.Value, bool) {
	obj, ok := bv.Native.(*v8.Object)
	if !ok || obj == nil {
		return nil, false
	}
	return obj.Value, true
}

// HeapStats schedules a heap-statistics read, reported as a
// string_utf8 BinaryValue holding a small JSON object.
func (c *Context) HeapStats(callbackID uint64) (taskID uint64, err error) {
	taskID, err = c.newTaskID()
	if err != nil {
		return c.rejectTask(callbackID, err)
	}
	if err := c.runAsync(taskID, callbackID, func() *values.BinaryValue {
		hs := c.holder.Isolate.GetHeapStatistics()
		json := fmt.Sprintf(
			`{"total_heap_size":%d,"used_heap_size":%d,"heap_size_limit":%d,"external_memory":%d}`,
			hs.TotalHeapSize, hs.UsedHeapSize, hs.HeapSizeLimit, hs.ExternalMemory,
		)
		return values.NewString(json)
	}); err != nil {
		return 0, nil
	}
	return taskID, nil
}

// HeapSnapshot is out of scope: a full heap snapshot needs the V8
// inspector protocol, which this engine binding doesn't expose. It
// still round-trips through the async/callback contract so callers
// don't need a special case.
func (c *Context) HeapSnapshot(callbackID uint64) (taskID uint64, err error) {
	taskID, err = c.newTaskID()
	if err != nil {
		return c.rejectTask(callbackID, err)
	}
	if err := c.runAsync(taskID, callbackID, func() *values.BinaryValue {
		return values.NewException(values.KindExecuteException, "heap_snapshot: unsupported by this engine binding")
	}); err != nil {
		return 0, nil
	}
	return taskID, nil
}

// CancelTask requests cancellation of taskID. Idempotent; a no-op for
// an unknown or already-finished id.
func (c *Context) CancelTask(taskID uint64) {
	c.mu.Lock()
	runner, ok := c.pending[taskID]
	c.mu.Unlock()
	if !ok {
		return
	}
	if runner.State() == task.Running {
		c.mgr.TerminateOngoingTask()
	}
	runner.Cancel()
}

// GetObjectItem, SetObjectItem, DelObjectItem, OwnPropertyNames and
// IdentityHash are synchronous: they run on the pump via RunSync and
// return the (already-allocated) resulting handle directly, since the
// data model treats them as immediate rather than async operations.

func (c *Context) GetObjectItem(h values.Handle, key string) values.Handle {
	return c.syncAlloc(func() *values.BinaryValue { return c.objects.Get(h, key) })
}

func (c *Context) SetObjectItem(h values.Handle, key string, val any) values.Handle {
	return c.syncAlloc(func() *values.BinaryValue { return c.objects.Set(h, key, val) })
}

func (c *Context) DelObjectItem(h values.Handle, key string) values.Handle {
	return c.syncAlloc(func() *values.BinaryValue { return c.objects.Delete(h, key) })
}

func (c *Context) OwnPropertyNames(h values.Handle) values.Handle {
	return c.syncAlloc(func() *values.BinaryValue { return c.objects.OwnPropertyNames(h) })
}

func (c *Context) IdentityHash(h values.Handle) values.Handle {
	return c.syncAlloc(func() *values.BinaryValue { return c.objects.IdentityHash(h) })
}

func (c *Context) SpliceArray(h values.Handle, index, count int, replacement any, hasReplacement bool) values.Handle {
	return c.syncAlloc(func() *values.BinaryValue {
		return c.objects.Splice(h, index, count, replacement, hasReplacement)
	})
}

// StringValue resolves h to its UTF-8 string contents, reporting
// ok=false for an unknown handle or one that isn't a string — used by
// the FFI layer to pull eval's source code out of a handle.
func (c *Context) StringValue(h values.Handle) (string, bool) {
	bv, ok := c.factory.Registry.Lookup(h)
	if !ok || bv.Kind != values.KindString {
		return "", false
	}
	return bv.Str, true
}

// NativeValue resolves h to a plain Go value suitable for passing into
// the engine binding's generic value constructor: a scalar for
// scalar-kind handles, or the live *v8go.Object for object/function/
// array handles (which the binding accepts directly, passing it
// through unchanged). Reports ok=false for an unknown handle or one
// of the exception kinds.
func (c *Context) NativeValue(h values.Handle) (any, bool) {
	bv, ok := c.factory.Registry.Lookup(h)
	if !ok {
		return nil, false
	}
	switch bv.Kind {
	case values.KindNull:
		return nil, true
	case values.KindBool:
		return bv.Bool, true
	case values.KindInteger:
		return bv.Integer, true
	case values.KindDouble, values.KindDate:
		return bv.Double, true
	case values.KindString:
		return bv.Str, true
	case values.KindObject, values.KindFunction, values.KindArray:
		return bv.Native, true
	default:
		return nil, false
	}
}

// SetObjectItemHandle resolves valueHandle and forwards to
// SetObjectItem, reporting a value_exception handle rather than
// touching the isolate if valueHandle doesn't resolve.
func (c *Context) SetObjectItemHandle(h values.Handle, key string, valueHandle values.Handle) values.Handle {
	v, ok := c.NativeValue(valueHandle)
	if !ok {
		return c.allocSync(values.BadHandle(valueHandle, "set_object_item"))
	}
	return c.SetObjectItem(h, key, v)
}

// SpliceArrayHandle resolves replacementHandle (when hasReplacement)
// and forwards to SpliceArray, reporting a value_exception handle
// rather than touching the isolate if replacementHandle doesn't
// resolve.
func (c *Context) SpliceArrayHandle(h values.Handle, index, count int, replacementHandle values.Handle, hasReplacement bool) values.Handle {
	var replacement any
	if hasReplacement {
		v, ok := c.NativeValue(replacementHandle)
		if !ok {
			return c.allocSync(values.BadHandle(replacementHandle, "splice_array"))
		}
		replacement = v
	}
	return c.SpliceArray(h, index, count, replacement, hasReplacement)
}

// EvalHandle resolves codeHandle as a string and forwards to Eval,
// matching Eval's async/callback contract even when codeHandle is
// invalid: the host callback still fires exactly once, synchronously,
// with a value_exception, and the returned task id is 0 (no task was
// ever scheduled).
func (c *Context) EvalHandle(codeHandle values.Handle, timeout time.Duration, callbackID uint64) (taskID uint64, err error) {
	s, ok := c.StringValue(codeHandle)
	if !ok {
		c.fireCallback(callbackID, values.NewException(values.KindValueException, "eval: code handle is not a string"))
		return 0, nil
	}
	return c.Eval(s, timeout, callbackID)
}

func (c *Context) syncAlloc(fn func() *values.BinaryValue) values.Handle {
	var bv *values.BinaryValue
	if err := c.mgr.RunSync(func() { bv = fn() }); err != nil {
		return c.allocSync(values.NewException(values.KindValueException, "context closed"))
	}
	return c.allocSync(bv)
}

func (c *Context) allocSync(bv *values.BinaryValue) values.Handle {
	h := c.factory.Alloc(bv)
	if bv.Kind == values.KindSharedArrayBuffer || bv.Kind == values.KindArrayBuffer {
		c.factory.RetainBuffer(h, bv)
	}
	return h
}

// AllocBool, AllocInteger, AllocNull, AllocDouble, AllocDate and
// AllocString build scalar BinaryValues directly, matching the FFI's
// alloc_*_val operations; none of these touch the isolate, so they run
// without going through the pump.
func (c *Context) AllocBool(b bool) values.Handle          { return c.factory.Alloc(values.NewBool(b)) }
func (c *Context) AllocInteger(i uint64) values.Handle     { return c.factory.Alloc(values.NewInteger(i)) }
func (c *Context) AllocNull() values.Handle                { return c.factory.Alloc(values.NewNull()) }
func (c *Context) AllocDouble(f float64) values.Handle     { return c.factory.Alloc(values.NewDouble(f)) }
func (c *Context) AllocDate(ms float64) values.Handle      { return c.factory.Alloc(values.NewDate(ms)) }
func (c *Context) AllocString(s string) values.Handle      { return c.factory.Alloc(values.NewString(s)) }

// FreeValue releases h, idempotently.
func (c *Context) FreeValue(h values.Handle) { c.factory.Free(h) }

// ValueCount reports the number of live values in this context's
// registry.
func (c *Context) ValueCount() int { return c.factory.Registry.Count() }

// SetHardMemoryLimit, SetSoftMemoryLimit and the *Reached queries
// forward to the memory monitor. The monitor only exposes SetLimits as
// a (soft, hard) pair, so each setter tracks its own side and replays
// the other so one threshold can change without silently zeroing the
// other.
func (c *Context) SetHardMemoryLimit(bytes uint64) {
	c.mu.Lock()
	c.hardLimit = bytes
	soft := c.softLimit
	c.mu.Unlock()
	c.monitor.SetLimits(soft, bytes)
}
func (c *Context) SetSoftMemoryLimit(bytes uint64) {
	c.mu.Lock()
	c.softLimit = bytes
	hard := c.hardLimit
	c.mu.Unlock()
	c.monitor.SetLimits(bytes, hard)
}
func (c *Context) HardMemoryLimitReached() bool { return c.monitor.HardBreached() }
func (c *Context) SoftMemoryLimitReached() bool { return c.monitor.SoftBreached() }

// LowMemoryNotification posts an empty task through the pump and
// returns without waiting for it. It does not ask V8 to collect
// garbage and has no observable effect on the heap.
func (c *Context) LowMemoryNotification() {
	_ = c.mgr.Run(func() {})
}

// AttachPromiseThen attaches a one-shot fulfilled/rejected pair to the
// promise at h, reporting whether the attach itself succeeded. Both
// branches eventually invoke callbackID with the settled value.
func (c *Context) AttachPromiseThen(h values.Handle, callbackID uint64) bool {
	var attached bool
	_ = c.mgr.RunSync(func() {
		attached = c.promise.Attach(h,
			func(v *values.BinaryValue) { c.fireCallback(callbackID, v) },
			func(v *values.BinaryValue) { c.fireCallback(callbackID, v) },
		)
	})
	return attached
}

// MakeJSCallback builds a JS function that, when called, packs its
// arguments into an array BinaryValue and invokes callbackID with that
// array's handle — component K's contract. The returned handle refers
// to the JS function value itself.
//
// The JS-side FunctionTemplate closure captures only a jscallback
// CallerID, never c itself: per the jscallback package's contract,
// once this Context unregisters that id (see Close), a JS function
// left alive by a stray reference calls into nothing instead of
// touching a disposed isolate.
func (c *Context) MakeJSCallback(callbackID uint64) values.Handle {
	return c.syncAlloc(func() *values.BinaryValue {
		jid := jscallback.Register(func(args jscallback.Args) (any, error) {
			c.onJSCallbackInvoked(callbackID, args)
			return nil, nil
		})
		c.trackJSCallback(jid)

		iso := c.holder.Isolate
		fn := jscallback.WrapRaw(c.holder.Context, jid, func(info *v8.FunctionCallbackInfo) *v8.Value {
			rawArgs := info.Args()
			packed := make(jscallback.Args, len(rawArgs))
			for i, a := range rawArgs {
				packed[i] = a
			}
			_, _, _ = jscallback.Invoke(jid, packed)
			return v8.Undefined(iso)
		})
		return c.factory.FromV8(fn.Value)
	})
}

func (c *Context) trackJSCallback(id jscallback.CallerID) {
	c.mu.Lock()
	c.jsCallbackIDs = append(c.jsCallbackIDs, id)
	c.mu.Unlock()
}

// onJSCallbackInvoked packs args into a JS array via the bootstrapped
// helper, converts it, and fires callbackID. Runs on the pump thread
// (V8 calls the wrapping FunctionTemplate synchronously during script
// execution, and jscallback.Invoke calls this synchronously in turn).
func (c *Context) onJSCallbackInvoked(callbackID uint64, args jscallback.Args) {
	if c.arrayOfFn == nil {
		c.fireCallback(callbackID, values.NewException(values.KindValueException, "argument packer not installed"))
		return
	}
	valuers := make([]v8.Valuer, len(args))
	for i, a := range args {
		v, _ := a.(*v8.Value)
		valuers[i] = v
	}
	arr, err := c.arrayOfFn.Call(c.holder.Context.Global(), valuers...)
	if err != nil {
		c.fireCallback(callbackID, values.NewException(values.KindValueException, err.Error()))
		return
	}
	bv := c.factory.FromV8(arr)
	if bv == nil {
		bv = values.NewNull()
	}
	c.fireCallback(callbackID, bv)
}

// Close tears the context down in the order the data model requires:
// stop JS, drain pending tasks, dispose the isolate, free the
// allocator (implicit in Isolate.Dispose).
func (c *Context) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	_ = c.mgr.StopJavaScript()

	c.mu.Lock()
	runners := make([]*task.Runner, 0, len(c.pending))
	for _, r := range c.pending {
		runners = append(runners, r)
	}
	c.mu.Unlock()
	for _, r := range runners {
		r.Cancel()
	}

	c.timers.StopAll()
	c.monitor.Stop()

	c.mu.Lock()
	ids := c.jsCallbackIDs
	c.jsCallbackIDs = nil
	c.mu.Unlock()
	for _, id := range ids {
		jscallback.Unregister(id)
	}

	// Drain while the pump is still alive: the collector's queued
	// closures are typically backing-store release funcs that are only
	// safe to run on the isolate's own thread. Posting this through the
	// pump one last time, before Stop tears it down, is the only chance
	// left to run them there rather than on this goroutine.
	_ = c.mgr.RunSync(func() { c.collector.Drain() })

	c.mgr.Stop()
	c.collector.Drain()
	c.holder.Dispose()
}
