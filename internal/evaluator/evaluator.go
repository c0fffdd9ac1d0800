// Package evaluator implements the code evaluator (spec component H):
// runs a string of JavaScript against a context, classifies whatever
// comes back into a BinaryValue (a plain value or one of the exception
// kinds), and tries a cheap fast path before falling back to a full
// compile-and-run.
//
// Follows a reset-then-run-then-classify flow, with the exception
// summarization priority the data model describes: OOM takes
// precedence over timeout, timeout over an explicit terminate, and
// only then does a generic runtime exception get reported.
package evaluator

import (
	"errors"
	"time"

	v8 "github.com/tommie/v8go"

	"github.com/sqreen/go-mini-racer/internal/isolate"
	"github.com/sqreen/go-mini-racer/internal/memmonitor"
	"github.com/sqreen/go-mini-racer/internal/values"
)

// Evaluator runs JS source against a single context and converts the
// result (or failure) to a BinaryValue. Every method must be called
// from the context's pump thread, since RunScript and value conversion
// both touch live V8 state.
type Evaluator struct {
	ctx     *v8.Context
	iso     *v8.Isolate
	mgr     *isolate.Manager
	monitor *memmonitor.Monitor
	factory *values.Factory
}

// New creates an Evaluator bound to ctx, using mgr to arm timeouts and
// monitor to distinguish an OOM termination from any other kind.
func New(ctx *v8.Context, iso *v8.Isolate, mgr *isolate.Manager, monitor *memmonitor.Monitor, factory *values.Factory) *Evaluator {
	return &Evaluator{ctx: ctx, iso: iso, mgr: mgr, monitor: monitor, factory: factory}
}

// Eval runs code with the given timeout (zero means no deadline),
// trying the fast path first. The returned BinaryValue is always
// non-nil: either a converted result or one of the exception kinds.
func (e *Evaluator) Eval(code string, timeout time.Duration) *values.BinaryValue {
	if name, ok := values.FastPathCallTarget(code); ok {
		if v, tried := e.tryFastPath(name, timeout); tried {
			return v
		}
	}
	return e.run(code, timeout)
}

// tryFastPath attempts to look up name as a bare global and call it
// with no arguments, skipping a full parse. It reports tried=false if
// name doesn't resolve to a callable global, letting the caller fall
// through to the slow path rather than surfacing a spurious error.
func (e *Evaluator) tryFastPath(name string, timeout time.Duration) (result *values.BinaryValue, tried bool) {
	global := e.ctx.Global()
	target, err := global.Get(name)
	if err != nil || target == nil || !target.IsFunction() {
		return nil, false
	}
	fn, err := target.AsFunction()
	if err != nil {
		return nil, false
	}

	b := isolate.Arm(e.mgr, timeout)
	defer b.Disarm()
	e.resetMonitor()

	v, callErr := fn.Call(e.ctx.Global())
	return e.classify(v, callErr, b), true
}

// run compiles code first, separately from running it, so a syntax
// error is classified as a parse_exception rather than a generic
// execute_exception: a compile failure returns before script.Run is
// ever called.
func (e *Evaluator) run(code string, timeout time.Duration) *values.BinaryValue {
	script, err := e.iso.CompileUnboundScript(code, "eval.js", v8.CompileOptions{})
	if err != nil {
		return values.NewException(values.KindParseException, summarizeJSError(err))
	}

	b := isolate.Arm(e.mgr, timeout)
	defer b.Disarm()
	e.resetMonitor()

	v, runErr := script.Run(e.ctx)
	return e.classify(v, runErr, b)
}

func (e *Evaluator) resetMonitor() {
	if e.monitor != nil {
		e.monitor.ResetFlags()
	}
}

// classify turns a RunScript/Call result plus error into the
// corresponding BinaryValue, applying the priority OOM > timeout >
// terminated > generic execute failure when err is non-nil.
func (e *Evaluator) classify(v *v8.Value, err error, b *isolate.Breaker) *values.BinaryValue {
	if err == nil {
		bv := e.factory.FromV8(v)
		if bv == nil {
			return values.NewNull()
		}
		return bv
	}

	if e.monitor != nil && e.monitor.HardBreached() {
		return values.NewException(values.KindOOMException, "allocation failure; heap limit exceeded")
	}
	if b.TimedOut() {
		return values.NewException(values.KindTimeoutException, "execution timed out")
	}

	msg := summarizeJSError(err)
	if isTerminatedError(msg) {
		return values.NewException(values.KindTerminatedException, msg)
	}
	return values.NewException(values.KindExecuteException, msg)
}

// summarizeJSError prefers the stack trace, falls back to the plain
// message, and falls back again to the error's own string form —
// matching the data model's "never return an empty exception message"
// invariant.
func summarizeJSError(err error) string {
	var jsErr *v8.JSError
	if errors.As(err, &jsErr) {
		if jsErr.StackTrace != "" {
			return jsErr.StackTrace
		}
		if jsErr.Message != "" {
			return jsErr.Message
		}
	}
	if err.Error() != "" {
		return err.Error()
	}
	return "unknown JavaScript execution error"
}

// isTerminatedError reports whether msg looks like V8's own
// "terminated" exception text rather than a script-level throw. V8
// surfaces an explicit TerminateExecution as a JS exception with this
// wording rather than as a distinguishable Go error type, so the
// classification is necessarily on the message text.
func isTerminatedError(msg string) bool {
	return msg == "ExecutionTerminated" ||
		msg == "Uncaught ExecutionTerminated: script execution has been terminated"
}
