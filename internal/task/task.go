// Package task implements the cancelable task runner (spec component
// E): a small state machine layered on top of the isolate manager's
// task queue that guarantees exactly one terminal callback — either
// on-completed or on-canceled, never both, never neither — no matter
// which thread cancels it or when.
//
// Generalizes a single "finished" flag guarding against double-dispatch
// of a response into an explicit four-state machine per the data
// model.
package task

import "sync/atomic"

// State is one of NotStarted, Running, Completed or Canceled. Only
// forward transitions are legal: NotStarted->Running->{Completed,
// Canceled}, or NotStarted->Canceled directly if canceled before the
// pump ever got to it.
type State int32

const (
	NotStarted State = iota
	Running
	Completed
	Canceled
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Runner is a cancelable unit of work submitted to the isolate
// manager. A Runner must be used once: create it, submit its Execute
// to the manager's queue, and (optionally, from any thread at any
// time) call Cancel.
type Runner struct {
	state atomic.Int32

	onCompleted func()
	onCanceled  func()
}

// New creates a Runner with the given terminal callbacks. Either may
// be nil if the caller doesn't care about that outcome.
func New(onCompleted, onCanceled func()) *Runner {
	return &Runner{onCompleted: onCompleted, onCanceled: onCanceled}
}

// State returns the runner's current state.
func (r *Runner) State() State {
	return State(r.state.Load())
}

// Cancel marks the task canceled if it hasn't started running yet, or
// requests cancellation of a running task (the caller is expected to
// also call the isolate manager's TerminateOngoingTask to actually
// interrupt it — Cancel here only governs which terminal callback
// fires). Safe to call from any thread, any number of times; only the
// first call has an effect.
func (r *Runner) Cancel() {
	if r.state.CompareAndSwap(int32(NotStarted), int32(Canceled)) {
		r.fireCanceled()
		return
	}
	// Running -> Canceled: a task already executing on the pump thread
	// that hasn't completed yet. Whichever of Execute's completion path
	// or this call wins the race to flip state away from Running
	// determines the single terminal callback that fires.
	r.state.CompareAndSwap(int32(Running), int32(Canceled))
}

// Execute runs fn on the calling goroutine (expected to be the
// isolate's pump thread) unless the task was already canceled, then
// transitions to Completed and fires onCompleted — unless a concurrent
// Cancel won the race, in which case onCanceled fires instead and fn's
// result (if fn returned one the caller cares about) should be
// discarded by the caller.
func (r *Runner) Execute(fn func()) {
	if !r.state.CompareAndSwap(int32(NotStarted), int32(Running)) {
		// Already canceled before we got here.
		return
	}
	fn()
	if r.state.CompareAndSwap(int32(Running), int32(Completed)) {
		r.fireCompleted()
		return
	}
	// A concurrent Cancel flipped us to Canceled while fn ran.
	r.fireCanceled()
}

func (r *Runner) fireCompleted() {
	if r.onCompleted != nil {
		r.onCompleted()
	}
}

func (r *Runner) fireCanceled() {
	if r.onCanceled != nil {
		r.onCanceled()
	}
}
