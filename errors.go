package minirac

import "errors"

// ErrContextClosed reports an async operation scheduled after Close.
// The exported async methods do not return it: its text becomes the
// message of the terminated_exception delivered to the host callback,
// and the method returns task id 0 with a nil error.
var ErrContextClosed = errors.New("minirac: context closed")

// ErrTooManyPendingTasks reports an async operation that would exceed
// Config.MaxPendingTasks. As with ErrContextClosed, the exported async
// methods deliver its text in a terminated_exception to the host
// callback and return task id 0 with a nil error.
var ErrTooManyPendingTasks = errors.New("minirac: too many pending tasks")

// ErrUnknownContext describes a context id that doesn't exist (never
// created, or already freed). ContextRegistry.Get reports that case
// with ok=false; nothing in this package returns this error.
var ErrUnknownContext = errors.New("minirac: unknown context id")
