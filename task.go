package op_go

import "context"

// Task is the work body attached to an Operation. Main is invoked at most
// once, by Operation.Start, after the operation has transitioned to
// Executing. ctx carries the cancellation/timeout signal of the submission
// the operation ran under; long-running implementations should watch
// ctx.Done() and op.IsCancelled() so they can stop early.
//
// Completion contract: Main must arrange for op.Finish to be called on
// every code path, including its own cancellation checks. Main does not
// have to finish synchronously. It may hand the work to another goroutine,
// a timer, or an external callback and return immediately; the operation
// simply stays Executing until Finish arrives from wherever the work ends.
// A Task that never finishes leaves its operation Executing forever. That
// is a contract breach which is not detected at runtime, so it is the kind
// of bug tests must catch.
type Task interface {
	Main(ctx context.Context, op *Operation)
}

// TaskFunc adapts a plain function to the Task interface.
type TaskFunc func(ctx context.Context, op *Operation)

// Main implements Task.
func (f TaskFunc) Main(ctx context.Context, op *Operation) { f(ctx, op) }

// Canceller is an optional capability of a Task. When the task implements
// it, the first (and only the first) Cancel call on the operation invokes
// DidCancel instead of the default behaviour of finishing the operation on
// the spot.
//
// DidCancel runs on the cancelling goroutine, outside every lock, so it may
// freely reenter the operation. The completion contract still applies: an
// implementation that defers completion must make sure the operation
// eventually reaches Finished, otherwise dependents wait forever. Until it
// finishes, a cancelled-but-unfinished operation is still dispatched by the
// queue as usual and drains through the Start short-circuit.
type Canceller interface {
	DidCancel(op *Operation)
}
