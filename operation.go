package op_go

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/seoyhaein/utils"
)

// Operation is a schedulable, cancellable unit of work with a guarded
// three-state lifecycle (see OperationState). Always handle it as a
// pointer; it embeds locks and atomics and must not be copied. All exported
// methods are safe for concurrent use from arbitrary goroutines.
//
// Typical flow: construct with NewOperation, declare prerequisite edges
// through Queue.AddDependency while still Ready, hand over to Queue.Submit.
// The queue invokes Start exactly once; the work body (or whatever
// goroutine it handed the work to) invokes Finish when done. Finished is
// terminal, so an Operation is single-shot: build a new one instead of
// reusing a finished one.
type Operation struct {
	id   string
	task Task

	mu        sync.RWMutex // guards state, observers and deps
	state     OperationState
	observers []StateObserver
	deps      []*Operation // non-owning prerequisite references; the queue owns the edge set

	// cancelled is monotonic and deliberately independent of state: it can
	// be set before, during or after execution, and it survives completion.
	cancelled atomic.Bool

	// done is closed exactly once when the operation reaches Finished.
	done *SafeChannel[struct{}]
}

// NewOperation creates a Ready operation that will execute task. name
// becomes the operation id; when empty, a UUID is assigned. A nil task
// aborts immediately: every operation must carry its work body from
// construction, there is no settable-later slot.
func NewOperation(name string, task Task) *Operation {
	if task == nil {
		Log.Panicf("NewOperation: nil task (operation %q)", name)
	}
	if utils.IsEmptyString(name) {
		name = uuid.NewString()
	}
	return &Operation{
		id:    name,
		task:  task,
		state: StateReady,
		done:  NewSafeChannel[struct{}](0),
	}
}

// ID returns the operation's identifier. Immutable after construction.
func (op *Operation) ID() string { return op.id }

// State returns the current lifecycle state.
func (op *Operation) State() OperationState {
	op.mu.RLock()
	defer op.mu.RUnlock()
	return op.state
}

// IsReady reports whether the operation is still awaiting dispatch. This is
// a pure state view: the queue layers its own dependency-satisfaction check
// on top when deciding what to run.
func (op *Operation) IsReady() bool { return op.State() == StateReady }

// IsExecuting reports whether the work body has started and not yet finished.
func (op *Operation) IsExecuting() bool { return op.State() == StateExecuting }

// IsFinished reports whether the operation has completed. Terminal.
func (op *Operation) IsFinished() bool { return op.State() == StateFinished }

// IsCancelled reports whether Cancel has been called. The flag is monotonic
// and independent of the lifecycle state: a finished operation can still
// read as cancelled, and a cancelled operation may briefly remain Ready or
// Executing until its completion path runs.
func (op *Operation) IsCancelled() bool { return op.cancelled.Load() }

// Done returns a channel that is closed once the operation reaches
// Finished. Waiters select on it alongside their context.
func (op *Operation) Done() <-chan struct{} { return op.done.GetChannel() }

// Dependencies returns a snapshot copy of the direct prerequisite list.
func (op *Operation) Dependencies() []*Operation {
	op.mu.RLock()
	defer op.mu.RUnlock()
	deps := make([]*Operation, len(op.deps))
	copy(deps, op.deps)
	return deps
}

// HasCancelledDependencies reports whether any direct prerequisite has its
// cancelled flag set right now. A point-in-time read, not a subscription: a
// prerequisite cancelled after this returns false is still handled, because
// its own completion is what ultimately unblocks this operation.
func (op *Operation) HasCancelledDependencies() bool {
	op.mu.RLock()
	defer op.mu.RUnlock()
	for _, dep := range op.deps {
		if dep.IsCancelled() {
			return true
		}
	}
	return false
}

// AddObserver registers obs for transition notifications. Observers
// registered after a transition committed do not receive that transition;
// in particular, observers added after Finished are never invoked.
func (op *Operation) AddObserver(obs StateObserver) {
	if obs == nil {
		return
	}
	op.mu.Lock()
	op.observers = append(op.observers, obs)
	op.mu.Unlock()
}

// addDependency appends dep to the prerequisite list. Edges may only be
// declared while the operation is Ready; the check and the append are one
// critical section so a concurrent dispatch cannot slip between them.
func (op *Operation) addDependency(dep *Operation) error {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state != StateReady {
		return ErrOperationNotReady
	}
	op.deps = append(op.deps, dep)
	return nil
}

// transitionTo requests the state-machine edge state→to and reports whether
// it committed. Requests on a Finished operation are silently ignored, which
// is what makes Finish idempotent and lets a late Start lose cleanly to a
// cancellation that already completed the operation. Any other invalid edge
// is a contract violation in a call site, not a runtime condition, and
// aborts via Log.Panicf.
//
// Observer notifications run strictly after the state lock is released:
// observers never execute under the lock, and each committed transition is
// delivered exactly once to the observers registered at commit time. The
// done channel closes after the notifications, so a Done waiter is
// guaranteed the owning queue's completion bookkeeping already ran.
func (op *Operation) transitionTo(to OperationState) bool {
	op.mu.Lock()
	from := op.state
	if from == StateFinished {
		op.mu.Unlock()
		return false
	}
	if !isValidTransition(from, to) {
		op.mu.Unlock()
		Log.Panicf("operation %s: invalid state transition %v -> %v", op.id, from, to)
	}
	op.state = to
	observers := make([]StateObserver, len(op.observers))
	copy(observers, op.observers)
	op.mu.Unlock()

	for _, obs := range observers {
		obs.OperationStateChanged(op, from, to)
	}
	if to == StateFinished {
		if err := op.done.Close(); err != nil {
			Log.Warnf("operation %s: failed to close done channel: %v", op.id, err)
		}
	}
	return true
}

// Start is the single dispatch entry point. The owning queue calls it
// exactly once, on a worker goroutine, once the operation's prerequisites
// are satisfied (or its cancellation makes them irrelevant); no other
// caller should invoke it.
//
// A cancelled operation, or one with a cancelled prerequisite, drains
// straight to Finished without ever running its work body. Otherwise the
// operation transitions to Executing and Main runs on the calling
// goroutine. Main may hand the work off elsewhere and return; the
// operation stays Executing until Finish arrives.
func (op *Operation) Start(ctx context.Context) {
	if op.IsCancelled() || op.HasCancelledDependencies() {
		op.Finish()
		return
	}
	if !op.transitionTo(StateExecuting) {
		// A racing cancellation completed the operation between the check
		// above and the transition; nothing to run.
		return
	}
	op.task.Main(ctx, op)
}

// Finish drives the terminal transition (Ready|Executing → Finished). Safe
// to call from any goroutine and any number of times: every call after the
// first is a no-op. Every Task must ensure Finish is eventually invoked on
// every code path, or the operation stays Executing forever.
func (op *Operation) Finish() {
	op.transitionTo(StateFinished)
}

// Cancel sets the monotonic cancelled flag. On the first call only, the
// flag change is delivered to the task: DidCancel when the task implements
// Canceller, otherwise the default reaction of finishing the operation
// immediately. Subsequent calls return without effect.
//
// Cancellation is advisory and cooperative, and it is not an error:
// cancelling an operation that is already Executing (or even Finished) is
// legal, and every cancelled operation still converges to Finished.
func (op *Operation) Cancel() {
	if !op.cancelled.CompareAndSwap(false, true) {
		return
	}
	op.didCancel()
}

// didCancel reacts to the first observation of the cancelled flag. It runs
// on the cancelling goroutine, outside every lock, so the completion path
// may reenter the state machine.
func (op *Operation) didCancel() {
	if c, ok := op.task.(Canceller); ok {
		c.DidCancel(op)
		return
	}
	op.Finish()
}
