package op_go

import "errors"

// Sentinel errors returned by Queue operations. Match them with errors.Is;
// rejections carrying extra context wrap one of these. Cancellation has no
// sentinel on purpose: it is a normal termination path, not an error.
var (
	// ErrNilOperation reports a nil (or zero-value) *Operation argument.
	ErrNilOperation = errors.New("operation is nil")
	// ErrSelfDependency reports an operation declared as its own prerequisite.
	ErrSelfDependency = errors.New("operation cannot depend on itself")
	// ErrDuplicateDependency reports a prerequisite edge that already exists.
	ErrDuplicateDependency = errors.New("dependency already declared")
	// ErrDuplicateOperation reports an operation submitted more than once.
	ErrDuplicateOperation = errors.New("operation already submitted")
	// ErrDuplicateID reports a distinct operation reusing a registered id.
	ErrDuplicateID = errors.New("operation id already registered")
	// ErrOperationNotReady reports a dependency declared after the operation
	// left the Ready state.
	ErrOperationNotReady = errors.New("operation is no longer ready")
	// ErrCycleDetected reports a cycle in the declared dependency edges.
	ErrCycleDetected = errors.New("dependency cycle detected")
	// ErrQueueShutdown reports use of a queue after Shutdown.
	ErrQueueShutdown = errors.New("queue is shut down")
)

// ErrorType identifies the Queue operation that produced a systemError.
type (
	ErrorType int

	systemError struct {
		errorType ErrorType
		reason    error
	}
)

// AddDependency, Submit, CancelAll, Shutdown are the ErrorType values that
// identify which Queue operation recorded an error.
const (
	AddDependency ErrorType = iota
	Submit
	CancelAll
	Shutdown
)
