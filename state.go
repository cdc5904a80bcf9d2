package op_go

// OperationState represents the lifecycle state of an Operation.
//
// The lifecycle is a strictly monotonic three-state machine:
//
//	Ready ──→ Executing ──→ Finished
//	  └────────────────────────┘
//
// Ready → Finished is the cancellation short-circuit: a cancelled operation
// completes without ever executing its work body. Finished is terminal and
// has no outgoing transitions.
type OperationState int

const (
	// StateReady means the operation has been constructed and may still
	// accept dependency edges and observers. It is waiting to be dispatched.
	StateReady OperationState = iota
	// StateExecuting means the operation's work body has been started and
	// has not yet signalled completion.
	StateExecuting
	// StateFinished means the operation has completed (successfully,
	// cancelled, or otherwise). Terminal.
	StateFinished
)

// String returns the human-readable state name used in logs and events.
func (s OperationState) String() string {
	switch s {
	case StateReady:
		return "Ready"
	case StateExecuting:
		return "Executing"
	case StateFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// isValidTransition reports whether the from→to edge exists in the
// Operation state machine.
//
// Valid transitions:
//
//	Ready     → Executing (normal dispatch)
//	Ready     → Finished  (cancellation short-circuit)
//	Executing → Finished  (work completed)
//
// Everything else is invalid. Finished→Finished is handled separately by
// transitionTo as an idempotent no-op, not as a legal edge.
func isValidTransition(from, to OperationState) bool {
	switch from {
	case StateReady:
		return to == StateExecuting || to == StateFinished
	case StateExecuting:
		return to == StateFinished
	default:
		// Terminal state: no outgoing transitions.
		return false
	}
}
