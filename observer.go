package op_go

// StateObserver receives lifecycle transition notifications from an
// Operation. Notifications are delivered after the transition has committed
// and strictly outside the operation's state lock, so an observer may
// reenter the operation (read its state, cancel it, finish it) without
// deadlocking.
//
// Each committed transition is delivered exactly once to every observer
// registered at commit time. Delivery order across observers follows
// registration order; delivery runs synchronously on the goroutine that
// performed the transition, so observers should return quickly and offload
// slow work.
type StateObserver interface {
	OperationStateChanged(op *Operation, from, to OperationState)
}

// StateObserverFunc adapts a plain function to the StateObserver interface.
type StateObserverFunc func(op *Operation, from, to OperationState)

// OperationStateChanged implements StateObserver.
func (f StateObserverFunc) OperationStateChanged(op *Operation, from, to OperationState) {
	f(op, from, to)
}
