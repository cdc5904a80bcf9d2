package op_go

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"
)

// ── state machine unit tests ─────────────────────────────────────────────────

// TestOperationState_String verifies the log/event names of every state.
func TestOperationState_String(t *testing.T) {
	defer goleak.VerifyNone(t)

	cases := []struct {
		state OperationState
		want  string
	}{
		{StateReady, "Ready"},
		{StateExecuting, "Executing"},
		{StateFinished, "Finished"},
		{OperationState(42), "Unknown"},
	}

	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("String(%d): expected %q, got %q", int(tc.state), tc.want, got)
		}
	}
}

// TestIsValidTransition_ValidEdges verifies that every permitted edge in the
// Operation state machine is accepted.
func TestIsValidTransition_ValidEdges(t *testing.T) {
	defer goleak.VerifyNone(t)

	cases := []struct {
		name string
		from OperationState
		to   OperationState
	}{
		{"Ready→Executing", StateReady, StateExecuting},
		{"Ready→Finished", StateReady, StateFinished},
		{"Executing→Finished", StateExecuting, StateFinished},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if !isValidTransition(tc.from, tc.to) {
				t.Errorf("expected isValidTransition(%v, %v) to be true", tc.from, tc.to)
			}
		})
	}
}

// TestIsValidTransition_InvalidEdges verifies that backwards, lateral and
// terminal-escaping edges are always rejected.
func TestIsValidTransition_InvalidEdges(t *testing.T) {
	defer goleak.VerifyNone(t)

	cases := []struct {
		name string
		from OperationState
		to   OperationState
	}{
		{"Ready→Ready", StateReady, StateReady},
		{"Executing→Ready", StateExecuting, StateReady},
		{"Executing→Executing", StateExecuting, StateExecuting},
		{"Finished→Ready", StateFinished, StateReady},
		{"Finished→Executing", StateFinished, StateExecuting},
		{"Finished→Finished", StateFinished, StateFinished},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if isValidTransition(tc.from, tc.to) {
				t.Errorf("expected isValidTransition(%v, %v) to be false", tc.from, tc.to)
			}
		})
	}
}

// TestTransitionTo_FinishedIsIdempotent verifies that requesting any
// transition on a Finished operation is a silent no-op rather than a
// contract violation: Finish must be callable any number of times.
func TestTransitionTo_FinishedIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	op := NewOperation("idempotent", instantTask{})
	if !op.transitionTo(StateFinished) {
		t.Fatal("expected first transition to Finished to commit")
	}
	if op.transitionTo(StateFinished) {
		t.Error("expected repeat transition to Finished to be a no-op")
	}
	if op.transitionTo(StateExecuting) {
		t.Error("expected Finished→Executing request to be dropped")
	}
	if got := op.State(); got != StateFinished {
		t.Errorf("expected state Finished, got %v", got)
	}
}

// TestTransitionTo_InvalidEdgePanics verifies that an invalid edge which is
// not covered by the Finished no-op rule aborts: it indicates a bug in a
// call site, not a runtime condition.
func TestTransitionTo_InvalidEdgePanics(t *testing.T) {
	defer goleak.VerifyNone(t)

	old := Log.Out
	Log.SetOutput(io.Discard)
	defer Log.SetOutput(old)

	op := NewOperation("invalid-edge", stayExecutingTask{})
	op.Start(context.Background())
	if !op.IsExecuting() {
		t.Fatalf("expected operation to be Executing, got %v", op.State())
	}

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected Executing→Executing transition to panic")
		}
		op.Finish()
	}()
	op.transitionTo(StateExecuting)
}

// TestTransitionTo_ConcurrentFinishWinners launches many goroutines that all
// race to perform the Ready→Finished short-circuit on a single operation.
// Exactly one must commit; every other request hits the terminal no-op and
// must report "did not transition". Run with -race to verify there are no
// data races on the state field.
func TestTransitionTo_ConcurrentFinishWinners(t *testing.T) {
	defer goleak.VerifyNone(t)

	const numGoroutines = 200
	op := NewOperation("cas-race", instantTask{})

	var (
		wg   sync.WaitGroup
		wins int32
	)

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ { //nolint:intrange
		go func() {
			defer wg.Done()
			if op.transitionTo(StateFinished) {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&wins); got != 1 {
		t.Errorf("expected exactly 1 Ready→Finished winner, got %d", got)
	}
	if op.State() != StateFinished {
		t.Errorf("expected state Finished after race, got %v", op.State())
	}
}

// TestTransitionTo_ConcurrentFinishDeliversOnce verifies the completion
// idempotency contract under pressure: many goroutines call Finish, yet
// observers see exactly one Executing→Finished transition.
func TestTransitionTo_ConcurrentFinishDeliversOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	const numGoroutines = 100
	op := NewOperation("finish-race", stayExecutingTask{})

	var terminalNotifications int32
	op.AddObserver(StateObserverFunc(func(_ *Operation, _, to OperationState) {
		if to == StateFinished {
			atomic.AddInt32(&terminalNotifications, 1)
		}
	}))

	op.Start(context.Background())

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ { //nolint:intrange
		go func() {
			defer wg.Done()
			op.Finish()
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&terminalNotifications); got != 1 {
		t.Errorf("expected exactly 1 Finished notification, got %d", got)
	}
	if !op.IsFinished() {
		t.Errorf("expected operation to be Finished, got %v", op.State())
	}
}
