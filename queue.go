package op_go

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/seoyhaein/utils"
	"golang.org/x/sync/errgroup"
)

// Event describes one committed state transition of a managed operation,
// as delivered on Queue.Events.
type Event struct {
	OperationID string
	From        OperationState
	To          OperationState
}

// QueueConfig holds the tunable parameters of a Queue. Zero or negative
// values fall back to the DefaultQueueConfig values when the queue starts.
type QueueConfig struct {
	// WorkerPoolSize caps the number of goroutines that run operations
	// concurrently. The scheduling concurrency is deliberately a parameter,
	// not a constant: size 1 yields a strictly serial queue, larger sizes
	// run independent operations in parallel. Defaults to 50.
	WorkerPoolSize int

	// EventBuffer is the capacity of the Events channel. Transition events
	// are delivered non-blocking and dropped (with a warning log) when the
	// buffer is full, so size it for the expected burst. Defaults to 100.
	EventBuffer int

	// ErrorBuffer is the capacity of the Errors channel. Defaults to 100.
	ErrorBuffer int

	// ErrorDrainTimeout is the maximum time CollectErrors will wait to drain
	// the Errors channel. Defaults to 5 s when left at zero.
	ErrorDrainTimeout time.Duration
}

// DefaultQueueConfig returns a QueueConfig populated with the defaults
// described on each field.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		WorkerPoolSize:    50,
		EventBuffer:       100,
		ErrorBuffer:       100,
		ErrorDrainTimeout: 5 * time.Second,
	}
}

// QueueOption is a functional-option type for NewQueueWithOptions.
// Use the provided With* constructors to build option values.
type QueueOption func(*Queue)

// WithWorkerPool sets the worker pool size. Size 1 yields a strictly
// serial queue.
func WithWorkerPool(size int) QueueOption {
	return func(q *Queue) {
		q.Config.WorkerPoolSize = size
	}
}

// WithEventBuffer sets the Events channel capacity.
func WithEventBuffer(n int) QueueOption {
	return func(q *Queue) {
		q.Config.EventBuffer = n
	}
}

// WithErrorBuffer sets the Errors channel capacity.
func WithErrorBuffer(n int) QueueOption {
	return func(q *Queue) {
		q.Config.ErrorBuffer = n
	}
}

// WithErrorDrainTimeout sets the CollectErrors drain timeout.
func WithErrorDrainTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		q.Config.ErrorDrainTimeout = d
	}
}

// ==================== worker pool ====================

// workerPool manages a bounded pool of goroutines for concurrent operation
// dispatch. Tasks are submitted via submit; close drains the queue and
// waits for all workers.
type workerPool struct {
	workerLimit int
	taskQueue   chan func()
	wg          sync.WaitGroup
	closeOnce   sync.Once // prevents double-close panic on taskQueue
}

func newWorkerPool(limit int) *workerPool {
	pool := &workerPool{
		workerLimit: limit,
		taskQueue:   make(chan func(), limit*2), // buffer is twice the worker count
	}

	for i := 0; i < limit; i++ { //nolint:intrange
		pool.wg.Add(1)
		go func() {
			defer pool.wg.Done()
			for task := range pool.taskQueue {
				task()
			}
		}()
	}

	return pool
}

// submit hands a task to the pool. Blocks while the buffer is full, which
// is why only the queue's dispatcher goroutine ever calls it.
func (p *workerPool) submit(task func()) {
	p.taskQueue <- task
}

// close shuts the pool down. sync.Once closes taskQueue exactly once, so a
// second close does not panic; queued tasks are drained before the workers
// exit.
func (p *workerPool) close() {
	p.closeOnce.Do(func() { close(p.taskQueue) })
	p.wg.Wait()
}

// ==================== Queue ====================

// edge records a directional prerequisite relation between two registered
// operations. Edges reference registry entries by id; they never own the
// operations themselves.
type edge struct {
	prereqID    string
	dependentID string
}

// edgeExists checks for duplicate edges.
func edgeExists(edges []*edge, prereqID, dependentID string) bool {
	for _, e := range edges {
		if e.prereqID == prereqID && e.dependentID == dependentID {
			return true
		}
	}
	return false
}

// opState tracks a submitted operation until it is handed to the pool.
type opState struct {
	op         *Operation
	ctx        context.Context // submission-scoped; carried to Start
	pending    map[string]struct{}
	dispatched bool
}

// dispatchJob pairs a ready operation with the context it will run under.
type dispatchJob struct {
	op  *Operation
	ctx context.Context
}

// Queue schedules operations subject to their dependency edges and a
// bounded worker pool.
//
// A Queue is created with NewQueue (or NewQueueWithConfig /
// NewQueueWithOptions), populated with AddDependency calls, fed with Submit,
// and torn down with Shutdown. An operation is dispatched — Start invoked on
// a pool worker — once every prerequisite has reached Finished, or
// immediately once it is cancelled, whichever comes first. The queue itself
// is reusable across submissions: operations are single-shot, queues are
// not.
//
// Queue must always be handled as a pointer; value-copy is forbidden
// because it embeds mutexes.
type Queue struct {
	// ID is the unique identifier assigned at creation time (UUID v4).
	ID string

	// Config holds the parameters the queue was started with.
	Config QueueConfig

	// Events streams committed state transitions of registered operations.
	// Delivery is non-blocking: when the buffer is full events are dropped
	// with a warning log, never stalling an operation.
	Events *SafeChannel[Event]

	// Errors is the concurrency-safe error channel. Validation failures and
	// rejected submissions are reported here as well as returned to the
	// caller; drain it with CollectErrors.
	Errors *SafeChannel[error]

	mu        sync.RWMutex
	ops       map[string]*Operation // live registered operations; entries are released on Finished
	states    map[string]*opState   // submitted, not-yet-released bookkeeping
	edges     []*edge
	submitted map[string]bool // every id ever submitted; duplicate-submit guard
	suspended bool
	held      []dispatchJob // ready jobs gated by Suspend
	closed    bool
	errLogs   []*systemError

	// submittedCount / completedCount are kept as atomics so Progress can
	// read them without taking mu.
	submittedCount int64
	completedCount int64

	pool *workerPool

	// The dispatcher goroutine is the only caller of pool.submit. Ready jobs
	// go through the unbounded ready list first, so a worker that finishes an
	// operation (and thereby produces more ready work via the observer hook)
	// never blocks against a full pool.
	readyMu        sync.Mutex
	readyCond      *sync.Cond
	ready          []dispatchJob
	readyClosed    bool
	dispatcherExit chan struct{}
}

// NewQueue returns a started Queue with DefaultQueueConfig.
func NewQueue() *Queue {
	return NewQueueWithConfig(DefaultQueueConfig())
}

// NewQueueWithConfig returns a started Queue using the supplied config.
func NewQueueWithConfig(config QueueConfig) *Queue {
	q := newQueue(config)
	q.start()
	return q
}

// NewQueueWithOptions returns a started Queue: DefaultQueueConfig first,
// then each QueueOption applied in order, then the worker pool and
// channels materialised. Options therefore always take effect, including
// the buffer sizes.
func NewQueueWithOptions(options ...QueueOption) *Queue {
	q := newQueue(DefaultQueueConfig())
	for _, option := range options {
		option(q)
	}
	q.start()
	return q
}

func newQueue(config QueueConfig) *Queue {
	q := &Queue{
		ID:             uuid.NewString(),
		Config:         config,
		ops:            make(map[string]*Operation),
		states:         make(map[string]*opState),
		submitted:      make(map[string]bool),
		dispatcherExit: make(chan struct{}),
	}
	q.readyCond = sync.NewCond(&q.readyMu)
	return q
}

// start materialises the channels and worker pool from Config and launches
// the dispatcher.
func (q *Queue) start() {
	def := DefaultQueueConfig()
	if q.Config.WorkerPoolSize <= 0 {
		q.Config.WorkerPoolSize = def.WorkerPoolSize
	}
	if q.Config.EventBuffer <= 0 {
		q.Config.EventBuffer = def.EventBuffer
	}
	if q.Config.ErrorBuffer <= 0 {
		q.Config.ErrorBuffer = def.ErrorBuffer
	}
	q.Events = NewSafeChannel[Event](q.Config.EventBuffer)
	q.Errors = NewSafeChannel[error](q.Config.ErrorBuffer)
	q.pool = newWorkerPool(q.Config.WorkerPoolSize)
	go q.dispatcher()
}

// ==================== dispatch plumbing ====================

// enqueueDispatch appends jobs to the ready list and wakes the dispatcher.
// It never blocks — the ready list is unbounded — so it is safe to call
// from completion observers and while holding q.mu.
func (q *Queue) enqueueDispatch(jobs ...dispatchJob) {
	if len(jobs) == 0 {
		return
	}
	q.readyMu.Lock()
	if q.readyClosed {
		q.readyMu.Unlock()
		Log.WithField("queue_id", q.ID).
			Warnf("queue is shut down; dropping %d ready operation(s)", len(jobs))
		return
	}
	q.ready = append(q.ready, jobs...)
	q.readyCond.Signal()
	q.readyMu.Unlock()
}

// dispatcher is the single goroutine feeding ready operations to the worker
// pool. Only it ever blocks on pool submission, so workers that finish
// operations (and thereby produce more ready work) can never deadlock
// against a full pool. It drains the ready list before exiting.
func (q *Queue) dispatcher() {
	defer close(q.dispatcherExit)
	for {
		q.readyMu.Lock()
		for len(q.ready) == 0 && !q.readyClosed {
			q.readyCond.Wait()
		}
		if len(q.ready) == 0 && q.readyClosed {
			q.readyMu.Unlock()
			return
		}
		job := q.ready[0]
		q.ready = q.ready[1:]
		q.readyMu.Unlock()

		q.pool.submit(func() { job.op.Start(job.ctx) })
	}
}

// dispatchLocked marks st dispatched and hands it to the dispatcher, or to
// the held-back list while the queue is suspended. Caller must hold q.mu.
func (q *Queue) dispatchLocked(st *opState) {
	st.dispatched = true
	job := dispatchJob{op: st.op, ctx: st.ctx}
	if q.suspended {
		q.held = append(q.held, job)
		return
	}
	q.enqueueDispatch(job)
}

// observe is the queue's StateObserver hook, installed on every registered
// operation. It mirrors transitions onto the Events channel and, on the
// terminal transition, releases the operation and unblocks its dependents.
// It runs outside the operation's state lock, so taking q.mu here cannot
// deadlock against a transition in progress.
func (q *Queue) observe(op *Operation, from, to OperationState) {
	q.emitEvent(Event{OperationID: op.ID(), From: from, To: to})
	if to != StateFinished {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.finalizeLocked(op)
}

// finalizeLocked releases a Finished operation from the registry, settles
// the progress counters, prunes its edges, and dispatches every dependent
// whose last pending prerequisite this was, plus any cancelled dependent
// that no longer needs to wait. Idempotent: a second call for the same
// operation finds no registry entry and returns. Caller must hold q.mu.
func (q *Queue) finalizeLocked(op *Operation) {
	id := op.ID()
	if _, live := q.ops[id]; !live {
		return // already finalized by a competing path
	}
	delete(q.ops, id)
	delete(q.states, id)
	if q.submitted[id] {
		atomic.AddInt64(&q.completedCount, 1)
	}

	kept := q.edges[:0]
	for _, e := range q.edges {
		if e.dependentID == id {
			continue // the dependent itself finished; edge is spent
		}
		if e.prereqID != id {
			kept = append(kept, e)
			continue
		}
		if st, ok := q.states[e.dependentID]; ok && !st.dispatched {
			delete(st.pending, id)
			// A cancelled dependent does not wait for its remaining
			// prerequisites; Start short-circuits it either way.
			if len(st.pending) == 0 || st.op.IsCancelled() {
				q.dispatchLocked(st)
			}
		}
	}
	q.edges = kept
}

// registerLocked adds op to the live registry and installs the queue's
// transition hook. Operations that are already Finished are not tracked:
// admission and pending-set snapshots read their state directly. Caller
// must hold q.mu.
func (q *Queue) registerLocked(op *Operation) error {
	id := op.ID()
	if existing, ok := q.ops[id]; ok {
		if existing == op {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	if op.IsFinished() {
		return nil
	}
	q.ops[id] = op
	op.AddObserver(StateObserverFunc(q.observe))
	if op.IsFinished() {
		// The terminal transition slipped in between the registry insert and
		// the hook landing, so its notification predates the hook. Settle
		// the bookkeeping here instead.
		q.finalizeLocked(op)
	}
	return nil
}

// emitEvent delivers ev to the Events channel in a non-blocking fashion.
// When the channel is full or already closed the event is logged rather
// than silently discarded.
func (q *Queue) emitEvent(ev Event) {
	if q.Events == nil {
		return
	}
	if !q.Events.Send(ev) {
		Log.WithField("queue_id", q.ID).
			Warnf("event channel full or closed; dropping %s %v -> %v", ev.OperationID, ev.From, ev.To)
	}
}

// reportError delivers err to the error channel in a non-blocking fashion.
// When the channel is full or already closed the error is logged with
// structured fields rather than silently discarded.
func (q *Queue) reportError(err error) {
	if q.Errors == nil {
		return
	}
	if !q.Errors.Send(err) {
		Log.WithField("queue_id", q.ID).
			WithError(err).
			Warn("error channel full or closed; dropping error")
	}
}

// ==================== public API ====================

// AddDependency declares a directional prerequisite edge: dependent will
// not be dispatched until prerequisite reaches Finished. Both operations
// are registered with the queue as a side effect, so a prerequisite does
// not need to be submitted before its dependents name it.
//
// Edges may only be declared while the dependent is Ready and not yet
// selected for dispatch; afterwards AddDependency fails with
// ErrOperationNotReady. Declaring an edge on a dependent that is already
// submitted and waiting is allowed and takes effect immediately.
//
// Edges must not form a cycle. Construction is expected to keep the graph
// acyclic; Submit runs a detection pass and rejects the batch once a cycle
// is present, since a cycle would deadlock every operation on it.
func (q *Queue) AddDependency(dependent, prerequisite *Operation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	logErr := func(err error) error {
		q.errLogs = append(q.errLogs, &systemError{AddDependency, err})
		q.reportError(err)
		return err
	}

	if q.closed {
		return logErr(ErrQueueShutdown)
	}
	if dependent == nil || prerequisite == nil {
		return logErr(ErrNilOperation)
	}
	if utils.IsEmptyString(dependent.ID()) || utils.IsEmptyString(prerequisite.ID()) {
		return logErr(fmt.Errorf("%w: empty operation id", ErrNilOperation))
	}
	if dependent == prerequisite || dependent.ID() == prerequisite.ID() {
		return logErr(ErrSelfDependency)
	}
	// A dispatched dependent can still read as Ready for a moment (and
	// indefinitely under Suspend); a new edge could no longer gate it, so
	// reject before any side effect.
	if st, ok := q.states[dependent.ID()]; ok && st.op == dependent && st.dispatched {
		return logErr(fmt.Errorf("operation %s: %w: already selected for dispatch", dependent.ID(), ErrOperationNotReady))
	}
	if err := q.registerLocked(dependent); err != nil {
		return logErr(err)
	}
	if err := q.registerLocked(prerequisite); err != nil {
		return logErr(err)
	}
	if edgeExists(q.edges, prerequisite.ID(), dependent.ID()) {
		return logErr(fmt.Errorf("%w: %s -> %s", ErrDuplicateDependency, prerequisite.ID(), dependent.ID()))
	}
	if err := dependent.addDependency(prerequisite); err != nil {
		return logErr(fmt.Errorf("operation %s: %w", dependent.ID(), err))
	}
	q.edges = append(q.edges, &edge{prereqID: prerequisite.ID(), dependentID: dependent.ID()})

	// A dependent that is already submitted and waiting picks the new
	// prerequisite up here; dispatched dependents were rejected up front.
	if st, ok := q.states[dependent.ID()]; ok && !prerequisite.IsFinished() {
		st.pending[prerequisite.ID()] = struct{}{}
	}
	return nil
}

// Submit hands a batch of operations to the scheduler. Order within the
// batch is irrelevant: dispatch is driven solely by dependency completion.
// Operations whose prerequisites are all Finished (and operations already
// cancelled, which drain through the Start short-circuit regardless of
// their dependency status) are dispatched immediately; the rest wait for
// their prerequisites' completion notifications.
//
// The batch is validated as a whole before any operation is admitted: a nil
// entry, a duplicate submission, an id collision, or a dependency cycle
// rejects the entire batch. Prerequisites that are only registered, never
// submitted, still gate their dependents; they unblock them when something
// drives them to Finished (typically Cancel).
//
// When waitUntilFinished is true, Submit blocks until every operation in
// the batch reaches Finished or ctx fires, and returns ctx's error in the
// latter case. When false, Submit returns as soon as the batch is admitted.
func (q *Queue) Submit(ctx context.Context, operations []*Operation, waitUntilFinished bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := q.admit(ctx, operations); err != nil {
		return err
	}
	if waitUntilFinished {
		return WaitForOperations(ctx, operations...)
	}
	return nil
}

// Enqueue submits a single operation without waiting. See Submit.
func (q *Queue) Enqueue(ctx context.Context, op *Operation) error {
	return q.Submit(ctx, []*Operation{op}, false)
}

// admit validates and registers a batch under the queue lock, dispatching
// whatever is immediately eligible.
func (q *Queue) admit(ctx context.Context, operations []*Operation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	logErr := func(err error) error {
		q.errLogs = append(q.errLogs, &systemError{Submit, err})
		q.reportError(err)
		return err
	}

	if q.closed {
		return logErr(ErrQueueShutdown)
	}
	if len(operations) == 0 {
		return nil
	}

	// Validation pass: the whole batch is rejected before any admission
	// side effect happens.
	seen := make(map[string]bool, len(operations))
	for _, op := range operations {
		if op == nil {
			return logErr(ErrNilOperation)
		}
		id := op.ID()
		if utils.IsEmptyString(id) {
			return logErr(fmt.Errorf("%w: empty operation id", ErrNilOperation))
		}
		if seen[id] || q.submitted[id] {
			return logErr(fmt.Errorf("%w: %s", ErrDuplicateOperation, id))
		}
		if existing, ok := q.ops[id]; ok && existing != op {
			return logErr(fmt.Errorf("%w: %s", ErrDuplicateID, id))
		}
		seen[id] = true
	}
	if q.detectCycleLocked() {
		return logErr(ErrCycleDetected)
	}

	// Admission pass.
	for _, op := range operations {
		if err := q.registerLocked(op); err != nil {
			return logErr(err)
		}
		id := op.ID()
		q.submitted[id] = true
		atomic.AddInt64(&q.submittedCount, 1)

		if _, live := q.ops[id]; !live {
			// Absent from the registry right after registration means the
			// operation is already Finished (e.g. cancelled before submission
			// with the default completion path). Its terminal notification
			// cannot reach the queue anymore, so progress is settled here.
			// A live entry, even one racing toward Finished, is counted by
			// the observer hook instead.
			atomic.AddInt64(&q.completedCount, 1)
			continue
		}

		st := &opState{op: op, ctx: ctx, pending: make(map[string]struct{})}
		for _, dep := range op.Dependencies() {
			if !dep.IsFinished() {
				st.pending[dep.ID()] = struct{}{}
			}
		}
		q.states[id] = st

		// A cancelled operation is always eligible to drain immediately,
		// regardless of dependency status: its Start short-circuits.
		if op.IsCancelled() || len(st.pending) == 0 {
			q.dispatchLocked(st)
		}
	}
	return nil
}

// WaitForOperations blocks until every given operation reaches Finished, or
// ctx fires — in which case it returns ctx's error. nil entries are
// skipped. It works for any operation, whether or not a queue manages it.
func WaitForOperations(ctx context.Context, operations ...*Operation) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for _, op := range operations {
		if op == nil {
			continue
		}
		done := op.Done()
		eg.Go(func() error {
			select {
			case <-done:
				return nil
			case <-egCtx.Done():
				return egCtx.Err()
			}
		})
	}
	return eg.Wait()
}

// CancelAll cancels every live registered operation. Cancellation is
// cooperative: operations already Executing keep running until their work
// body notices the flag (or finishes regardless); everything not yet
// dispatched drains through the Start short-circuit. Operations whose task
// defers cancellation completion are dispatched right away rather than left
// parked behind unfinished prerequisites.
//
// After Shutdown there is no dispatcher left to drain through, so the call
// is rejected and recorded in the error log.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	if q.closed {
		err := fmt.Errorf("%w: cancel-all rejected", ErrQueueShutdown)
		q.errLogs = append(q.errLogs, &systemError{CancelAll, err})
		q.reportError(err)
		q.mu.Unlock()
		return
	}
	ops := make([]*Operation, 0, len(q.ops))
	for _, op := range q.ops {
		ops = append(ops, op)
	}
	q.mu.Unlock()

	// Cancel outside the lock: the default completion path reenters the
	// queue through the observer hook.
	for _, op := range ops {
		op.Cancel()
	}

	// Whatever is still live and undispatched here deferred its cancellation
	// completion. Hand it to the pool now; Start drains it.
	q.mu.Lock()
	for _, st := range q.states {
		if !st.dispatched && st.op.IsCancelled() {
			q.dispatchLocked(st)
		}
	}
	q.mu.Unlock()
}

// Suspend gates dispatch: operations that become eligible while the queue
// is suspended are held back until Resume. Operations already handed to
// the worker pool are unaffected.
func (q *Queue) Suspend() {
	q.mu.Lock()
	q.suspended = true
	q.mu.Unlock()
}

// Resume lifts a previous Suspend and dispatches every held-back operation
// in the order it became eligible.
func (q *Queue) Resume() {
	q.mu.Lock()
	q.suspended = false
	jobs := q.held
	q.held = nil
	q.mu.Unlock()
	q.enqueueDispatch(jobs...)
}

// IsSuspended reports whether dispatch is currently gated by Suspend.
func (q *Queue) IsSuspended() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.suspended
}

// OperationCount returns the number of live registered operations, i.e.
// registered and not yet Finished.
func (q *Queue) OperationCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.ops)
}

// Progress returns the completion ratio of submitted operations in
// [0.0, 1.0].
//
// NOTE: submittedCount and completedCount are read in two separate atomic
// operations; they do not form an atomic pair. completedCount may be
// incremented between the two reads, making the returned ratio momentarily
// slightly ahead of reality. This is acceptable for progress-bar or
// observability purposes, but must NOT be used for correctness decisions
// (e.g. deciding whether a batch has drained — use Submit's wait or
// WaitForOperations for that).
func (q *Queue) Progress() float64 {
	submitted := atomic.LoadInt64(&q.submittedCount)
	if submitted == 0 {
		return 0.0
	}
	completed := atomic.LoadInt64(&q.completedCount)
	return float64(completed) / float64(submitted)
}

// DetectCycle reports whether the declared dependency edges currently
// contain a directed cycle. Submit runs the same check and rejects batches
// while a cycle is present; this is the standalone variant for callers who
// want to validate earlier.
func (q *Queue) DetectCycle() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.detectCycleLocked()
}

// detectCycleLocked runs a colouring DFS over the edge set. Caller must
// hold q.mu in any mode.
func (q *Queue) detectCycleLocked() bool {
	adjacency := make(map[string][]string, len(q.edges))
	for _, e := range q.edges {
		adjacency[e.prereqID] = append(adjacency[e.prereqID], e.dependentID)
	}

	visited := make(map[string]bool, len(adjacency))
	inStack := make(map[string]bool, len(adjacency))

	var visit func(id string) bool
	visit = func(id string) bool {
		if inStack[id] {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		inStack[id] = true
		for _, next := range adjacency[id] {
			if visit(next) {
				return true
			}
		}
		inStack[id] = false
		return false
	}

	for id := range adjacency {
		if !visited[id] && visit(id) {
			return true
		}
	}
	return false
}

// CollectErrors drains the Errors channel until it is empty, or until
// QueueConfig.ErrorDrainTimeout (default 5 s) or ctx fires — whichever is
// first. Once the channel has been closed by Shutdown it returns as soon as
// the remaining buffered errors are consumed.
func (q *Queue) CollectErrors(ctx context.Context) []error {
	var errs []error

	drainTimeout := q.Config.ErrorDrainTimeout
	if drainTimeout <= 0 {
		//nolint:mnd // 5 s safe fallback when ErrorDrainTimeout was not set.
		drainTimeout = 5 * time.Second
	}
	timeout := time.After(drainTimeout)
	ch := q.Errors.GetChannel()

	for {
		select {
		case err, ok := <-ch:
			if !ok {
				return errs
			}
			errs = append(errs, err)
		case <-timeout:
			return errs
		case <-ctx.Done():
			return errs
		default:
			if len(errs) > 0 {
				// Wait briefly for any in-flight errors before declaring done.
				select {
				case err, ok := <-ch:
					if !ok {
						return errs
					}
					errs = append(errs, err)
				case <-time.After(100 * time.Millisecond): //nolint:mnd
					return errs
				}
			} else {
				//nolint:mnd // short poll sleep before concluding the channel is idle
				time.Sleep(10 * time.Millisecond)
			}
		}
	}
}

// ErrorLog returns a snapshot of the errors recorded by queue operations
// (validation failures, rejected submissions), oldest first.
func (q *Queue) ErrorLog() []error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]error, 0, len(q.errLogs))
	for _, se := range q.errLogs {
		out = append(out, se.reason)
	}
	return out
}

// Shutdown stops the dispatcher, drains the worker pool, and closes the
// Events and Errors channels. Safe to call more than once. Submit and
// AddDependency fail with ErrQueueShutdown afterwards. Operations already
// handed to the pool run to completion first; operations still waiting on
// prerequisites are left untouched (cancel them first if the intent is to
// drain: CancelAll followed by Shutdown).
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	// Stop the dispatcher feed, let it drain, then drain the pool.
	q.readyMu.Lock()
	q.readyClosed = true
	q.readyCond.Broadcast()
	q.readyMu.Unlock()
	<-q.dispatcherExit

	q.pool.close()
	q.closeChannels()
}

// closeChannels safely closes the queue's aggregation channels. Close
// failures go to the error log: the Errors channel is going away right
// here, so there is nowhere else to report them.
func (q *Queue) closeChannels() {
	if q.Events != nil {
		if err := q.Events.Close(); err != nil {
			q.recordShutdownError(fmt.Errorf("events channel: %w", err))
		}
	}
	if q.Errors != nil {
		if err := q.Errors.Close(); err != nil {
			q.recordShutdownError(fmt.Errorf("errors channel: %w", err))
		}
	}
}

// recordShutdownError captures a teardown failure in the error log.
func (q *Queue) recordShutdownError(err error) {
	q.mu.Lock()
	q.errLogs = append(q.errLogs, &systemError{Shutdown, err})
	q.mu.Unlock()
	Log.WithField("queue_id", q.ID).WithError(err).Warn("shutdown cleanup failure")
}
