package pool

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/batchpool/internal/queue"
)

const tracerName = "github.com/utkarsh5026/batchpool/pool"

// WorkerPool runs batches of tasks on a fixed set of worker goroutines.
//
// A batch is declared up front: the pool expects exactly declared tasks and
// terminates when that many have completed. Producers hand tasks over with
// Submit, which blocks while the bounded queue is full. A coordinator collects
// the results with Await, and may then Reset the pool for another batch or
// Destroy it.
//
// All shared state (queue, counters, results, state) is guarded by one mutex
// with three conditions on it: queue-not-empty for workers, slot-available for
// producers and all-done for the coordinator.
//
// Type parameters:
//   - R: The result type produced by every task of the pool
type WorkerPool[R any] struct {
	id      string
	threads int

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	allDone  *sync.Cond

	queue     *queue.Bounded[*Task[R]]
	results   []Result[R]
	declared  int
	submitted int
	completed int
	state     State
	batch     string
	workers   *errgroup.Group

	// lifecycle serialises Await, Join and Reset. Destroy only needs mu.
	lifecycle sync.Mutex

	submissionOrder bool
	rateLimiter     *rate.Limiter
	pinWorkers      bool
	beforeTaskStart func(worker, index int)
	onTaskEnd       func(Result[R])
	logger          *slog.Logger
	metrics         *poolMetrics
	tracer          trace.Tracer
}

// NewWorkerPool creates a pool with threads workers expecting a batch of
// declared tasks, and starts the workers immediately.
//
// Both counts must be >= 1, otherwise ErrInvalidConfiguration is returned.
// A declared count or queue capacity that cannot be allocated yields
// ErrAllocation.
//
// Example:
//
//	p, err := NewWorkerPool[int](4, len(inputs), WithQueueCapacity(32))
//	if err != nil {
//	    return err
//	}
//	for _, in := range inputs {
//	    task, _ := NewTask(square, in, nil)
//	    if err := p.Submit(task); err != nil {
//	        return err
//	    }
//	}
//	results, err := p.Await()
func NewWorkerPool[R any](threads, declared int, opts ...WorkerPoolOption) (*WorkerPool[R], error) {
	if threads < 1 {
		return nil, fmt.Errorf("%w: thread count must be >= 1, got %d", ErrInvalidConfiguration, threads)
	}
	if err := checkDeclared(declared); err != nil {
		return nil, err
	}

	cfg := &workerPoolConfig{
		queueCapacity: DefaultQueueCapacity,
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.errs) > 0 {
		return nil, joinErrors(cfg.errs)
	}

	onTaskEnd, err := resolveOnTaskEnd[R](cfg)
	if err != nil {
		return nil, err
	}

	q, err := queue.NewBounded[*Task[R]](cfg.queueCapacity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocation, err)
	}
	results, err := allocate[Result[R]](declared)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	metrics, err := newPoolMetrics(cfg.registerer, cfg.metricsName)
	if err != nil {
		return nil, fmt.Errorf("%w: register metrics: %w", ErrInvalidConfiguration, err)
	}

	tp := cfg.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	p := &WorkerPool[R]{
		id:              id,
		threads:         threads,
		queue:           q,
		results:         results,
		declared:        declared,
		state:           StateRunning,
		batch:           uuid.NewString(),
		submissionOrder: cfg.submissionOrder,
		rateLimiter:     cfg.rateLimiter,
		pinWorkers:      cfg.pinWorkers,
		beforeTaskStart: cfg.beforeTaskStart,
		onTaskEnd:       onTaskEnd,
		logger:          cfg.logger.With("pool_id", id),
		metrics:         metrics,
		tracer:          tp.Tracer(tracerName),
	}
	p.notEmpty = sync.NewCond(&p.mu)
	p.notFull = sync.NewCond(&p.mu)
	p.allDone = sync.NewCond(&p.mu)

	p.spawn()
	p.logger.Info("worker pool started",
		"batch", p.batch, "workers", threads, "declared", declared, "queue_capacity", q.Cap())

	return p, nil
}

// Submit hands task to the pool. If the queue is full, Submit blocks until a
// worker frees a slot or the batch terminates.
//
// Errors:
//   - ErrInvalidArgument: task is nil or was already submitted
//   - ErrInvalidState: the batch has terminated, the workers were joined, the
//     pool was destroyed, or (with WithSubmissionOrder) the batch already holds
//     its declared number of tasks
func (p *WorkerPool[R]) Submit(task *Task[R]) error {
	if task == nil {
		return fmt.Errorf("%w: nil task", ErrInvalidArgument)
	}

	start := time.Now()
	p.mu.Lock()
	if err := p.acceptingLocked(); err != nil {
		p.mu.Unlock()
		return err
	}
	if !task.claimed.CompareAndSwap(false, true) {
		p.mu.Unlock()
		return fmt.Errorf("%w: task already submitted", ErrInvalidArgument)
	}

	batch := p.batch
	for p.queue.IsFull() {
		debugLog("submit blocked: queue full (%d)", p.queue.Cap())
		p.notFull.Wait()
		err := p.acceptingLocked()
		if err == nil && p.batch != batch {
			err = fmt.Errorf("%w: batch %s ended while waiting for a queue slot", ErrInvalidState, batch)
		}
		if err != nil {
			task.claimed.Store(false)
			p.mu.Unlock()
			return err
		}
	}

	task.index = p.submitted
	p.submitted++
	p.queue.Push(task)
	depth := p.queue.Len()
	p.mu.Unlock()

	p.notEmpty.Signal()
	p.metrics.taskSubmitted(depth, time.Since(start))
	debugLog("submitted task %d, depth %d", task.index, depth)
	return nil
}

// acceptingLocked reports why the pool cannot take another task right now.
func (p *WorkerPool[R]) acceptingLocked() error {
	switch p.state {
	case StateRunning:
	case StateTerminated:
		return fmt.Errorf("%w: batch %s already terminated", ErrInvalidState, p.batch)
	case StateJoined:
		return fmt.Errorf("%w: workers joined, call Reset before submitting", ErrInvalidState)
	default:
		return fmt.Errorf("%w: pool %s", ErrInvalidState, p.state)
	}

	if p.submissionOrder && p.submitted >= p.declared {
		return fmt.Errorf("%w: batch already holds its %d declared tasks", ErrInvalidState, p.declared)
	}
	return nil
}

// Await blocks until the batch terminates, reaps every worker and returns the
// results container. Results sit in completion order unless the pool was
// built with WithSubmissionOrder; Result.Index always carries the submission
// sequence number.
//
// A second call returns ErrAlreadyJoined until the pool is Reset.
func (p *WorkerPool[R]) Await() ([]Result[R], error) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	if err := p.joinableLocked(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	for p.state == StateRunning {
		p.allDone.Wait()
	}
	// Wake any worker still parked on an empty queue so it sees termination.
	p.notEmpty.Broadcast()
	workers := p.workers
	p.mu.Unlock()

	return p.reap(workers)
}

// Join reaps every worker without first waiting for the batch to terminate.
// It is meant for callers that already know the batch is done. Calling it
// while the batch can still receive tasks blocks until the remaining declared
// tasks complete; if they are never submitted, Join never returns.
func (p *WorkerPool[R]) Join() ([]Result[R], error) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	if err := p.joinableLocked(); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	workers := p.workers
	p.mu.Unlock()

	return p.reap(workers)
}

func (p *WorkerPool[R]) joinableLocked() error {
	switch p.state {
	case StateJoined:
		return ErrAlreadyJoined
	case StateDestroyed:
		return fmt.Errorf("%w: pool destroyed", ErrInvalidState)
	}
	return nil
}

// reap waits for the current worker generation and marks the pool joined.
func (p *WorkerPool[R]) reap(workers *errgroup.Group) ([]Result[R], error) {
	if err := workers.Wait(); err != nil {
		p.logger.Error("worker exited with error", "error", err)
	}

	p.mu.Lock()
	p.state = StateJoined
	results := p.results
	completed := p.completed
	batch := p.batch
	p.mu.Unlock()

	p.logger.Info("workers joined", "batch", batch, "completed", completed)
	return results, nil
}

// Reset prepares the pool for a new batch of declared tasks. It is valid once
// the current batch has terminated, whether or not the workers were joined.
//
// Reset drops every task still queued, zeroes the counters, allocates a new
// results container (results returned earlier stay valid) and starts a fresh
// set of workers, so the pool is fully usable again afterwards.
//
// Errors:
//   - ErrInvalidConfiguration: declared < 1
//   - ErrAllocation: declared exceeds MaxDeclaredTasks
//   - ErrNotYetTerminated: the current batch is still running
//   - ErrInvalidState: the pool was destroyed
func (p *WorkerPool[R]) Reset(declared int) error {
	if err := checkDeclared(declared); err != nil {
		return err
	}

	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	switch p.state {
	case StateRunning:
		completed, want := p.completed, p.declared
		p.mu.Unlock()
		return fmt.Errorf("%w: %d of %d tasks completed", ErrNotYetTerminated, completed, want)
	case StateDestroyed:
		p.mu.Unlock()
		return fmt.Errorf("%w: pool destroyed", ErrInvalidState)
	case StateTerminated:
		// The old workers are on their way out; reap them before spawning a
		// new generation so two generations never share the queue.
		p.notEmpty.Broadcast()
		workers := p.workers
		p.mu.Unlock()
		if err := workers.Wait(); err != nil {
			p.logger.Error("worker exited with error", "error", err)
		}
		p.mu.Lock()
	}

	results, err := allocate[Result[R]](declared)
	if err != nil {
		p.mu.Unlock()
		return err
	}

	pending := p.drainLocked()
	p.results = results
	p.declared = declared
	p.submitted = 0
	p.completed = 0
	p.state = StateRunning
	p.batch = uuid.NewString()
	p.spawn()
	batch := p.batch
	p.mu.Unlock()

	discarded := discard(pending, p.logger)
	p.metrics.tasksDiscarded(discarded)
	p.logger.Info("worker pool reset", "batch", batch, "declared", declared, "discarded", discarded)
	return nil
}

// Size returns the number of workers.
func (p *WorkerPool[R]) Size() int {
	return p.threads
}

// State returns the pool's current lifecycle state.
func (p *WorkerPool[R]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Stats returns a consistent snapshot of the pool's counters.
func (p *WorkerPool[R]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		ID:            p.id,
		Batch:         p.batch,
		State:         p.state,
		Workers:       p.threads,
		Declared:      p.declared,
		Submitted:     p.submitted,
		Completed:     p.completed,
		Queued:        p.queue.Len(),
		QueueCapacity: p.queue.Cap(),
	}
}

// Destroy tears the pool down: tasks still queued are dropped without
// running, the results container is released and the pool's metrics are
// unregistered. The workers must have been joined first; Destroy on a pool
// with live workers returns ErrInvalidState and changes nothing.
func (p *WorkerPool[R]) Destroy() error {
	p.mu.Lock()
	switch p.state {
	case StateRunning, StateTerminated:
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("%w: workers still live (%s), call Await or Join first", ErrInvalidState, state)
	case StateDestroyed:
		p.mu.Unlock()
		return fmt.Errorf("%w: pool already destroyed", ErrInvalidState)
	}

	pending := p.drainLocked()
	p.results = nil
	p.state = StateDestroyed
	p.mu.Unlock()

	discarded := discard(pending, p.logger)
	p.metrics.tasksDiscarded(discarded)
	p.metrics.release()
	p.logger.Info("worker pool destroyed", "discarded", discarded)
	return nil
}

// drainLocked empties the queue and returns the tasks so they can be dropped
// after the mutex is released; drop funcs are user code.
func (p *WorkerPool[R]) drainLocked() []*Task[R] {
	pending := make([]*Task[R], 0, p.queue.Len())
	p.queue.Clear(func(t *Task[R]) {
		pending = append(pending, t)
	})
	return pending
}

// discard releases tasks that will never run and returns how many there were.
func discard[R any](tasks []*Task[R], logger *slog.Logger) int {
	for _, t := range tasks {
		if err := t.release(); err != nil {
			logger.Warn("dropping pending task failed", "index", t.index, "error", err)
		}
	}
	return len(tasks)
}

func checkDeclared(declared int) error {
	if declared < 1 {
		return fmt.Errorf("%w: declared task count must be >= 1, got %d", ErrInvalidConfiguration, declared)
	}
	if declared > MaxDeclaredTasks {
		return fmt.Errorf("%w: declared task count %d exceeds %d", ErrAllocation, declared, MaxDeclaredTasks)
	}
	return nil
}
