// Package pool provides a batch-oriented worker pool: a fixed set of worker
// goroutines consuming tasks from a bounded FIFO queue and reporting when a
// declared number of tasks has completed.
//
// The primary type is WorkerPool[R], where R is the result type of every
// task the pool runs. Tasks are built with NewTask, which binds a work
// function to its argument and an optional drop for that argument.
//
// # Basic Usage
//
//	p, err := pool.NewWorkerPool[int](4, 100)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for i := range 100 {
//	    task, _ := pool.NewTask(func(n int) int { return n * n }, i, nil)
//	    if err := p.Submit(task); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//	results, err := p.Await()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = p.Destroy()
//
// # Batches
//
// A pool is created for a batch of declared tasks. When the declared number
// has completed the batch terminates: workers exit and Await returns. Reset
// starts a new batch on the same pool with a fresh generation of workers.
//
//	Running ─▶ Terminated ─▶ Joined ─▶ Destroyed
//	   ▲            │           │
//	   └── Reset ───┴───────────┘
//
// Operations outside their valid state return ErrInvalidState,
// ErrNotYetTerminated or ErrAlreadyJoined instead of misbehaving.
//
// # Backpressure
//
// Submit blocks while the queue is full (WithQueueCapacity, default 100), so
// a fast producer can never run more than the queue capacity ahead of the
// workers.
//
// # Result Order
//
// By default results[i] is the i-th task to complete, which is not
// necessarily the i-th task submitted. Every Result carries its submission
// Index, so callers can re-sort; WithSubmissionOrder stores results at their
// submission index instead.
//
// # Task Ownership
//
// The argument bound into a task belongs to the task. The work function may
// use it only while it runs; the drop function, if any, is called by the pool
// exactly once, after the work function returns, or when Reset or Destroy
// discards a task that never ran.
//
// # Failures
//
// The pool has no notion of a failed task: a work function that can fail
// encodes that in its result. A panicking work function is recovered and
// reported in Result.Err (wrapping ErrTaskPanic); it still counts as
// completed.
//
// # Configuration Options
//
//   - WithQueueCapacity(n): Bounded queue size
//   - WithSubmissionOrder(): Store results by submission index
//   - WithRateLimit(perSecond, burst): Throttle task starts across the pool
//   - WithCPUAffinity(): Pin each worker to its own core
//   - WithLogger(l): Lifecycle logging through log/slog
//   - WithMetrics(reg, name): Prometheus collectors
//   - WithTracerProvider(tp): One OpenTelemetry span per task
//   - WithBeforeTaskStart(fn), WithOnTaskEnd(fn): Per-task hooks
package pool
