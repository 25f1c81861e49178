package pool

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// WorkFunc is the body of a task. It takes ownership of arg for the duration
// of the call and returns the task's result. It must not retain arg after it
// returns.
//
// A WorkFunc has no separate failure channel: a work function that can fail
// encodes its outcome in R.
type WorkFunc[A any, R any] func(arg A) R

// DropFunc releases whatever arg holds. The pool calls it exactly once, after
// the work function has returned, or when a task that never ran is discarded
// by Reset or Destroy.
type DropFunc[A any] func(arg A)

// Task is one unit of work: a work function bound to its argument plus an
// optional drop for the argument. The argument type is erased once the task
// is built, so a single pool can run tasks over different argument types as
// long as they produce the same result type.
//
// A Task may be submitted exactly once.
type Task[R any] struct {
	run  func() R
	drop func()

	claimed atomic.Bool
	index   int // submission sequence number, set under the pool mutex
}

// NewTask binds work to arg. drop may be nil, in which case the caller keeps
// responsibility for arg's lifetime (for example when arg points into storage
// the caller owns). NewTask never runs work.
//
// Example:
//
//	task, err := NewTask(func(n int) int { return n * n }, 7, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = p.Submit(task)
func NewTask[A any, R any](work WorkFunc[A, R], arg A, drop DropFunc[A]) (*Task[R], error) {
	if work == nil {
		return nil, fmt.Errorf("%w: task has no work function", ErrInvalidArgument)
	}

	t := &Task[R]{
		run: func() R { return work(arg) },
	}
	if drop != nil {
		t.drop = func() { drop(arg) }
	}
	return t, nil
}

// execute runs the work function, converting a panic into ErrTaskPanic with
// a stack trace so a misbehaving task cannot take its worker down.
func (t *Task[R]) execute() (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = fmt.Errorf("%w: %v\nstack trace:\n%s", ErrTaskPanic, r, buf[:n])
		}
	}()

	return t.run(), nil
}

// release runs the drop (at most once) and detaches the closures so the
// argument becomes unreachable. A panicking drop is reported, not propagated.
func (t *Task[R]) release() (err error) {
	drop := t.drop
	t.drop, t.run = nil, nil
	if drop == nil {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("drop panicked: %v", r)
		}
	}()
	drop()
	return nil
}

// Result is the outcome of one executed task.
//
// Fields:
//   - Value: what the work function returned (zero value if it panicked)
//   - Err: non-nil only when the work function panicked; wraps ErrTaskPanic
//   - Index: the task's submission sequence number within its batch
//   - Worker: the ID of the worker that ran the task
type Result[R any] struct {
	Value  R
	Err    error
	Index  int
	Worker int
}

// State is a pool's position in its lifecycle:
//
//	Running ──(declared tasks done)──▶ Terminated ──(Await/Join)──▶ Joined ──(Destroy)──▶ Destroyed
//	   ▲                                   │                           │
//	   └────────────────(Reset)────────────┴───────────────────────────┘
type State int32

const (
	// StateRunning accepts submissions; workers are live.
	StateRunning State = iota
	// StateTerminated means the declared number of tasks has completed.
	// Workers are exiting but have not been reaped.
	StateTerminated
	// StateJoined means every worker has been reaped by Await or Join.
	StateJoined
	// StateDestroyed is final.
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	case StateJoined:
		return "joined"
	case StateDestroyed:
		return "destroyed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Stats is a point-in-time snapshot of a pool, taken under its mutex.
type Stats struct {
	ID            string // stable for the pool's lifetime
	Batch         string // changes on every Reset
	State         State
	Workers       int
	Declared      int
	Submitted     int
	Completed     int
	Queued        int
	QueueCapacity int
}
