package pool

import "errors"

var (
	// ErrInvalidArgument is returned for a nil task, a task without a work
	// function, or a task that was already handed to a pool.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidConfiguration is returned when a pool is created or reset with
	// a thread count, declared task count or option value that cannot work.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNotYetTerminated is returned by Reset while the current batch still
	// has tasks outstanding.
	ErrNotYetTerminated = errors.New("batch not yet terminated")

	// ErrAlreadyJoined is returned by Await or Join once the workers of the
	// current batch have been reaped.
	ErrAlreadyJoined = errors.New("workers already joined")

	// ErrInvalidState is returned when an operation is not valid in the
	// pool's current lifecycle state.
	ErrInvalidState = errors.New("invalid pool state")

	// ErrAllocation is returned when the queue or the results container
	// cannot be allocated.
	ErrAllocation = errors.New("allocation failed")

	// ErrTaskPanic wraps the value recovered from a panicking work function.
	// It only ever appears in Result.Err.
	ErrTaskPanic = errors.New("task panicked")
)
