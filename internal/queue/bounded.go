// Package queue provides the fixed-capacity FIFO that holds pending tasks
// for the worker pool.
//
// Bounded is not safe for concurrent use: every call must be
// made while the owning pool's mutex is held. None of its operations block.
package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCapacity is returned when a queue is created with capacity < 1.
	ErrInvalidCapacity = errors.New("queue capacity must be >= 1")

	// ErrAllocation is returned when the backing ring cannot be allocated.
	ErrAllocation = errors.New("queue allocation failed")
)

// Bounded is a FIFO ring buffer with a capacity fixed at construction.
//
// Items leave in exactly the order they were pushed. The ring never grows
// and never reallocates, so Push fails instead of resizing.
type Bounded[T any] struct {
	ring  []T
	head  int // index of the oldest item
	count int // number of items currently stored
}

// NewBounded creates a queue that holds at most capacity items.
func NewBounded[T any](capacity int) (q *Bounded[T], err error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}

	defer func() {
		if r := recover(); r != nil {
			q, err = nil, fmt.Errorf("%w: capacity %d: %v", ErrAllocation, capacity, r)
		}
	}()

	return &Bounded[T]{ring: make([]T, capacity)}, nil
}

// Push appends v to the tail. It reports false, leaving the queue
// untouched, when the queue is already full.
func (q *Bounded[T]) Push(v T) bool {
	if q.count == len(q.ring) {
		return false
	}
	q.ring[q.index(q.count)] = v
	q.count++
	return true
}

// Pop removes and returns the head. ok is false when the queue is empty.
func (q *Bounded[T]) Pop() (v T, ok bool) {
	if q.count == 0 {
		return v, false
	}

	var zero T
	v = q.ring[q.head]
	q.ring[q.head] = zero // let the GC reclaim the popped item
	q.head = q.index(1)
	q.count--
	if q.count == 0 {
		q.head = 0
	}
	return v, true
}

// Peek returns the head without removing it.
func (q *Bounded[T]) Peek() (v T, ok bool) {
	if q.count == 0 {
		return v, false
	}
	return q.ring[q.head], true
}

// Len returns the number of pending items.
func (q *Bounded[T]) Len() int { return q.count }

// Cap returns the fixed capacity.
func (q *Bounded[T]) Cap() int { return len(q.ring) }

// IsEmpty reports whether the queue holds no items.
func (q *Bounded[T]) IsEmpty() bool { return q.count == 0 }

// IsFull reports whether a Push would fail.
func (q *Bounded[T]) IsFull() bool { return q.count == len(q.ring) }

// Clear removes every pending item in FIFO order, handing each one to drop
// when drop is non-nil. It returns the number of items removed.
func (q *Bounded[T]) Clear(drop func(T)) int {
	n := q.count
	for {
		v, ok := q.Pop()
		if !ok {
			break
		}
		if drop != nil {
			drop(v)
		}
	}
	return n
}

// index maps a logical offset from head onto the ring.
func (q *Bounded[T]) index(offset int) int {
	return (q.head + offset) % len(q.ring)
}
