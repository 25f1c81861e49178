package pool

import (
	"testing"
	"time"
)

// tagged is a result carrying its own ordering key, the way clients that
// need submission order are expected to build them.
type tagged struct {
	Tag    int
	Square int
}

func square(n int) tagged {
	return tagged{Tag: n, Square: n * n}
}

func newPool[R any](t *testing.T, threads, declared int, opts ...WorkerPoolOption) *WorkerPool[R] {
	t.Helper()
	p, err := NewWorkerPool[R](threads, declared, opts...)
	if err != nil {
		t.Fatalf("NewWorkerPool(%d, %d) failed: %v", threads, declared, err)
	}
	return p
}

func submit[A any, R any](t *testing.T, p *WorkerPool[R], work WorkFunc[A, R], arg A, drop DropFunc[A]) *Task[R] {
	t.Helper()
	task, err := NewTask(work, arg, drop)
	if err != nil {
		t.Fatalf("NewTask failed: %v", err)
	}
	if err := p.Submit(task); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	return task
}

// awaitWithin fails the test if Await does not return within d.
func awaitWithin[R any](t *testing.T, p *WorkerPool[R], d time.Duration) []Result[R] {
	t.Helper()

	type outcome struct {
		results []Result[R]
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		results, err := p.Await()
		done <- outcome{results, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			t.Fatalf("Await failed: %v", o.err)
		}
		return o.results
	case <-time.After(d):
		t.Fatalf("Await did not return within %v (stats %+v)", d, p.Stats())
		return nil
	}
}

// waitForState polls until the pool reaches want or the deadline passes.
func waitForState[R any](t *testing.T, p *WorkerPool[R], want State, d time.Duration) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if p.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("pool did not reach state %s within %v, stuck in %s", want, d, p.State())
}

// returnsWithin reports whether fn returns within d.
func returnsWithin(fn func(), d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
