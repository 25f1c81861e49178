package pool

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestHooks_BeforeAndAfter(t *testing.T) {
	const n = 3
	var mu sync.Mutex
	events := []string{}

	p := newPool[string](t, 1, n,
		WithBeforeTaskStart(func(worker, index int) {
			mu.Lock()
			events = append(events, fmt.Sprintf("start:%d", index))
			mu.Unlock()
		}),
		WithOnTaskEnd(func(r Result[string]) {
			mu.Lock()
			events = append(events, fmt.Sprintf("end:%d:%s", r.Index, r.Value))
			mu.Unlock()
		}),
	)

	for i := range n {
		submit(t, p, func(i int) string {
			mu.Lock()
			events = append(events, fmt.Sprintf("work:%d", i))
			mu.Unlock()
			return fmt.Sprintf("result-%d", i)
		}, i, nil)
	}
	awaitWithin(t, p, 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	expected := []string{
		"start:0", "work:0", "end:0:result-0",
		"start:1", "work:1", "end:1:result-1",
		"start:2", "work:2", "end:2:result-2",
	}
	if len(events) != len(expected) {
		t.Fatalf("expected %d events, got %d: %v", len(expected), len(events), events)
	}
	for i, e := range expected {
		if events[i] != e {
			t.Errorf("event %d: expected %s, got %s", i, e, events[i])
		}
	}
}

func TestHooks_OnTaskEndSeesDroppedArgument(t *testing.T) {
	var mu sync.Mutex
	dropped := map[int]bool{}
	violations := 0

	p := newPool[int](t, 4, 20, WithOnTaskEnd(func(r Result[int]) {
		mu.Lock()
		if !dropped[r.Value] {
			violations++
		}
		mu.Unlock()
	}))

	for i := range 20 {
		submit(t, p, func(i int) int { return i }, i, func(i int) {
			mu.Lock()
			dropped[i] = true
			mu.Unlock()
		})
	}
	awaitWithin(t, p, 2*time.Second)

	if violations > 0 {
		t.Fatalf("OnTaskEnd ran before drop %d times", violations)
	}
}

func TestHooks_OnTaskEndReportsPanics(t *testing.T) {
	var mu sync.Mutex
	var failures []int

	p := newPool[int](t, 2, 4, WithOnTaskEnd(func(r Result[int]) {
		if r.Err != nil {
			mu.Lock()
			failures = append(failures, r.Index)
			mu.Unlock()
		}
	}))

	for i := range 4 {
		submit(t, p, func(i int) int {
			if i%2 == 1 {
				panic(fmt.Sprintf("task %d", i))
			}
			return i
		}, i, nil)
	}
	awaitWithin(t, p, 2*time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures reported, got %v", failures)
	}
}

func TestHooks_WorkerIDs(t *testing.T) {
	const threads = 4
	var mu sync.Mutex
	workers := map[int]bool{}

	gate := make(chan struct{})
	var ready sync.WaitGroup
	ready.Add(threads)

	p := newPool[int](t, threads, threads, WithBeforeTaskStart(func(worker, index int) {
		mu.Lock()
		workers[worker] = true
		mu.Unlock()
	}))

	// Every task waits for the others to start, so each worker runs exactly one.
	for i := range threads {
		submit(t, p, func(i int) int {
			ready.Done()
			<-gate
			return i
		}, i, nil)
	}
	ready.Wait()
	close(gate)
	awaitWithin(t, p, 2*time.Second)

	for id := range threads {
		if !workers[id] {
			t.Errorf("worker %d never ran a task, saw %v", id, workers)
		}
	}
}
