package pool

import (
	"testing"
	"time"
)

func TestRateLimit_SpacesTaskStarts(t *testing.T) {
	const n = 5
	p := newPool[int](t, 4, n, WithRateLimit(20, 1))

	start := time.Now()
	for i := range n {
		submit(t, p, func(i int) int { return i }, i, nil)
	}
	awaitWithin(t, p, 5*time.Second)
	elapsed := time.Since(start)

	// The first task uses the burst, the other four wait 50ms each.
	if elapsed < 150*time.Millisecond {
		t.Errorf("expected rate limiting to take at least 150ms, took %v", elapsed)
	}
}

func TestRateLimit_BurstRunsImmediately(t *testing.T) {
	const n = 4
	p := newPool[int](t, 4, n, WithRateLimit(1, n))

	start := time.Now()
	for i := range n {
		submit(t, p, func(i int) int { return i }, i, nil)
	}
	awaitWithin(t, p, 5*time.Second)

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("expected the burst to run without waiting, took %v", elapsed)
	}
}
