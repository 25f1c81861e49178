package benchmarks

import (
	"testing"
	"time"

	"github.com/utkarsh5026/batchpool/pool"
)

// poolConfig defines a benchmark configuration for a pool setup
type poolConfig struct {
	name string
	opts []pool.WorkerPoolOption
}

// getPoolConfigs returns the pool setups compared by the benchmarks
func getPoolConfigs() []poolConfig {
	return []poolConfig{
		{name: "Default"},
		{name: "SmallQueue", opts: []pool.WorkerPoolOption{pool.WithQueueCapacity(4)}},
		{name: "LargeQueue", opts: []pool.WorkerPoolOption{pool.WithQueueCapacity(4096)}},
		{name: "SubmissionOrder", opts: []pool.WorkerPoolOption{pool.WithSubmissionOrder()}},
		{name: "Pinned", opts: []pool.WorkerPoolOption{pool.WithCPUAffinity()}},
	}
}

// cpuBoundWork simulates a CPU-intensive operation
func cpuBoundWork(iterations int) pool.WorkFunc[int, int] {
	return func(task int) int {
		result := 0
		for i := 0; i < iterations; i++ {
			result += i * task
		}
		return result
	}
}

// ioBoundWork simulates an I/O operation with a delay
func ioBoundWork(delay time.Duration) pool.WorkFunc[int, int] {
	return func(task int) int {
		time.Sleep(delay)
		return task * 2
	}
}

// mixedWork simulates a realistic workload with variable processing time
func mixedWork() pool.WorkFunc[int, int] {
	return func(task int) int {
		time.Sleep(time.Duration(task%10) * time.Millisecond)

		result := 0
		for i := 0; i < 1000; i++ {
			result += i
		}
		return result + task
	}
}

// runBatch submits taskCount tasks to p and waits for the batch.
func runBatch(b *testing.B, p *pool.WorkerPool[int], taskCount int, work pool.WorkFunc[int, int]) {
	b.Helper()
	for j := range taskCount {
		task, err := pool.NewTask(work, j, nil)
		if err != nil {
			b.Fatal(err)
		}
		if err := p.Submit(task); err != nil {
			b.Fatal(err)
		}
	}
	if _, err := p.Await(); err != nil {
		b.Fatal(err)
	}
}

// runFreshPool creates a pool, runs one batch on it and destroys it.
func runFreshPool(b *testing.B, workers, taskCount int, work pool.WorkFunc[int, int], opts ...pool.WorkerPoolOption) {
	b.Helper()
	p, err := pool.NewWorkerPool[int](workers, taskCount, opts...)
	if err != nil {
		b.Fatal(err)
	}
	runBatch(b, p, taskCount, work)
	if err := p.Destroy(); err != nil {
		b.Fatal(err)
	}
}

// reportThroughput reports tasks/sec for taskCount tasks per iteration.
func reportThroughput(b *testing.B, taskCount int) float64 {
	nsPerOp := float64(b.Elapsed().Nanoseconds()) / float64(b.N)
	tasksPerSec := (float64(taskCount) / nsPerOp) * 1e9
	b.ReportMetric(tasksPerSec, "tasks/sec")
	return tasksPerSec
}
