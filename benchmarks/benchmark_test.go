package benchmarks

import (
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/utkarsh5026/batchpool/pool"
)

// =============================================================================
// Throughput Benchmarks - Core Performance Metrics
// =============================================================================

func BenchmarkComprehensive_ThroughputWorkerScaling(b *testing.B) {
	workerCounts := []int{1, 2, 4, 8, 16, 32}
	taskCount := 10000

	for _, workers := range workerCounts {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			processFunc := cpuBoundWork(100)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				runFreshPool(b, workers, taskCount, processFunc)
			}
			b.StopTimer()

			tasksPerSec := reportThroughput(b, taskCount)
			b.ReportMetric(tasksPerSec/float64(workers), "tasks/sec/worker")
		})
	}
}

func BenchmarkComprehensive_ThroughputLoadScaling(b *testing.B) {
	taskCounts := []int{100, 1000, 10000, 100000}
	workers := 8

	for _, taskCount := range taskCounts {
		b.Run(fmt.Sprintf("tasks_%d", taskCount), func(b *testing.B) {
			processFunc := cpuBoundWork(100)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				runFreshPool(b, workers, taskCount, processFunc)
			}
			b.StopTimer()

			reportThroughput(b, taskCount)
		})
	}
}

func BenchmarkComprehensive_ThroughputQueueCapacity(b *testing.B) {
	capacities := []int{1, 8, 64, 512, 4096}
	workers := 8
	taskCount := 10000

	for _, capacity := range capacities {
		b.Run(fmt.Sprintf("queue_%d", capacity), func(b *testing.B) {
			processFunc := cpuBoundWork(100)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				runFreshPool(b, workers, taskCount, processFunc, pool.WithQueueCapacity(capacity))
			}
			b.StopTimer()

			reportThroughput(b, taskCount)
		})
	}
}

// =============================================================================
// Configuration Comparison Benchmarks
// =============================================================================

func BenchmarkComprehensive_Configurations(b *testing.B) {
	workers := runtime.GOMAXPROCS(0)
	taskCount := 10000

	for _, cfg := range getPoolConfigs() {
		b.Run(cfg.name, func(b *testing.B) {
			processFunc := cpuBoundWork(1000)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				runFreshPool(b, workers, taskCount, processFunc, cfg.opts...)
			}
			b.StopTimer()

			reportThroughput(b, taskCount)
		})
	}
}

// =============================================================================
// Batch Reuse Benchmarks
// =============================================================================

func BenchmarkComprehensive_ResetVersusNewPool(b *testing.B) {
	workers := 8
	taskCount := 1000
	processFunc := cpuBoundWork(100)

	b.Run("NewPool", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			runFreshPool(b, workers, taskCount, processFunc)
		}
		reportThroughput(b, taskCount)
	})

	b.Run("Reset", func(b *testing.B) {
		p, err := pool.NewWorkerPool[int](workers, taskCount)
		if err != nil {
			b.Fatal(err)
		}

		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			if i > 0 {
				if err := p.Reset(taskCount); err != nil {
					b.Fatal(err)
				}
			}
			runBatch(b, p, taskCount, processFunc)
		}
		b.StopTimer()

		reportThroughput(b, taskCount)
		if err := p.Destroy(); err != nil {
			b.Fatal(err)
		}
	})
}

// =============================================================================
// Workload Type Benchmarks
// =============================================================================

func BenchmarkComprehensive_WorkloadCPU(b *testing.B) {
	workers := runtime.GOMAXPROCS(0)
	taskCount := 1000

	for i := 0; i < b.N; i++ {
		runFreshPool(b, workers, taskCount, cpuBoundWork(10000))
	}
	reportThroughput(b, taskCount)
}

func BenchmarkComprehensive_WorkloadIO(b *testing.B) {
	workers := 32
	taskCount := 200

	for i := 0; i < b.N; i++ {
		runFreshPool(b, workers, taskCount, ioBoundWork(time.Millisecond))
	}
	reportThroughput(b, taskCount)
}

func BenchmarkComprehensive_WorkloadMixed(b *testing.B) {
	workers := 16
	taskCount := 200

	for i := 0; i < b.N; i++ {
		runFreshPool(b, workers, taskCount, mixedWork())
	}
	reportThroughput(b, taskCount)
}

// =============================================================================
// Submission Contention Benchmarks
// =============================================================================

func BenchmarkComprehensive_ConcurrentProducers(b *testing.B) {
	producerCounts := []int{1, 4, 16}
	workers := 8
	perProducer := 1000

	for _, producers := range producerCounts {
		b.Run(fmt.Sprintf("producers_%d", producers), func(b *testing.B) {
			taskCount := producers * perProducer
			processFunc := cpuBoundWork(100)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				p, err := pool.NewWorkerPool[int](workers, taskCount, pool.WithQueueCapacity(64))
				if err != nil {
					b.Fatal(err)
				}

				errs := make(chan error, producers)
				for w := range producers {
					go func() {
						for j := range perProducer {
							task, err := pool.NewTask(processFunc, w*perProducer+j, nil)
							if err == nil {
								err = p.Submit(task)
							}
							if err != nil {
								errs <- err
								return
							}
						}
						errs <- nil
					}()
				}
				for range producers {
					if err := <-errs; err != nil {
						b.Fatal(err)
					}
				}
				if _, err := p.Await(); err != nil {
					b.Fatal(err)
				}
				if err := p.Destroy(); err != nil {
					b.Fatal(err)
				}
			}
			b.StopTimer()

			reportThroughput(b, taskCount)
		})
	}
}
