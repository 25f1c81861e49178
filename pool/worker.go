package pool

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/batchpool/internal/cpu"
)

// spawn starts a new generation of workers. The caller must either hold mu
// or be the only goroutine with access to the pool.
func (p *WorkerPool[R]) spawn() {
	g := new(errgroup.Group)
	for id := range p.threads {
		g.Go(func() error {
			p.worker(id)
			return nil
		})
	}
	p.workers = g
}

// worker is the loop run by every worker goroutine. It exits as soon as it
// observes that the batch is no longer running, even if tasks are still
// queued: those belong to no batch and are dropped by Reset or Destroy.
func (p *WorkerPool[R]) worker(id int) {
	if p.pinWorkers {
		release, err := cpu.Pin(id)
		defer release()
		if err != nil {
			p.logger.Warn("cpu pinning failed", "worker", id, "error", err)
		}
	}

	for {
		p.mu.Lock()
		for p.queue.IsEmpty() && p.state == StateRunning {
			p.notEmpty.Wait()
		}
		if p.state != StateRunning {
			p.mu.Unlock()
			debugLog("worker %d exiting", id)
			return
		}

		t, _ := p.queue.Pop()
		depth := p.queue.Len()
		p.mu.Unlock()

		// A pop always leaves at least one free slot.
		p.notFull.Signal()
		p.metrics.taskStarted(depth)

		p.execute(id, t)
	}
}

// execute runs one task outside the lock, then records its result.
func (p *WorkerPool[R]) execute(worker int, t *Task[R]) {
	if p.rateLimiter != nil {
		if err := p.rateLimiter.Wait(context.Background()); err != nil {
			p.logger.Warn("rate limiter wait failed", "worker", worker, "error", err)
		}
	}
	if p.beforeTaskStart != nil {
		p.beforeTaskStart(worker, t.index)
	}

	_, span := p.tracer.Start(context.Background(), "batchpool.task",
		trace.WithAttributes(
			attribute.Int("batchpool.task.index", t.index),
			attribute.Int("batchpool.worker", worker),
		))
	start := time.Now()
	value, err := t.execute()
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "task panicked")
	}
	span.End()

	res := Result[R]{Value: value, Err: err, Index: t.index, Worker: worker}
	recorded, done := p.record(res)

	if dropErr := t.release(); dropErr != nil {
		p.logger.Warn("task drop failed", "index", res.Index, "error", dropErr)
	}
	p.metrics.taskFinished(elapsed, errors.Is(err, ErrTaskPanic))

	if err != nil {
		p.logger.Error("task panicked", "index", res.Index, "worker", worker, "error", err)
	}
	if !recorded {
		p.logger.Warn("result discarded: batch already terminated", "index", res.Index, "worker", worker)
		return
	}
	if p.onTaskEnd != nil {
		p.onTaskEnd(res)
	}
	if done {
		p.logger.Info("batch terminated", "worker", worker)
	}
}

// record stores res and advances the completion counter. The worker that
// completes the declared count terminates the batch and wakes everyone:
// idle workers so they exit, blocked producers so they fail fast, and the
// coordinator in Await.
//
// A task that finishes after termination (possible when more tasks than
// declared were submitted) is not recorded, keeping completed <= declared.
func (p *WorkerPool[R]) record(res Result[R]) (recorded, done bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateRunning {
		return false, false
	}

	slot := p.completed
	if p.submissionOrder {
		slot = res.Index
	}
	p.results[slot] = res
	p.completed++
	debugLog("recorded task %d in slot %d (%d/%d)", res.Index, slot, p.completed, p.declared)

	if p.completed == p.declared {
		p.state = StateTerminated
		p.notEmpty.Broadcast()
		p.notFull.Broadcast()
		p.allDone.Broadcast()
		return true, true
	}
	return true, false
}
