package montecarlo

import (
	"fmt"
	"time"

	"github.com/utkarsh5026/batchpool/pool"
)

// Integrator runs successive estimates on one worker pool, resetting it
// between runs instead of starting new workers from scratch.
type Integrator struct {
	threads int
	opts    []pool.WorkerPoolOption
	pool    *pool.WorkerPool[int]
}

// NewIntegrator returns an Integrator whose pool is created on the first Run.
func NewIntegrator(threads int, opts ...pool.WorkerPoolOption) *Integrator {
	return &Integrator{threads: threads, opts: opts}
}

// Run submits one task per sampler and waits for all of them.
func (in *Integrator) Run(p Params) (Estimate, error) {
	if err := p.validate(); err != nil {
		return Estimate{}, err
	}

	start := time.Now()
	if err := in.prepare(p.Tasks); err != nil {
		return Estimate{}, err
	}

	hits := make([]int, p.Tasks)
	for i := range p.Tasks {
		task, err := pool.NewTask(CountHits, p.sampler(i, hits), release)
		if err != nil {
			return Estimate{}, err
		}
		if err := in.pool.Submit(task); err != nil {
			return Estimate{}, fmt.Errorf("submit sampler %d: %w", i, err)
		}
	}

	results, err := in.pool.Await()
	if err != nil {
		return Estimate{}, err
	}
	for _, r := range results {
		if r.Err != nil {
			return Estimate{}, fmt.Errorf("sampler %d: %w", r.Index, r.Err)
		}
	}
	return p.estimate(hits, time.Since(start)), nil
}

func (in *Integrator) prepare(tasks int) error {
	if in.pool == nil {
		p, err := pool.NewWorkerPool[int](in.threads, tasks, in.opts...)
		if err != nil {
			return err
		}
		in.pool = p
		return nil
	}
	return in.pool.Reset(tasks)
}

// Stats exposes the underlying pool's counters; zero before the first Run.
func (in *Integrator) Stats() pool.Stats {
	if in.pool == nil {
		return pool.Stats{}
	}
	return in.pool.Stats()
}

// Close destroys the pool. It is a no-op if Run was never called, and fails
// if a Run was abandoned before all of its samplers were submitted.
func (in *Integrator) Close() error {
	if in.pool == nil {
		return nil
	}
	switch s := in.pool.Stats(); s.State {
	case pool.StateRunning:
		return fmt.Errorf("%w: %d of %d samplers outstanding", pool.ErrNotYetTerminated,
			s.Declared-s.Completed, s.Declared)
	case pool.StateTerminated:
		if _, err := in.pool.Join(); err != nil {
			return err
		}
	}
	return in.pool.Destroy()
}
