// Package montecarlo estimates the area under y = 9 - x^2 by hit counting,
// serially or on a worker pool.
package montecarlo

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/utkarsh5026/batchpool/pool"
)

// ErrDomain is returned for bounds where the curve is not non-negative and
// decreasing, which hit counting against a box anchored at y = 0 requires.
var ErrDomain = errors.New("integration bounds outside [0, 3]")

// Curve is the integrand.
func Curve(x float64) float64 {
	return 9.0 - x*x
}

// Analytical is the exact integral of Curve over [a, b].
func Analytical(a, b float64) float64 {
	return 9.0*(b-a) - (b*b*b-a*a*a)/3.0
}

// Region is the box samples are drawn from.
type Region struct {
	XLow, XHigh float64
	YLow, YHigh float64
}

// NewRegion returns the box bounding Curve over [a, b].
func NewRegion(a, b float64) (Region, error) {
	if a < 0 || b > 3 || a >= b {
		return Region{}, fmt.Errorf("%w: got [%g, %g]", ErrDomain, a, b)
	}
	return Region{XLow: a, XHigh: b, YLow: Curve(b), YHigh: Curve(a)}, nil
}

// Area of the region; the part between y = 0 and YLow is always under the curve.
func (r Region) Area() float64 {
	return (r.XHigh - r.XLow) * (r.YHigh - r.YLow)
}

// Params describe one run: Tasks independent samplers of Iterations points each.
type Params struct {
	Region     Region
	Tasks      int
	Iterations int
	Seed       uint64
}

// Estimate is the outcome of a run.
type Estimate struct {
	Value   float64
	Hits    int
	Samples int
	Elapsed time.Duration
}

// Sampler is the argument of one hit-counting task. Hits points into storage
// owned by the caller, so the count survives the sampler being dropped.
type Sampler struct {
	Region     Region
	Iterations int
	Seed       uint64
	Stream     uint64
	Hits       *int
}

// CountHits draws s.Iterations points and counts those on or under the curve.
// The count is written to s.Hits and also returned.
func CountHits(s *Sampler) int {
	rng := rand.New(rand.NewPCG(s.Seed, s.Stream))
	r := s.Region

	hits := 0
	for range s.Iterations {
		x := r.XLow + rng.Float64()*(r.XHigh-r.XLow)
		y := r.YLow + rng.Float64()*(r.YHigh-r.YLow)
		if y <= Curve(x) {
			hits++
		}
	}
	if s.Hits != nil {
		*s.Hits = hits
	}
	return hits
}

// release detaches a sampler from the caller's storage.
func release(s *Sampler) {
	s.Hits = nil
}

func (p Params) validate() error {
	if p.Tasks < 1 || p.Iterations < 1 {
		return fmt.Errorf("tasks and iterations must be >= 1, got %d and %d", p.Tasks, p.Iterations)
	}
	return nil
}

func (p Params) sampler(task int, hits []int) *Sampler {
	return &Sampler{
		Region:     p.Region,
		Iterations: p.Iterations,
		Seed:       p.Seed,
		Stream:     uint64(task),
		Hits:       &hits[task],
	}
}

func (p Params) estimate(hits []int, elapsed time.Duration) Estimate {
	total := 0
	for _, h := range hits {
		total += h
	}
	samples := p.Tasks * p.Iterations
	below := (p.Region.XHigh - p.Region.XLow) * p.Region.YLow
	return Estimate{
		Value:   below + float64(total)/float64(samples)*p.Region.Area(),
		Hits:    total,
		Samples: samples,
		Elapsed: elapsed,
	}
}

// Serial runs every sampler on the calling goroutine.
func Serial(p Params) (Estimate, error) {
	if err := p.validate(); err != nil {
		return Estimate{}, err
	}

	start := time.Now()
	hits := make([]int, p.Tasks)
	for i := range p.Tasks {
		CountHits(p.sampler(i, hits))
	}
	return p.estimate(hits, time.Since(start)), nil
}

// Parallel runs the samplers on a fresh pool of threads workers.
func Parallel(threads int, p Params, opts ...pool.WorkerPoolOption) (Estimate, error) {
	in := NewIntegrator(threads, opts...)
	est, err := in.Run(p)
	if closeErr := in.Close(); err == nil {
		err = closeErr
	}
	return est, err
}
