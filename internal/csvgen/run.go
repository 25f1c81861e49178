package csvgen

import (
	"time"

	"github.com/utkarsh5026/batchpool/pool"
)

// Timings reports how long each phase of a run took.
type Timings struct {
	Generate time.Duration
	Write    time.Duration // sizing plus writing
	Lines    int
	Bytes    int64
}

// Run generates the file described by p at path using threads workers per
// phase.
func Run(threads int, path string, p Params, maxWriters int, opts ...pool.WorkerPoolOption) (Timings, error) {
	start := time.Now()
	lines, err := Generate(threads, p, opts...)
	if err != nil {
		return Timings{}, err
	}
	t := Timings{Generate: time.Since(start), Lines: len(lines)}

	start = time.Now()
	chunks := p.Chunks()
	offsets, total, err := Offsets(threads, lines, chunks, opts...)
	if err != nil {
		return t, err
	}
	if err := WriteFile(threads, path, lines, chunks, offsets, total, maxWriters, opts...); err != nil {
		return t, err
	}
	t.Write = time.Since(start)
	t.Bytes = total
	return t, nil
}

// RunSerial produces the same file as Run without a pool.
func RunSerial(path string, p Params) (Timings, error) {
	start := time.Now()
	lines, err := GenerateSerial(p)
	if err != nil {
		return Timings{}, err
	}
	t := Timings{Generate: time.Since(start), Lines: len(lines)}

	start = time.Now()
	n, err := WriteSerial(path, lines)
	if err != nil {
		return t, err
	}
	t.Write = time.Since(start)
	t.Bytes = n
	return t, nil
}
