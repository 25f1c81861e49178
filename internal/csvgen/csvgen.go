// Package csvgen generates numeric CSV files in parallel: lines are built in
// chunks on a worker pool, the byte offset of every chunk is computed on a
// second batch, and a third batch writes the chunks into a pre-sized file at
// those offsets.
package csvgen

import (
	"cmp"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/utkarsh5026/batchpool/pool"
)

// ErrParams is returned for a line count, column count or chunk size below 1.
var ErrParams = errors.New("invalid csv parameters")

// Line is one generated row. No is 1-based.
type Line struct {
	No   int
	Data []byte // comma separated values terminated by '\n'
}

// Chunk is the half-open range [Start, End) of line indices handled by one task.
type Chunk struct {
	Index      int
	Start, End int
}

// Params describe the file to generate. Chunks hold ChunkSize lines, except
// possibly the last one. Output depends only on Params, never on the number
// of workers.
type Params struct {
	Lines     int
	Columns   int
	ChunkSize int
	Seed      uint64
}

func (p Params) validate() error {
	if p.Lines < 1 || p.Columns < 1 || p.ChunkSize < 1 {
		return fmt.Errorf("%w: lines=%d columns=%d chunk=%d", ErrParams, p.Lines, p.Columns, p.ChunkSize)
	}
	return nil
}

// Chunks splits the lines into ceil(Lines/ChunkSize) ranges.
func (p Params) Chunks() []Chunk {
	n := p.Lines / p.ChunkSize
	if p.Lines%p.ChunkSize != 0 {
		n++
	}

	chunks := make([]Chunk, n)
	for i := range chunks {
		chunks[i] = Chunk{
			Index: i,
			Start: i * p.ChunkSize,
			End:   min((i+1)*p.ChunkSize, p.Lines),
		}
	}
	return chunks
}

type generateArg struct {
	params Params
	chunk  Chunk
}

// generateChunk builds the lines of one chunk from a generator seeded by the
// chunk index, so a chunk's content does not depend on which worker runs it.
func generateChunk(a generateArg) []Line {
	rng := rand.New(rand.NewPCG(a.params.Seed, uint64(a.chunk.Index)))
	lines := make([]Line, 0, a.chunk.End-a.chunk.Start)

	for i := a.chunk.Start; i < a.chunk.End; i++ {
		buf := make([]byte, 0, a.params.Columns*3)
		for c := range a.params.Columns {
			if c > 0 {
				buf = append(buf, ',')
			}
			buf = strconv.AppendInt(buf, int64(rng.IntN(100)), 10)
		}
		buf = append(buf, '\n')
		lines = append(lines, Line{No: i + 1, Data: buf})
	}
	return lines
}

// Generate builds every line on a pool of threads workers and returns them
// sorted by line number.
func Generate(threads int, p Params, opts ...pool.WorkerPoolOption) ([]Line, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	chunks := p.Chunks()

	wp, err := pool.NewWorkerPool[[]Line](threads, len(chunks), opts...)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		task, err := pool.NewTask(generateChunk, generateArg{params: p, chunk: c}, nil)
		if err != nil {
			return nil, err
		}
		if err := wp.Submit(task); err != nil {
			return nil, fmt.Errorf("submit chunk %d: %w", c.Index, err)
		}
	}

	results, err := collect(wp)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, p.Lines)
	for _, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("generate chunk: %w", r.Err)
		}
		lines = append(lines, r.Value...)
	}

	// Chunks complete in any order.
	slices.SortFunc(lines, func(a, b Line) int { return cmp.Compare(a.No, b.No) })
	return lines, nil
}

// collect waits for the batch and destroys the pool, whatever the results
// hold. The returned slice outlives the pool.
func collect[R any](wp *pool.WorkerPool[R]) ([]pool.Result[R], error) {
	results, err := wp.Await()
	if err != nil {
		return nil, err
	}
	if err := wp.Destroy(); err != nil {
		return nil, err
	}
	return results, nil
}

// GenerateSerial builds the same lines as Generate on the calling goroutine.
func GenerateSerial(p Params) ([]Line, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	lines := make([]Line, 0, p.Lines)
	for _, c := range p.Chunks() {
		lines = append(lines, generateChunk(generateArg{params: p, chunk: c})...)
	}
	return lines, nil
}
