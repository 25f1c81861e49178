package csvgen

import (
	"fmt"

	"github.com/utkarsh5026/batchpool/pool"
)

type sizeArg struct {
	chunk Chunk
	lines []Line
}

// chunkSize is the result of one sizing task. Results arrive in completion
// order, so each carries the chunk it belongs to.
type chunkSize struct {
	Chunk int
	Bytes int64
}

func sizeChunk(a sizeArg) chunkSize {
	var n int64
	for _, l := range a.lines[a.chunk.Start:a.chunk.End] {
		n += int64(len(l.Data))
	}
	return chunkSize{Chunk: a.chunk.Index, Bytes: n}
}

// Offsets sizes every chunk on a pool and returns the byte offset at which
// each chunk starts, plus the total file size. lines must be sorted by line
// number.
func Offsets(threads int, lines []Line, chunks []Chunk, opts ...pool.WorkerPoolOption) ([]int64, int64, error) {
	if len(chunks) == 0 {
		return nil, 0, nil
	}

	wp, err := pool.NewWorkerPool[chunkSize](threads, len(chunks), opts...)
	if err != nil {
		return nil, 0, err
	}
	for _, c := range chunks {
		task, err := pool.NewTask(sizeChunk, sizeArg{chunk: c, lines: lines}, nil)
		if err != nil {
			return nil, 0, err
		}
		if err := wp.Submit(task); err != nil {
			return nil, 0, fmt.Errorf("submit chunk %d: %w", c.Index, err)
		}
	}

	results, err := collect(wp)
	if err != nil {
		return nil, 0, err
	}
	sizes := make([]int64, len(chunks))
	for _, r := range results {
		if r.Err != nil {
			return nil, 0, fmt.Errorf("size chunk: %w", r.Err)
		}
		sizes[r.Value.Chunk] = r.Value.Bytes
	}

	offsets, total := prefixSum(sizes)
	return offsets, total, nil
}

// OffsetsSerial is Offsets on the calling goroutine.
func OffsetsSerial(lines []Line, chunks []Chunk) ([]int64, int64) {
	sizes := make([]int64, len(chunks))
	for i, c := range chunks {
		sizes[i] = sizeChunk(sizeArg{chunk: c, lines: lines}).Bytes
	}
	return prefixSum(sizes)
}

// prefixSum turns chunk sizes into start offsets.
func prefixSum(sizes []int64) ([]int64, int64) {
	offsets := make([]int64, len(sizes))
	var total int64
	for i, s := range sizes {
		offsets[i] = total
		total += s
	}
	return offsets, total
}
