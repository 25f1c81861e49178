package csvgen

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/semaphore"

	"github.com/utkarsh5026/batchpool/pool"
)

type writeArg struct {
	file   *os.File
	sem    *semaphore.Weighted
	lines  []Line
	offset int64
	chunk  int
}

type chunkWrite struct {
	Chunk int
	Bytes int
	Err   error
}

// writeChunk copies one chunk into place with a single positional write.
func writeChunk(a writeArg) chunkWrite {
	size := 0
	for _, l := range a.lines {
		size += len(l.Data)
	}
	buf := make([]byte, 0, size)
	for _, l := range a.lines {
		buf = append(buf, l.Data...)
	}

	if err := a.sem.Acquire(context.Background(), 1); err != nil {
		return chunkWrite{Chunk: a.chunk, Err: err}
	}
	defer a.sem.Release(1)

	n, err := a.file.WriteAt(buf, a.offset)
	return chunkWrite{Chunk: a.chunk, Bytes: n, Err: err}
}

// WriteFile creates path, sizes it to total bytes and writes every chunk at
// its offset on a pool of threads workers. At most maxWriters chunks are
// written to the file at once.
func WriteFile(threads int, path string, lines []Line, chunks []Chunk, offsets []int64, total int64, maxWriters int, opts ...pool.WorkerPoolOption) (err error) {
	if len(offsets) != len(chunks) {
		return fmt.Errorf("%w: %d offsets for %d chunks", ErrParams, len(offsets), len(chunks))
	}
	if maxWriters < 1 {
		return fmt.Errorf("%w: max writers must be >= 1, got %d", ErrParams, maxWriters)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("could not open file %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	if err := f.Truncate(total); err != nil {
		return fmt.Errorf("truncate %s to %d bytes: %w", path, total, err)
	}
	if len(chunks) == 0 {
		return nil
	}

	wp, err := pool.NewWorkerPool[chunkWrite](threads, len(chunks), opts...)
	if err != nil {
		return err
	}
	sem := semaphore.NewWeighted(int64(maxWriters))
	for i, c := range chunks {
		arg := writeArg{
			file:   f,
			sem:    sem,
			lines:  lines[c.Start:c.End],
			offset: offsets[i],
			chunk:  c.Index,
		}
		task, err := pool.NewTask(writeChunk, arg, nil)
		if err != nil {
			return err
		}
		if err := wp.Submit(task); err != nil {
			return fmt.Errorf("submit chunk %d: %w", c.Index, err)
		}
	}

	results, err := collect(wp)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("write chunk: %w", r.Err)
		}
		if r.Value.Err != nil {
			return fmt.Errorf("write chunk %d: %w", r.Value.Chunk, r.Value.Err)
		}
	}
	return f.Sync()
}

// WriteSerial writes lines to path in order through a buffered writer and
// returns the number of bytes written.
func WriteSerial(path string, lines []Line) (n int64, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("could not open file %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()

	w := bufio.NewWriter(f)
	for _, l := range lines {
		written, err := w.Write(l.Data)
		n += int64(written)
		if err != nil {
			return n, err
		}
	}
	return n, w.Flush()
}
