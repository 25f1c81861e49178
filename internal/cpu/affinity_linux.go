//go:build linux

package cpu

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its OS thread and restricts that thread
// to a single core chosen from workerID.
//
// The returned release func keeps the thread locked: a goroutine that exits
// while locked takes its thread with it, so the narrowed affinity never leaks
// into the runtime's thread pool. release must be called from the same
// goroutine; if pinning fails it unlocks the thread instead.
//
// Worker IDs beyond the core count wrap around, so a pool larger than the
// machine shares cores round-robin.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()

	core := coreFor(workerID)

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(core)

	// pid 0 targets the calling thread.
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		return runtime.UnlockOSThread, fmt.Errorf("pin worker %d to core %d: %w", workerID, core, err)
	}
	return func() {}, nil
}
