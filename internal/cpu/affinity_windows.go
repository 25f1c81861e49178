//go:build windows

package cpu

import (
	"fmt"
	"runtime"
	"syscall"
)

var (
	kernel32              = syscall.NewLazyDLL("kernel32.dll")
	setThreadAffinityMask = kernel32.NewProc("SetThreadAffinityMask")
	getCurrentThread      = kernel32.NewProc("GetCurrentThread")
)

// Pin locks the calling goroutine to its OS thread and sets the thread's
// affinity mask to the single core chosen from workerID.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()
	release = runtime.UnlockOSThread

	core := coreFor(workerID)
	handle, _, _ := getCurrentThread.Call()

	// SetThreadAffinityMask returns the previous mask, or 0 on failure.
	prev, _, callErr := setThreadAffinityMask.Call(handle, uintptr(1)<<uint(core))
	if prev == 0 {
		return release, fmt.Errorf("pin worker %d to core %d: %w", workerID, core, callErr)
	}
	return release, nil
}
