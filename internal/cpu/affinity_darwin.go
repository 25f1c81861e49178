//go:build darwin

package cpu

import "runtime"

// Pin locks the calling goroutine to its OS thread. macOS exposes no API to
// bind a thread to a core, so the thread is only locked.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}
