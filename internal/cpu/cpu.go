// Package cpu binds pool workers to processor cores.
package cpu

import "runtime"

// NumCPU returns the number of logical CPUs usable by the process.
func NumCPU() int {
	return runtime.NumCPU()
}

// coreFor maps a worker ID onto [0, NumCPU).
func coreFor(workerID int) int {
	n := NumCPU()
	core := workerID % n
	if core < 0 {
		core += n
	}
	return core
}
