// File: internal/normalize/normalizer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Index normalization for CPU numbers. Worker pinning computes CPU indices
// from worker ordinals; every such index goes through CPUIndex so it always
// names a CPU that exists.

package normalize

import "runtime"

// CPUIndex maps requested onto [0, maxCPUs). Negative requests stay -1,
// meaning "do not pin". maxCPUs < 1 is treated as a single CPU.
func CPUIndex(requested int, maxCPUs int) int {
	if requested < 0 {
		return -1
	}
	if maxCPUs < 1 {
		return 0
	}
	return requested % maxCPUs
}

// CPUIndexAuto normalizes against runtime.NumCPU().
func CPUIndexAuto(requested int) int {
	return CPUIndex(requested, runtime.NumCPU())
}
