//go:build linux
// +build linux

// File: internal/concurrency/pin_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux thread pinning via sched_setaffinity.

package concurrency

import (
	"fmt"
	"runtime"

	"github.com/momentics/hioload-nio/internal/normalize"
	"golang.org/x/sys/unix"
)

// PinCurrentThread locks the calling goroutine to its OS thread and, when
// cpu is non-negative, restricts that thread to cpu modulo the CPU count.
// The thread stays locked even if setting the affinity fails.
func PinCurrentThread(cpu int) error {
	runtime.LockOSThread()
	if cpu < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(normalize.CPUIndexAuto(cpu))
	// pid 0 targets the calling thread
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity cpu %d: %w", cpu, err)
	}
	return nil
}

// UnpinCurrentThread releases the OS thread lock taken by PinCurrentThread.
func UnpinCurrentThread() {
	runtime.UnlockOSThread()
}
