//go:build !linux
// +build !linux

// File: internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>

package concurrency

import "runtime"

// PinCurrentThread only locks the OS thread on this platform.
func PinCurrentThread(cpu int) error {
	runtime.LockOSThread()
	return nil
}

// UnpinCurrentThread releases the OS thread lock.
func UnpinCurrentThread() {
	runtime.UnlockOSThread()
}
