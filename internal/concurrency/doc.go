// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package concurrency holds the small scheduling primitives the engine is
// built from: a task executor with lock-free local queues, the SPSC ring it
// uses, and OS thread pinning for selector owners.
package concurrency
