// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexer that every engine
// worker owns: a level-triggered epoll selector with an eventfd wakeup and a
// thread-safe task handoff. Registration methods belong to the owning
// goroutine; other goroutines reach the selector through Submit.
package reactor
