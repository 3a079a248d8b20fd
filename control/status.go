// control/status.go
// Author: momentics <momentics@gmail.com>
//
// Engine lifecycle status with checked transitions.

package control

import (
	"fmt"
	"sync"

	"github.com/momentics/hioload-nio/api"
)

// Status is the lifecycle position of an engine.
type Status int32

const (
	StatusNew Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusStarting:
		return "STARTING"
	case StatusRunning:
		return "RUNNING"
	case StatusStopping:
		return "STOPPING"
	case StatusStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// allowed lists the legal predecessors of each status.
var allowed = map[Status][]Status{
	StatusStarting: {StatusNew},
	StatusRunning:  {StatusStarting},
	StatusStopping: {StatusStarting, StatusRunning},
	StatusStopped:  {StatusStopping},
}

// Lifecycle holds a Status and notifies listeners on every change.
type Lifecycle struct {
	mu        sync.Mutex
	status    Status
	listeners []func(from, to Status)
}

// Status returns the current status.
func (l *Lifecycle) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// OnChange registers fn to run after each transition. Listeners run on the
// goroutine that made the transition.
func (l *Lifecycle) OnChange(fn func(from, to Status)) {
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

// Transition moves to the given status if the current one allows it.
func (l *Lifecycle) Transition(to Status) error {
	l.mu.Lock()
	from := l.status
	ok := false
	for _, p := range allowed[to] {
		if p == from {
			ok = true
			break
		}
	}
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("status %s -> %s: %w", from, to, api.ErrInvalidStatus)
	}
	l.status = to
	listeners := make([]func(from, to Status), len(l.listeners))
	copy(listeners, l.listeners)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(from, to)
	}
	return nil
}
