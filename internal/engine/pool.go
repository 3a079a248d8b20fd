// File: internal/engine/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed read and write worker sets with round-robin assignment.

package engine

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-nio/api"
	"github.com/momentics/hioload-nio/internal/normalize"
)

// Pool holds n read workers and n write workers.
type Pool[T any] struct {
	readers []*Worker[T]
	writers []*Worker[T]
	next    int // round-robin index, setup dispatcher only
}

func newPool[T any](eng *Engine[T], n int, pin bool) (*Pool[T], error) {
	p := &Pool[T]{
		readers: make([]*Worker[T], 0, n),
		writers: make([]*Worker[T], 0, n),
	}
	cpus := runtime.NumCPU()
	for i := 0; i < n; i++ {
		rc, wc := -1, -1
		if pin {
			rc, wc = normalize.CPUIndex(2*i, cpus), normalize.CPUIndex(2*i+1, cpus)
		}
		r, err := newWorker(eng, i, RoleRead, rc)
		if err != nil {
			p.closeSelectors()
			return nil, fmt.Errorf("read worker %d: %w", i, err)
		}
		p.readers = append(p.readers, r)
		w, err := newWorker(eng, i, RoleWrite, wc)
		if err != nil {
			p.closeSelectors()
			return nil, fmt.Errorf("write worker %d: %w", i, err)
		}
		p.writers = append(p.writers, w)
	}
	return p, nil
}

// closeSelectors releases selectors of workers that never started.
func (p *Pool[T]) closeSelectors() {
	for _, w := range p.readers {
		w.sel.Close()
	}
	for _, w := range p.writers {
		w.sel.Close()
	}
}

// Start launches every worker.
func (p *Pool[T]) Start() {
	for _, w := range p.readers {
		w.Start()
	}
	for _, w := range p.writers {
		w.Start()
	}
}

// Pick returns the next read and write worker pair. Only the setup
// dispatcher calls it, so the index needs no synchronization.
func (p *Pool[T]) Pick() (*Worker[T], *Worker[T]) {
	i := p.next
	p.next = (p.next + 1) % len(p.readers)
	return p.readers[i], p.writers[i]
}

// Size returns the number of workers per role.
func (p *Pool[T]) Size() int { return len(p.readers) }

// Stop wakes every worker and waits up to timeout for all of them to exit.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	all := append(append([]*Worker[T](nil), p.readers...), p.writers...)
	for _, w := range all {
		w.Stop()
	}
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	for _, w := range all {
		if atomic.LoadInt32(&w.started) == 0 {
			w.sel.Close()
			continue
		}
		select {
		case <-w.Done():
		case <-deadline:
			return fmt.Errorf("%s worker %d did not stop: %w", w.role, w.id, api.ErrOperationTimeout)
		}
	}
	return nil
}
