// File: pool/slab_pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"math/bits"
	"sync/atomic"
)

// Size classes are powers of two from MinClass to MaxClass. Larger
// requests are allocated directly and never pooled.
const (
	MinClass = 512
	MaxClass = 64 * 1024
)

var (
	minShift = bits.Len(MinClass - 1)
	classes  = bits.Len(MaxClass-1) - minShift + 1
)

// SlabPool hands out byte slices from per-class free lists.
type SlabPool struct {
	slabs []*SyncPool[*[]byte]

	totalAlloc atomic.Int64
	totalFree  atomic.Int64
	oversize   atomic.Int64
}

// Stats is a snapshot of pool activity.
type Stats struct {
	TotalAlloc int64 // Get calls served from a class
	TotalFree  int64 // slices returned with Put
	InUse      int64
	Oversize   int64 // requests larger than MaxClass
}

// NewSlabPool creates one free list per size class.
func NewSlabPool() *SlabPool {
	sp := &SlabPool{slabs: make([]*SyncPool[*[]byte], classes)}
	for i := range sp.slabs {
		size := MinClass << i
		sp.slabs[i] = NewSyncPool(func() *[]byte {
			b := make([]byte, size)
			return &b
		})
	}
	return sp
}

// classOf returns the class index for n, or -1 when n exceeds MaxClass.
func classOf(n int) int {
	if n > MaxClass {
		return -1
	}
	if n <= MinClass {
		return 0
	}
	return bits.Len(uint(n-1)) - minShift
}

// Get returns a slice of length n. Its capacity is the class size.
func (sp *SlabPool) Get(n int) []byte {
	c := classOf(n)
	if c < 0 {
		sp.oversize.Add(1)
		return make([]byte, n)
	}
	sp.totalAlloc.Add(1)
	return (*sp.slabs[c].Get())[:n]
}

// Put returns b to its class. Slices whose capacity is not exactly a
// class size, such as oversize allocations, are left to the GC.
func (sp *SlabPool) Put(b []byte) {
	size := cap(b)
	c := classOf(size)
	if c < 0 || MinClass<<c != size {
		return
	}
	b = b[:size]
	sp.totalFree.Add(1)
	sp.slabs[c].Put(&b)
}

// Stats returns current counters.
func (sp *SlabPool) Stats() Stats {
	alloc, free := sp.totalAlloc.Load(), sp.totalFree.Load()
	return Stats{
		TotalAlloc: alloc,
		TotalFree:  free,
		InUse:      alloc - free,
		Oversize:   sp.oversize.Load(),
	}
}
