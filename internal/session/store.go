// File: internal/session/store.go
// Package session
// Author: momentics <momentics@gmail.com>
//
// Sharded, thread-safe session store keyed by serial.

package session

import "sync"

// Store tracks live sessions so the engine can report and close them.
type Store[T any] struct {
	shards []*storeShard[T]
	mask   uint32
}

type storeShard[T any] struct {
	mu       sync.RWMutex
	sessions map[uint32]*Session[T]
}

// NewStore constructs a store with shardCount shards rounded up to a power
// of two. shardCount <= 0 means 16.
func NewStore[T any](shardCount int) *Store[T] {
	if shardCount <= 0 {
		shardCount = 16
	}
	m := nextPowerOfTwo(uint32(shardCount))
	shards := make([]*storeShard[T], m)
	for i := range shards {
		shards[i] = &storeShard[T]{sessions: make(map[uint32]*Session[T])}
	}
	return &Store[T]{shards: shards, mask: m - 1}
}

func (m *Store[T]) shard(id uint32) *storeShard[T] {
	// serials are sequential, so the low bits spread evenly
	return m.shards[id&m.mask]
}

// Add records s. It reports false if a session with the same serial exists.
func (m *Store[T]) Add(s *Session[T]) bool {
	sh := m.shard(s.ID())
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.sessions[s.ID()]; ok {
		return false
	}
	sh.sessions[s.ID()] = s
	return true
}

// Get fetches a session if present.
func (m *Store[T]) Get(id uint32) (*Session[T], bool) {
	sh := m.shard(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	s, ok := sh.sessions[id]
	return s, ok
}

// Delete removes the session with the given serial.
func (m *Store[T]) Delete(id uint32) {
	sh := m.shard(id)
	sh.mu.Lock()
	delete(sh.sessions, id)
	sh.mu.Unlock()
}

// Len returns the number of tracked sessions.
func (m *Store[T]) Len() int {
	n := 0
	for _, sh := range m.shards {
		sh.mu.RLock()
		n += len(sh.sessions)
		sh.mu.RUnlock()
	}
	return n
}

// Range applies fn to a snapshot of the sessions, so fn may close them.
func (m *Store[T]) Range(fn func(*Session[T])) {
	for _, s := range m.snapshot() {
		fn(s)
	}
}

// CloseAll closes every tracked session and returns how many were closed.
func (m *Store[T]) CloseAll() int {
	n := 0
	m.Range(func(s *Session[T]) {
		if !s.Closed() {
			n++
		}
		s.Close()
	})
	return n
}

func (m *Store[T]) snapshot() []*Session[T] {
	var out []*Session[T]
	for _, sh := range m.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			out = append(out, s)
		}
		sh.mu.RUnlock()
	}
	return out
}

// nextPowerOfTwo returns the next power-of-two >= v.
func nextPowerOfTwo(v uint32) uint32 {
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v++
	return v
}
