// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for engine monitoring.
// Exposes counters and gauges in a thread-safe map with dynamic registration.

package control

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a monotonic or up/down int64 metric.
type Counter struct {
	v int64
}

// Add adds delta and returns the new value.
func (c *Counter) Add(delta int64) int64 { return atomic.AddInt64(&c.v, delta) }

// Inc adds one.
func (c *Counter) Inc() { atomic.AddInt64(&c.v, 1) }

// Load returns the current value.
func (c *Counter) Load() int64 { return atomic.LoadInt64(&c.v) }

// MetricsRegistry holds named counters and set-once gauges.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	metrics  map[string]any
	updated  time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*Counter),
		metrics:  make(map[string]any),
	}
}

// Counter returns the counter registered under key, creating it on first
// use. Callers keep the pointer and update it without touching the map.
func (mr *MetricsRegistry) Counter(key string) *Counter {
	mr.mu.RLock()
	c, ok := mr.counters[key]
	mr.mu.RUnlock()
	if ok {
		return c
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if c, ok = mr.counters[key]; !ok {
		c = &Counter{}
		mr.counters[key] = c
	}
	return c
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// GetSnapshot returns the latest metrics, counters included.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics)+len(mr.counters))
	for k, v := range mr.metrics {
		out[k] = v
	}
	for k, c := range mr.counters {
		out[k] = c.Load()
	}
	return out
}

// Updated returns when Set was last called.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}
