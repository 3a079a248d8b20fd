// Package control
// Author: momentics <momentics@gmail.com>
//
// Lifecycle status, runtime metrics and debug introspection for engines.
//
// Provides concurrent-safe state handling primitives including:
//   - Checked lifecycle transitions with change listeners
//   - Named counters and gauges with snapshot export
//   - Debug probe registration and state dumps
package control
