// File: internal/session/serial.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package session

import "code.hybscloud.com/atomix"

// SerialCounter hands out monotonically increasing session serials. The
// first serial is 1. Each engine owns its own counter.
type SerialCounter struct {
	n atomix.Uint32
}

// Next returns the next serial.
func (c *SerialCounter) Next() uint32 {
	return c.n.Add(1)
}
