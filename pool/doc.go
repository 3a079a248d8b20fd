// Package pool
// Author: momentics <momentics@gmail.com>
//
// Size-classed byte buffer pooling for outbound writes.
// See slab_pool.go for the size classes and objpool.go for the generic
// wrapper the classes are built on.
package pool
