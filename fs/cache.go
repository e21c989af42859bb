package fs

import "sync/atomic"

// bdev_debug gates the block layer's verbose tracing, left off by default.
// blk.go's trace points were grounded on the teacher's but the teacher's
// own on/off switch lived in a build-tagged debug file that was not part
// of the retrieved pack.
var bdev_debug = false

// Objref_t is a simple reference count attached to a cached block, used by
// the block cache to know when a block can be evicted instead of merely
// marked stale. blk.go's Bdev_block_t carries one but the teacher's own
// cache/refcounting package (the file that constructs Objref_t values) was
// not part of the retrieved pack, so it is authored fresh here in the
// minimal shape blk.go's call sites need.
type Objref_t struct {
	count int32
}

// Up increments the reference count.
func (o *Objref_t) Up() int32 {
	return atomic.AddInt32(&o.count, 1)
}

// Down decrements the reference count and reports whether it reached zero.
func (o *Objref_t) Down() bool {
	return atomic.AddInt32(&o.count, -1) == 0
}

// Total reports the current reference count.
func (o *Objref_t) Total() int32 {
	return atomic.LoadInt32(&o.count)
}
