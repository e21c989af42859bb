// Package res guards against the specific deadlock a naive kernel can hit
// when copying between user and kernel memory while the heap is nearly
// exhausted: a copy loop that itself needs heap (to fault in pages, grow
// page tables) can spin forever charging the same starved allocator. Every
// bounded copy loop in vm calls Resadd_noblock once per iteration
// before doing the iteration's work; when the heap is critically low, the
// call fails fast with ENOHEAP instead of wedging the kernel.
//
// Grounded on the teacher's res package (referenced throughout vm/as.go and
// vm/userbuf.go as res.Resadd_noblock(bounds.Bounds(...))).
package res

import "sync/atomic"

// reserve is the number of heap bytes kept back for the kernel's own
// bookkeeping; once free heap drops below it, bounded copy loops refuse to
// proceed rather than risk deadlocking the allocator.
const reserve = 1 << 16

// freeBytes is updated by heap's allocate and free paths so res can answer without
// taking the heap's lock on every iteration of a hot copy loop.
var freeBytes int64

// SetFree is called by the heap package whenever its free-list size
// changes. It is not part of this package's public contract for general
// callers — only heap calls it — but it can't live in heap without an
// import cycle (heap doesn't need to know about res, but res needs to know
// heap's free byte count).
func SetFree(n int64) {
	atomic.StoreInt64(&freeBytes, n)
}

// Resadd_noblock charges want bytes against the remaining heap budget and
// reports whether the caller may proceed with this iteration. It never
// blocks: a bounded loop that can't get budget must unwind and return
// ENOHEAP to its caller, the same way the teacher's res package works.
func Resadd_noblock(want uint) bool {
	return atomic.LoadInt64(&freeBytes)-int64(want) >= reserve
}
