// Package heap implements the kernel's own dynamic memory allocator: a
// first-fit free-list carved out of whole frames borrowed from mem as
// needed, used for anything too small or too short-lived to deserve a
// dedicated page (PCB scratch buffers, path strings, small VFS structures).
//
// The teacher has no equivalent package: biscuit's kernel runs on top of
// the (patched) Go runtime, so `make`/`new` already are its kernel heap,
// backed directly by mem's frame allocator via the runtime's page
// source. This module can't do that, since nothing here patches the Go
// allocator, so the allocator mem's own packages assume exists is built
// here from scratch, in the same free-list idiom mem.Physmem_t uses for
// whole pages (an explicit free list guarded by one mutex, no per-CPU
// sharding since there is only ever one scheduler).
package heap

import (
	"sort"
	"sync"

	"kernel/mem"
	"kernel/res"
)

type chunk_t struct {
	addr mem.Pa_t
	size uint
}

var (
	mu      sync.Mutex
	free    []chunk_t
	used    uint64
	total   uint64
)

const minSplit = 16

// grow borrows one more frame from mem and adds it to the free list.
func grow() bool {
	pg, p_pg, ok := mem.Physmem.Refpg_new_nozero()
	if !ok {
		return false
	}
	for i := range pg {
		pg[i] = 0
	}
	free = append(free, chunk_t{addr: p_pg, size: uint(mem.PGSIZE)})
	total += uint64(mem.PGSIZE)
	sortFree()
	return true
}

func sortFree() {
	sort.Slice(free, func(i, j int) bool { return free[i].addr < free[j].addr })
}

// coalesce merges adjacent free chunks after a sort.
func coalesce() {
	if len(free) < 2 {
		return
	}
	out := free[:1]
	for _, c := range free[1:] {
		last := &out[len(out)-1]
		if last.addr+mem.Pa_t(last.size) == c.addr {
			last.size += c.size
		} else {
			out = append(out, c)
		}
	}
	free = out
}

func reportFree() {
	res.SetFree(int64(total) - int64(used))
}

// Alloc returns size bytes of zeroed, byte-addressable kernel heap as a
// slice backed by simulated physical frames.
func Alloc(size uint) []byte {
	return AllocAligned(size, 1)
}

// AllocAligned is like Alloc but guarantees the returned memory's physical
// address is a multiple of align, which must be a power of two no larger
// than a page.
func AllocAligned(size, align uint) []byte {
	b, _ := AllocWithPhys(size, align)
	return b
}

// AllocWithPhys allocates size bytes aligned to align and also returns the
// simulated physical address of the allocation, for callers (DMA-style
// block device buffers) that need to hand a frame address to a device.
func AllocWithPhys(size, align uint) ([]byte, mem.Pa_t) {
	if align == 0 {
		align = 1
	}
	mu.Lock()
	defer mu.Unlock()
	for tries := 0; tries < 2; tries++ {
		for i, c := range free {
			start := uint(c.addr)
			aligned := (start + align - 1) &^ (align - 1)
			pad := aligned - start
			if c.size < pad+size {
				continue
			}
			// consume [pad, pad+size) out of this chunk, returning any
			// leftover head/tail back to the free list
			remTail := c.size - pad - size
			newfree := make([]chunk_t, 0, len(free)+2)
			newfree = append(newfree, free[:i]...)
			if pad >= minSplit {
				newfree = append(newfree, chunk_t{addr: c.addr, size: pad})
			}
			if remTail >= minSplit {
				newfree = append(newfree, chunk_t{
					addr: c.addr + mem.Pa_t(pad+size),
					size: remTail,
				})
			}
			newfree = append(newfree, free[i+1:]...)
			free = newfree
			sortFree()
			used += uint64(size)
			reportFree()
			p := mem.Pa_t(aligned)
			b := mem.Physmem.ArenaBytes(p, int(size))
			for j := range b {
				b[j] = 0
			}
			return b, p
		}
		if !grow() {
			break
		}
	}
	panic("heap: out of memory")
}

// FreeAt returns a previously allocated range, identified by the physical
// address AllocWithPhys returned and its size, to the free list.
func FreeAt(addr mem.Pa_t, size uint) {
	mu.Lock()
	defer mu.Unlock()
	free = append(free, chunk_t{addr: addr, size: size})
	sortFree()
	coalesce()
	used -= uint64(size)
	reportFree()
}

// Stats reports total heap bytes borrowed from mem and how many are
// currently allocated.
func Stats() (totalBytes, usedBytes uint64) {
	mu.Lock()
	defer mu.Unlock()
	return total, used
}
