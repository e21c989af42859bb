// Package mem implements the physical memory manager: a free-list frame
// allocator (there is no bitmap) handing out fixed 4KB frames to callers,
// plus the page table
// entry bit layout shared by every paging structure.
//
// The teacher's mem package assumes it is running as the kernel itself on
// bare iron: physical memory is whatever the bootloader handed it, frames
// are accessed through a direct map installed by editing the live page
// tables, and runtime.Get_phys/runtime.Cpuid/runtime.Rcr4 are hooks the
// teacher's forked Go runtime exposes for exactly that. None of those hooks
// exist in an unmodified Go toolchain, so this package models physical
// memory as one large Go-allocated arena instead of real hardware: a frame
// is a slice into that arena, and its "physical address" is just its byte
// offset. Refcounting, the free list, and the Page_i contract are otherwise
// unchanged from the teacher's design. Because this kernel's process model
// is cooperative goroutines rather than real CPUs (see proc and sched),
// there is only ever one allocator path, so the teacher's per-CPU free
// lists (sharded to avoid cache-line contention across real cores) are
// dropped in favor of a single mutex-guarded free list.
package mem

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// PGSHIFT is the base-2 exponent for the page size.
const PGSHIFT uint = 12

// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

// PGOFFSET masks offsets within a page.
const PGOFFSET Pa_t = 0xfff

// PGMASK masks the page number of an address.
const PGMASK Pa_t = ^(PGOFFSET)

// x86-32 page table entry bits. PTE_A/PTE_D are the hardware accessed/dirty
// bits; PTE_COW and PTE_WASCOW occupy two (9 and 10) of the three bits the
// architecture reserves for OS use (9-11) and are this kernel's own copy-on-write
// bookkeeping, same as the teacher's.
const (
	PTE_P      Pa_t = 1 << 0
	PTE_W      Pa_t = 1 << 1
	PTE_U      Pa_t = 1 << 2
	PTE_PCD    Pa_t = 1 << 4
	PTE_A      Pa_t = 1 << 5
	PTE_D      Pa_t = 1 << 6
	PTE_PS     Pa_t = 1 << 7
	PTE_G      Pa_t = 1 << 8
	PTE_COW    Pa_t = 1 << 9
	PTE_WASCOW Pa_t = 1 << 10
	PTE_ADDR   Pa_t = PGMASK
)

// USERMIN is the lowest virtual address a process's own mappings may use;
// everything below it is reserved so a NULL-ish pointer always faults. The
// teacher reserves a much larger low region to also keep clear of its
// recursive self-map slot, which this simulated two-level table doesn't
// need.
const USERMIN int = 1 << 22

// USERMAX is one past the highest virtual address a process's own mappings
// may use, following the conventional x86-32 3GiB/1GiB user/kernel split
// (the kernel's high half starts at 0xc0000000 and is identical across
// every address space).
const USERMAX int = 0xc0000000

// Pa_t represents a physical address. On this 32-bit target it is also the
// byte offset of a frame within the simulated arena.
type Pa_t uint32

// arena_t is the Go-allocated slab standing in for physical RAM. A frame's
// Pa_t is its byte offset into buf, so any two frames are exactly as far
// apart as their Pa_t difference, the same invariant hardware physical
// addresses give the teacher's direct map.
type arena_t struct {
	buf  []byte
	base uintptr
}

var pgArena arena_t

func (a *arena_t) init(respgs int) {
	a.buf = make([]byte, respgs*PGSIZE)
	a.base = uintptr(unsafe.Pointer(&a.buf[0]))
}

func (a *arena_t) at(p Pa_t) *Pg_t {
	return (*Pg_t)(unsafe.Pointer(&a.buf[int(p)]))
}

func (a *arena_t) frameOf(pg *Pg_t) Pa_t {
	off := uintptr(unsafe.Pointer(pg)) - a.base
	return Pa_t(off)
}

// Bytepg_t is a byte addressed page.
type Bytepg_t [PGSIZE]uint8

// Pg_t is a generic page of ints.
type Pg_t [PGSIZE / 8]int64

// Pmap_t is a page table (or page directory) page: 1024 32-bit entries,
// matching the x86-32 non-PAE layout.
type Pmap_t [1024]Pa_t

// Unpin_i allows unpinning of physical pages.
type Unpin_i interface {
	Unpin(Pa_t)
}

// Mmapinfo_t describes a mapping created by the runtime.
type Mmapinfo_t struct {
	Pg   *Pg_t
	Phys Pa_t
}

// Page_i abstracts physical page allocation.
type Page_i interface {
	Refpg_new() (*Pg_t, Pa_t, bool)
	Refpg_new_nozero() (*Pg_t, Pa_t, bool)
	Refcnt(Pa_t) int
	Dmap(Pa_t) *Pg_t
	Refup(Pa_t)
	Refdown(Pa_t) bool
}

// Pg2bytes reinterprets a page of ints as a page of bytes; both views cover
// the same PGSIZE bytes of backing storage.
func Pg2bytes(pg *Pg_t) *Bytepg_t {
	return (*Bytepg_t)(unsafe.Pointer(pg))
}

// Bytepg2pg reinterprets a byte page back to a Pg_t.
func Bytepg2pg(pg *Bytepg_t) *Pg_t {
	return (*Pg_t)(unsafe.Pointer(pg))
}

func pg2pmap(pg *Pg_t) *Pmap_t {
	return (*Pmap_t)(unsafe.Pointer(pg))
}

// Pg2pmap reinterprets a page as a page table/directory. Exported so vm can
// turn the frame Dmap hands back for a PDE's target into the Pmap_t it
// walks next.
func Pg2pmap(pg *Pg_t) *Pmap_t {
	return pg2pmap(pg)
}

func _pg2pgn(p_pg Pa_t) uint32 {
	return uint32(p_pg) >> PGSHIFT
}

// Refaddr returns the refcount pointer and index for the given page.
func (phys *Physmem_t) Refaddr(p_pg Pa_t) (*int32, uint32) {
	idx := _pg2pgn(p_pg) - phys.startn
	return &phys.Pgs[idx].Refcnt, idx
}

// Tlbaddr returns the shootdown mask address for a page. This kernel has no
// real hardware TLB to shoot down (see vm.Tlbshoot), but the accessor is
// kept so callers written against the teacher's shape still compile.
func (phys *Physmem_t) Tlbaddr(p_pg Pa_t) *uint64 {
	idx := _pg2pgn(p_pg) - phys.startn
	return &phys.Pgs[idx].Cpumask
}

// Physpg_t describes a single physical page.
type Physpg_t struct {
	Refcnt int32
	// index into pgs of next page on free list
	nexti uint32
	// retained for shape-compatibility with vm.Tlbshoot's fast path; always
	// zero in this single-scheduler kernel
	Cpumask uint64
}

// Physmem_t manages all physical memory for the system.
type Physmem_t struct {
	Pgs []Physpg_t
	startn uint32
	// index into pgs of first free pg
	freei   uint32
	freelen int32
	pmaps   uint32
	pmaplen int32
	sync.Mutex
	Dmapinit bool
}

func (phys *Physmem_t) _refpg_new() (*Pg_t, Pa_t, bool) {
	return phys._phys_new(&phys.freei, phys, &phys.freelen)
}

// Refcnt returns the current reference count of a page.
func (phys *Physmem_t) Refcnt(p_pg Pa_t) int {
	ref, _ := phys.Refaddr(p_pg)
	return int(atomic.LoadInt32(ref))
}

// Refup increments the reference count of a page.
func (phys *Physmem_t) Refup(p_pg Pa_t) {
	ref, _ := phys.Refaddr(p_pg)
	c := atomic.AddInt32(ref, 1)
	if c <= 0 {
		panic("wut")
	}
}

func (phys *Physmem_t) _refdec(p_pg Pa_t) (bool, uint32) {
	ref, idx := phys.Refaddr(p_pg)
	c := atomic.AddInt32(ref, -1)
	if c < 0 {
		panic("wut")
	}
	return c == 0, idx
}

// Refdown decrements the reference count of a page.
// It returns true when the page is freed.
func (phys *Physmem_t) Refdown(p_pg Pa_t) bool {
	return phys._phys_put(p_pg, false)
}

// Zeropg is a global zero-filled page used for allocations.
var Zeropg *Pg_t

// P_zeropg is the physical address of Zeropg.
var P_zeropg Pa_t

// Refpg_new allocates a zeroed page and returns its mapping and address.
// The returned page's refcount is not incremented.
func (phys *Physmem_t) Refpg_new() (*Pg_t, Pa_t, bool) {
	if !phys.Dmapinit {
		panic("refpg_new")
	}
	pg, p_pg, ok := phys._refpg_new()
	if !ok {
		return nil, 0, false
	}
	*pg = *Zeropg
	return pg, p_pg, true
}

// Refpg_new_nozero allocates an uninitialised page.
func (phys *Physmem_t) Refpg_new_nozero() (*Pg_t, Pa_t, bool) {
	return phys._refpg_new()
}

// Pmap_new allocates a new page table page.
func (phys *Physmem_t) Pmap_new() (*Pmap_t, Pa_t, bool) {
	a, b, ok := phys._phys_new(&phys.pmaps, phys, &phys.pmaplen)
	if !ok {
		a, b, ok = phys.Refpg_new()
	}
	return pg2pmap(a), b, ok
}

func (phys *Physmem_t) _phys_new(fl *uint32, lock sync.Locker, cnt *int32) (*Pg_t, Pa_t, bool) {
	if !phys.Dmapinit {
		panic("phys not initted")
	}

	var p_pg Pa_t
	var ok bool
	lock.Lock()
	ff := *fl
	if ff != ^uint32(0) {
		p_pg = Pa_t(ff+phys.startn) << PGSHIFT
		*fl = phys.Pgs[ff].nexti
		ok = true
		if phys.Pgs[ff].Refcnt < 0 {
			panic("negative ref count")
		}
		*cnt--
		if *cnt < 0 {
			panic("no")
		}
	}
	lock.Unlock()
	if ok {
		return phys.Dmap(p_pg), p_pg, true
	}
	return nil, 0, false
}

func (phys *Physmem_t) _phys_insert(fl *uint32, idx uint32, lock sync.Locker, cnt *int32) {
	lock.Lock()
	phys.Pgs[idx].nexti = *fl
	*fl = idx
	*cnt++
	if *cnt < 0 {
		panic("no")
	}
	lock.Unlock()
}

func (phys *Physmem_t) _phys_put(p_pg Pa_t, ispmap bool) bool {
	if add, idx := phys._refdec(p_pg); add {
		fl := &phys.freei
		cnt := &phys.freelen
		if ispmap {
			fl = &phys.pmaps
			cnt = &phys.pmaplen
		}
		phys._phys_insert(fl, idx, phys, cnt)
		return true
	}
	return false
}

// Dec_pmap decreases the reference count of a pmap, freeing it when it
// reaches zero.
func (phys *Physmem_t) Dec_pmap(p_pmap Pa_t) {
	phys._phys_put(p_pmap, true)
}

// Dmap returns the frame backing a physical address. The teacher calls
// this "the direct map" because on real hardware it is a standing virtual
// mapping covering all of physical memory; here the frame already lives in
// Go's address space, so Dmap is a lookup into the arena rather than a
// pointer computation through a page table.
func (phys *Physmem_t) Dmap(p Pa_t) *Pg_t {
	return pgArena.at(p)
}

// Dmap_v2p returns the simulated physical address of a frame returned by
// Dmap.
func (phys *Physmem_t) Dmap_v2p(v *Pg_t) Pa_t {
	return pgArena.frameOf(v)
}

// Dmap8 returns a byte slice view of the page containing physical address p.
func (phys *Physmem_t) Dmap8(p Pa_t) []uint8 {
	pg := phys.Dmap(p)
	off := p & PGOFFSET
	bpg := Pg2bytes(pg)
	return bpg[off:]
}

// ArenaBytes returns an n-byte slice of the simulated physical arena
// starting at p, crossing page boundaries freely. Unlike Dmap8 (which
// views exactly one frame, the unit mem's own allocator hands out), this
// is for callers like heap that carve sub-page and multi-page ranges out
// of the same underlying arena.
func (phys *Physmem_t) ArenaBytes(p Pa_t, n int) []uint8 {
	return pgArena.buf[int(p) : int(p)+n]
}

// Pgcount reports the number of free pages and page-table pages.
func (phys *Physmem_t) Pgcount() (int, int) {
	phys.Lock()
	defer phys.Unlock()
	return int(phys.freelen), int(phys.pmaplen)
}

// Physmem is the global physical memory allocator instance.
var Physmem = &Physmem_t{}

// Phys_init reserves respgs frames of simulated physical memory and
// initializes the global allocator. The teacher calls runtime.Get_phys() in
// a loop to harvest every frame the bootloader left unused; this kernel
// instead carves frames straight out of a Go-allocated arena sized to
// match, since there is no bootloader memory map to walk.
func Phys_init(respgs int) *Physmem_t {
	phys := Physmem
	pgArena.init(respgs)
	phys.Pgs = make([]Physpg_t, respgs)
	for i := range phys.Pgs {
		phys.Pgs[i].Refcnt = -10
	}
	phys.startn = 0
	phys.freei = 0
	phys.freelen = 1
	phys.pmaps = ^uint32(0)
	phys.Pgs[0].Refcnt = 0
	last := uint32(0)
	phys.Pgs[0].nexti = ^uint32(0)
	for i := uint32(1); i < uint32(respgs); i++ {
		phys.Pgs[i].Refcnt = 0
		phys.Pgs[last].nexti = i
		phys.Pgs[i].nexti = ^uint32(0)
		last = i
		phys.freelen++
	}
	phys.Dmapinit = true

	Zeropg, P_zeropg, _ = phys._refpg_new()
	for i := range Zeropg {
		Zeropg[i] = 0
	}
	phys.Refup(P_zeropg)

	fmt.Printf("mem: reserved %v frames (%vMB)\n", respgs, respgs>>8)
	return phys
}
