package vm

import (
	"sort"

	"kernel/defs"
	"kernel/fdops"
	"kernel/mem"
)

// Re-exported so call sites written against the teacher's bare names (no
// mem. prefix) still compile; the definitions live in mem since Pa_t and
// the PTE bit layout are physical memory manager concerns.
const (
	PGSHIFT    = mem.PGSHIFT
	PGSIZE     = mem.PGSIZE
	PGOFFSET   = mem.PGOFFSET
	PTE_P      = mem.PTE_P
	PTE_W      = mem.PTE_W
	PTE_U      = mem.PTE_U
	PTE_PCD    = mem.PTE_PCD
	PTE_A      = mem.PTE_A
	PTE_D      = mem.PTE_D
	PTE_PS     = mem.PTE_PS
	PTE_G      = mem.PTE_G
	PTE_COW    = mem.PTE_COW
	PTE_WASCOW = mem.PTE_WASCOW
	PTE_ADDR   = mem.PTE_ADDR
)

// mtype_t distinguishes the three kinds of virtual memory region this
// kernel supports.
type mtype_t int

const (
	VANON  mtype_t = iota // private anonymous memory, demand-zero, COW on fork
	VFILE                 // file backed mapping, private or shared
	VSANON                // shared anonymous memory (two Vm_t's share frames)
)

// Mfile_t is the part of a file-backed mapping shared by every address
// space that maps the same file region, so unmapping in one process
// doesn't disturb another's mapping of the same pages.
type Mfile_t struct {
	foff     int
	mfops    fdops.Fdops_i
	unpin    mem.Unpin_i
	mapcount int
}

// Vminfo_t describes one contiguous virtual memory region: its page range,
// its permissions, and (for VFILE regions) the file backing it.
type Vminfo_t struct {
	Mtype mtype_t
	Pgn   uintptr
	Pglen int
	Perms uint
	file  struct {
		foff   int
		mfile  *Mfile_t
		shared bool
	}
}

func (vmi *Vminfo_t) contains(pgn uintptr) bool {
	return pgn >= vmi.Pgn && pgn < vmi.Pgn+uintptr(vmi.Pglen)
}

// Ptefor walks pmap, allocating intermediate page directory pages as
// needed, and returns a pointer to the leaf PTE for va.
func (vmi *Vminfo_t) Ptefor(pmap *mem.Pmap_t, va uintptr) (*mem.Pa_t, bool) {
	pte, err := pmap_walk(pmap, int(va), mem.PTE_U|mem.PTE_W)
	if err != 0 {
		return nil, false
	}
	return pte, true
}

// Filepage resolves the frame backing faultaddr for a VFILE region by
// asking the file's Fdops_i to map the containing page.
func (vmi *Vminfo_t) Filepage(faultaddr uintptr) (*mem.Pg_t, mem.Pa_t, defs.Err_t) {
	pgoff := int(faultaddr>>mem.PGSHIFT) - int(vmi.Pgn)
	foff := vmi.file.foff + pgoff*mem.PGSIZE
	infos, err := vmi.file.mfile.mfops.Mmapi(foff, mem.PGSIZE, !vmi.file.shared)
	if err != 0 {
		return nil, 0, err
	}
	if len(infos) == 0 {
		panic("mmapi returned no pages")
	}
	p_pg := mem.Pa_t(infos[0].PhysFrame)
	return mem.Physmem.Dmap(p_pg), p_pg, 0
}

// Vmregion_t tracks every mapped region in an address space as a
// page-number-sorted slice; lookups binary search it. Modification happens
// only while Vm_t's mutex is held, as in the teacher.
type Vmregion_t struct {
	regions []*Vminfo_t
}

func (vr *Vmregion_t) insert(vmi *Vminfo_t) {
	vr.regions = append(vr.regions, vmi)
	sort.Slice(vr.regions, func(i, j int) bool {
		return vr.regions[i].Pgn < vr.regions[j].Pgn
	})
}

// Lookup finds the region containing virtual address va, if any.
func (vr *Vmregion_t) Lookup(va uintptr) (*Vminfo_t, bool) {
	pgn := va >> mem.PGSHIFT
	i := sort.Search(len(vr.regions), func(i int) bool {
		return vr.regions[i].Pgn+uintptr(vr.regions[i].Pglen) > pgn
	})
	if i >= len(vr.regions) || !vr.regions[i].contains(pgn) {
		return nil, false
	}
	return vr.regions[i], true
}

// empty finds pglen-long run of unused virtual address space at or after
// startva, returning the found address and the length of the gap found.
func (vr *Vmregion_t) empty(startva, length uintptr) (uintptr, uintptr) {
	cur := startva
	for _, r := range vr.regions {
		rstart := r.Pgn << mem.PGSHIFT
		rend := (r.Pgn + uintptr(r.Pglen)) << mem.PGSHIFT
		if rend <= cur {
			continue
		}
		if rstart >= cur+length {
			break
		}
		cur = rend
	}
	return cur, length
}

// Clear drops every region from the address space, releasing file-backed
// ones' reference on their Mfile_t.
func (vr *Vmregion_t) Clear() {
	for _, r := range vr.regions {
		if r.Mtype == VFILE {
			r.file.mfile.mapcount--
		}
	}
	vr.regions = nil
}

// x86-32 non-PAE addresses split into a 10-bit directory index, a 10-bit
// table index, and a 12-bit page offset. pdeIdx/pteIdx pull the first two
// out of a virtual address.
func pdeIdx(va int) uint32 { return (uint32(va) >> 22) & 0x3ff }
func pteIdx(va int) uint32 { return (uint32(va) >> 12) & 0x3ff }

// pmap_walk returns the leaf PTE for va within the two-level page
// directory pmap, allocating the second-level page table on demand. perms
// is OR'd into a newly-created directory entry.
func pmap_walk(pmap *mem.Pmap_t, va int, perms mem.Pa_t) (*mem.Pa_t, defs.Err_t) {
	if pmap == nil {
		panic("nil pmap")
	}
	pde := &pmap[pdeIdx(va)]
	if *pde&mem.PTE_P == 0 {
		_, p_ptab, ok := mem.Physmem.Pmap_new()
		if !ok {
			return nil, -defs.ENOMEM
		}
		*pde = p_ptab | perms | mem.PTE_P
	}
	ptab := mem.Pg2pmap(mem.Physmem.Dmap(*pde & mem.PTE_ADDR))
	return &ptab[pteIdx(va)], 0
}

// Uvmfree_inner walks every region in vr and drops the frame backing each
// mapped page, then frees the second-level page table frames pmap's
// directory entries point at. The top-level directory itself is freed by
// the caller via mem.Physmem.Dec_pmap, once its own refcount reaches zero.
func Uvmfree_inner(pmap *mem.Pmap_t, p_pmap mem.Pa_t, vr *Vmregion_t) {
	for _, r := range vr.regions {
		for pgn := r.Pgn; pgn < r.Pgn+uintptr(r.Pglen); pgn++ {
			va := int(pgn << mem.PGSHIFT)
			pte := Pmap_lookup(pmap, va)
			if pte == nil || *pte&mem.PTE_P == 0 {
				continue
			}
			mem.Physmem.Refdown(*pte & mem.PTE_ADDR)
			*pte = 0
		}
	}
	for i := range pmap {
		if pmap[i]&mem.PTE_P != 0 {
			mem.Physmem.Refdown(pmap[i] & mem.PTE_ADDR)
			pmap[i] = 0
		}
	}
}

// Pmap_lookup returns the leaf PTE for va, or nil if no second-level table
// is installed yet.
func Pmap_lookup(pmap *mem.Pmap_t, va int) *mem.Pa_t {
	pde := pmap[pdeIdx(va)]
	if pde&mem.PTE_P == 0 {
		return nil
	}
	ptab := mem.Pg2pmap(mem.Physmem.Dmap(pde & mem.PTE_ADDR))
	return &ptab[pteIdx(va)]
}
