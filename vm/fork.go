package vm

import "kernel/mem"

// NewAddressSpace allocates an address space with a freshly zeroed
// top-level page directory and no mapped regions, suitable for a brand new
// process (the first process, or the post-exec address space built by the
// ELF loader).
func NewAddressSpace() (*Vm_t, bool) {
	pmap, p_pmap, ok := mem.Physmem.Pmap_new()
	if !ok {
		return nil, false
	}
	// Pmap_new's underlying Refpg_new does not itself bump the frame's
	// refcount (see mem.Physmem.Refpg_new's doc comment); the first owner
	// of a freshly allocated frame must always Refup it once.
	mem.Physmem.Refup(p_pmap)
	return &Vm_t{Pmap: pmap, P_pmap: p_pmap}, true
}

// Clone duplicates as into a new address space for a forked child.
//
// _mkvmi's own comment ("don't specify cow, present etc. -- page fault
// will handle all that") establishes that this kernel's fault handler,
// Sys_pgfault, already knows how to split a PTE_COW page lazily on the
// first write. Clone leans on exactly that: rather than copying every
// mapped page up front, it marks each private page COW in both address
// spaces and lets the two sides share the one physical frame (via
// mem.Physmem.Refup) until either writes to it.
//
// Shared regions (VSANON, and VFILE mappings opened MAP_SHARED) are not
// marked COW — both address spaces must keep observing each other's
// writes, so their frames are simply shared outright.
func (as *Vm_t) Clone() (*Vm_t, bool) {
	as.Lock_pmap()
	defer as.Unlock_pmap()

	child, ok := NewAddressSpace()
	if !ok {
		return nil, false
	}

	for _, r := range as.Vmregion.regions {
		nr := &Vminfo_t{
			Mtype: r.Mtype,
			Pgn:   r.Pgn,
			Pglen: r.Pglen,
			Perms: r.Perms,
		}
		if r.Mtype == VFILE {
			nr.file = r.file
			nr.file.mfile.mapcount += r.Pglen
		}
		child.Vmregion.insert(nr)

		shared := r.Mtype == VSANON || (r.Mtype == VFILE && r.file.shared)

		for pgn := r.Pgn; pgn < r.Pgn+uintptr(r.Pglen); pgn++ {
			va := pgn << mem.PGSHIFT
			pte := Pmap_lookup(as.Pmap, int(va))
			if pte == nil || *pte&mem.PTE_P == 0 {
				continue
			}
			if !shared {
				*pte = (*pte &^ (mem.PTE_W | mem.PTE_WASCOW)) | mem.PTE_COW
			}
			mem.Physmem.Refup(*pte & mem.PTE_ADDR)
			if cpte, ok := nr.Ptefor(child.Pmap, va); ok {
				*cpte = *pte
			}
		}
	}
	return child, true
}
