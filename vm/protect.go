package vm

import (
	"kernel/defs"
	"kernel/mem"
	"kernel/util"
)

// Protect changes the permissions of the mapped region covering
// [va, va+length) to perms (PTE_U plus optionally PTE_W), the mprotect(2)
// operation original_source exposes that spec.md's distillation dropped
// (see SPEC_FULL.md's "Supplemented features"). It fails with ENOMEM if
// any page in the range is unmapped, matching mprotect(2)'s contract that
// the whole range must already be part of the process's address space.
//
// Changing permissions for only part of a Vminfo_t region does not split
// it: the region's own Perms field is overwritten for its full extent, so
// a narrower Protect than the covering region's bounds widens its effect
// to the whole region rather than carving out a sub-region. Real mprotect
// allows arbitrary sub-ranges; this is a known simplification, acceptable
// because nothing in this kernel currently relies on a single mapping
// carrying two different protections on different halves of itself.
func (as *Vm_t) Protect(va, length int, perms mem.Pa_t) defs.Err_t {
	if length <= 0 {
		return -defs.EINVAL
	}
	as.Lock_pmap()
	defer as.Unlock_pmap()

	start := util.Rounddown(va, mem.PGSIZE)
	end := util.Roundup(va+length, mem.PGSIZE)

	for cur := start; cur < end; cur += mem.PGSIZE {
		vmi, ok := as.Vmregion.Lookup(uintptr(cur))
		if !ok {
			return -defs.ENOMEM
		}
		vmi.Perms = uint(perms)
	}

	for cur := start; cur < end; cur += mem.PGSIZE {
		pte := Pmap_lookup(as.Pmap, cur)
		if pte == nil || *pte&PTE_P == 0 {
			continue
		}
		if perms&PTE_W != 0 {
			if *pte&PTE_COW == 0 {
				*pte |= PTE_W
			}
		} else {
			*pte &^= PTE_W
		}
	}
	return 0
}
