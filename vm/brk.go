package vm

import "kernel/util"

// Shrink is Vmadd_anon's reverse: it unmaps every page in [newend, oldend)
// and truncates (or drops) whichever Vmregion_t entries covered them. A
// region that extends past oldend is kept whole in the region list, even
// though its pages inside the range are unmapped.
// Used by proc's sbrk/brk when the program break moves down.
func (as *Vm_t) Shrink(newend, oldend int) {
	as.Lock_pmap()
	defer as.Unlock_pmap()

	newend = util.Roundup(newend, PGSIZE)
	oldend = util.Roundup(oldend, PGSIZE)
	for va := newend; va < oldend; va += PGSIZE {
		as.Page_remove(va)
	}

	startpgn := uintptr(newend) >> PGSHIFT
	endpgn := uintptr(oldend) >> PGSHIFT

	out := as.Vmregion.regions[:0]
	for _, r := range as.Vmregion.regions {
		rend := r.Pgn + uintptr(r.Pglen)
		switch {
		case r.Pgn >= startpgn && rend <= endpgn:
			// entirely within the shrunk range: drop it
		case r.Pgn < startpgn && rend > startpgn && rend <= endpgn:
			r.Pglen = int(startpgn - r.Pgn)
			out = append(out, r)
		default:
			out = append(out, r)
		}
	}
	as.Vmregion.regions = out
}
