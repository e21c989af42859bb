package proc

import (
	"kernel/defs"
	"kernel/fdops"
	"kernel/mem"
	"kernel/util"
	"kernel/vm"
)

// heapBase is where a process's anonymous brk/sbrk heap region starts;
// already page-aligned since mem.USERMIN is a multiple of mem.PGSIZE.
const heapBase = mem.USERMIN

// Sbrk adjusts p's program break by incr bytes and returns the break's
// previous value, the way sbrk(2) does; Brk(end) is expressed in terms of
// it. Growing maps fresh zeroed anonymous pages; shrinking unmaps them.
func Sbrk(p *Proc_t, incr int) (int, defs.Err_t) {
	p.Lock()
	cur := p.brkEnd
	if cur < 0 {
		cur = heapBase
	}
	next := cur + incr
	if next < heapBase || next >= mem.USERMAX {
		p.Unlock()
		return 0, -defs.ENOMEM
	}
	p.brkEnd = next
	p.Unlock()

	oldMapped := util.Roundup(cur, mem.PGSIZE)
	newMapped := util.Roundup(next, mem.PGSIZE)
	switch {
	case newMapped > oldMapped:
		p.Vm.Vmadd_anon(oldMapped, newMapped-oldMapped, vm.PTE_U|vm.PTE_W)
	case newMapped < oldMapped:
		p.Vm.Shrink(newMapped, oldMapped)
	}
	return cur, 0
}

// Brk sets the program break to an absolute address, matching brk(2)'s
// contract (sbrk(0) round-trips through the same path).
func Brk(p *Proc_t, end int) defs.Err_t {
	p.Lock()
	cur := p.brkEnd
	if cur < 0 {
		cur = heapBase
	}
	p.Unlock()
	_, err := Sbrk(p, end-cur)
	return err
}

// Mmap installs an anonymous mapping of len bytes with the given
// protection bits, returning its virtual address. With MAP_FIXED, addr is
// rounded down to a page boundary and the mapping goes there, or EINVAL is
// returned if it does not fit in [heapBase, USERMAX); otherwise the first
// unused gap at or above heapBase is used.
func Mmap(p *Proc_t, addr, length, prot, flags int) (int, defs.Err_t) {
	if length <= 0 {
		return 0, -defs.EINVAL
	}
	pglen := util.Roundup(length, mem.PGSIZE)

	var start int
	if flags&defs.MAP_FIXED != 0 {
		start = util.Rounddown(addr, mem.PGSIZE)
		if start < heapBase || start+pglen > mem.USERMAX {
			return 0, -defs.EINVAL
		}
	} else {
		p.Vm.Lock_pmap()
		start = p.Vm.Unusedva_inner(heapBase, pglen)
		p.Vm.Unlock_pmap()
	}

	perms := mem.Pa_t(vm.PTE_U)
	if prot&defs.PROT_WRITE != 0 {
		perms |= vm.PTE_W
	}
	p.Vm.Vmadd_anon(start, pglen, perms)
	return start, 0
}

// MmapFile maps length bytes of fops starting at foff, shared or private
// per flags, the way mmap(2) with a real fd behaves (spec.md's mmap_ex).
func MmapFile(p *Proc_t, addr, length, prot, flags int, fops fdops.Fdops_i, foff int) (int, defs.Err_t) {
	if length <= 0 {
		return 0, -defs.EINVAL
	}
	pglen := util.Roundup(length, mem.PGSIZE)

	p.Vm.Lock_pmap()
	start := p.Vm.Unusedva_inner(heapBase, pglen)
	p.Vm.Unlock_pmap()

	perms := mem.Pa_t(vm.PTE_U)
	if prot&defs.PROT_WRITE != 0 {
		perms |= vm.PTE_W
	}
	if flags&defs.MAP_SHARED != 0 {
		p.Vm.Vmadd_sharefile(start, pglen, perms, fops, foff, nil)
	} else {
		p.Vm.Vmadd_file(start, pglen, perms, fops, foff)
	}
	for va := start; va < start+pglen; va += mem.PGSIZE {
		if err := p.Vm.Pgfault(defs.Tid_t(p.Pid), uintptr(va), uintptr(vm.PTE_U)); err != 0 {
			p.Vm.Shrink(start, start+pglen)
			return 0, err
		}
	}
	return start, 0
}
