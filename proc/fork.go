package proc

import (
	"kernel/defs"
	"kernel/fd"
	"kernel/mem"
)

// Fork creates a child of p: a cloned (copy-on-write, see vm.Vm_t.Clone)
// address space, a duplicated FD table with bumped refcounts, and copied
// credentials. It returns the child's pid to the parent.
//
// Real fork() resumes both parent and child at the instruction right after
// the syscall trap, with the child's copy of that same continuation
// returning 0. This kernel has no instruction stream to duplicate, so the
// caller supplies that continuation explicitly as childEntry — the closure
// the child goroutine runs in place of "returning from the fork trap with
// eax=0". Whatever childEntry does is the forked process's entire
// lifetime, the same way the code after an if-fork()-child branch is a
// real process's lifetime.
func Fork(p *Proc_t, childEntry Entry_i) (defs.Pid_t, defs.Err_t) {
	p.Lock()
	if p.state == ZOMBIE {
		p.Unlock()
		return 0, -defs.ESRCH
	}
	p.Unlock()

	childVm, ok := p.Vm.Clone()
	if !ok {
		return 0, -defs.ENOMEM
	}

	child, err := New(p.Name)
	if err != 0 {
		return 0, err
	}
	// New() already allocated a fresh empty address space for child;
	// release it before installing the cloned one in its place.
	mem.Physmem.Dec_pmap(child.Vm.P_pmap)
	child.Vm = childVm

	p.Lock()
	child.Cwd = p.Cwd
	child.Ruid, child.Euid, child.Suid = p.Ruid, p.Euid, p.Suid
	child.Rgid, child.Egid, child.Sgid = p.Rgid, p.Egid, p.Sgid
	child.Umask = p.Umask
	child.prio = p.prio
	child.brkEnd = p.brkEnd
	child.parent = p.Pid
	child.hasParent = true
	srcfds := p.fds
	p.Unlock()

	child.fds = make([]*fd.Fd_t, len(srcfds))
	for i, f := range srcfds {
		if f == nil {
			continue
		}
		nf, err := fd.Copyfd(f)
		if err != 0 {
			continue
		}
		child.fds[i] = nf
	}

	p.Lock()
	p.children = append(p.children, child.Pid)
	p.Unlock()

	child.Start(childEntry)
	return child.Pid, 0
}
