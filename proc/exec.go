package proc

import (
	"runtime"

	"kernel/fd"
	"kernel/tinfo"
	"kernel/vm"
)

// Exec replaces p's address space with newVm (built by the ELF loader
// from the target binary) and runs entry as p's new body.
//
// Real execve() discards the calling process's address space and returns
// by iret straight to the new program's entry point — execution never
// returns to the old call site. This kernel represents a loaded program
// as a Go closure rather than machine code at an address (see the package
// doc comment), so "never returns" is expressed the same way a tail call
// would be: Exec tears down the old Vm_t, installs the new one, then
// calls entry directly in the caller's own goroutine. Whatever code in
// the caller's Entry_i appears after its call to Exec is exactly as dead
// as the code after a real execve() syscall instruction, and for the same
// reason — Exec does not return to it on success.
func Exec(p *Proc_t, name string, newVm *vm.Vm_t, entry Entry_i) {
	closeOnExec(p)

	oldVm := p.Vm
	p.Lock()
	p.Vm = newVm
	p.Name = name
	p.brkEnd = -1
	p.curEntry = entry
	p.Unlock()
	oldVm.Uvmfree()

	entry(p)
	tinfo.ClearCurrent()
	runtime.Goexit()
}

// closeOnExec closes every FD marked FD_CLOEXEC, per execve(2).
func closeOnExec(p *Proc_t) {
	p.Lock()
	fds := p.fds
	p.Unlock()
	for i, f := range fds {
		if f == nil || f.Perms&fd.FD_CLOEXEC == 0 {
			continue
		}
		p.CloseFd(i)
	}
}
