package proc

import (
	"runtime"

	"kernel/defs"
)

// Exit closes every open FD, frees the address space, transitions p to
// ZOMBIE with the given wait(2) status, and wakes the parent's wait/
// waitpid. A process with no live parent (its parent already exited, or
// this is the init process) is reaped immediately rather than left a
// permanent zombie, since there is nothing here to reparent orphans to a
// dedicated init PCB the way a full POSIX kernel would.
func Exit(p *Proc_t, status int) {
	p.closeAllFds()
	p.Vm.Uvmfree()

	p.Lock()
	p.state = ZOMBIE
	p.exitStatus = status
	parent := p.parent
	hasParent := p.hasParent
	p.Unlock()

	pp, ok := Lookup(parent)
	if !hasParent || !ok || pp.State() == ZOMBIE {
		remove(p.Pid)
		return
	}
	pp.childWake.WakeAll()
}

// Yield marks p RUNNABLE again and lets Go's scheduler pick the next
// goroutine to run; see kernel/sched's doc comment for why this kernel
// does not attempt to reimplement CPU-quantum preemption itself.
func Yield(p *Proc_t) {
	p.setState(RUNNABLE)
	runtime.Gosched()
	p.setState(RUNNING)
}

// Wait blocks until any child of p becomes a zombie (or, with nohang,
// returns immediately), reaps the first one found, and returns its pid
// and wait status.
func Wait(p *Proc_t, targetPid defs.Pid_t, nohang bool) (defs.Pid_t, int, defs.Err_t) {
	for {
		p.Lock()
		if len(p.children) == 0 {
			p.Unlock()
			return 0, 0, -defs.ECHILD
		}
		for i, cpid := range p.children {
			if targetPid != -1 && cpid != targetPid {
				continue
			}
			c, ok := Lookup(cpid)
			if !ok {
				continue
			}
			if c.State() == ZOMBIE {
				p.children = append(p.children[:i], p.children[i+1:]...)
				p.Unlock()
				c.Lock()
				st := c.exitStatus
				c.Unlock()
				remove(cpid)
				return cpid, st, 0
			}
		}
		p.Unlock()
		if nohang {
			return 0, 0, 0
		}
		w := p.childWake.Enqueue(defs.Tid_t(p.Pid), p.prio)
		w.Wait()
	}
}
