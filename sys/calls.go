package sys

import (
	"time"

	"kernel/defs"
	"kernel/proc"
	"kernel/vm"
)

func sysExit(p *proc.Proc_t, status, _, _, _, _ int) int {
	proc.Exit(p, defs.MkExited(status&0xff))
	return 0
}

// sysFork's childEntry is p.CurEntry(): the same Go closure p is currently
// running, matching spec.md §4.7's "fork preserves the same eip in both
// processes" as closely as a closure-based process model can (see
// proc.Proc_t.curEntry's doc comment). The child's own copy of that
// closure observes Fork's return value as 0 because every Entry_i is
// written to branch on the syscall's own return channel, exactly as real
// fork(2)'d code branches on eax==0.
func sysFork(p *proc.Proc_t, _, _, _, _, _ int) int {
	child, err := proc.Fork(p, p.CurEntry())
	if err != 0 {
		return int(err)
	}
	return int(child)
}

func sysWait(p *proc.Proc_t, statusAddr, _, _, _, _ int) int {
	pid, status, err := proc.Wait(p, -1, false)
	if err != 0 {
		return int(err)
	}
	if statusAddr != 0 {
		p.Vm.Userwriten(statusAddr, 4, status)
	}
	return int(pid)
}

func sysWaitpid(p *proc.Proc_t, targetPid, statusAddr, options, _, _ int) int {
	nohang := options&defs.WNOHANG != 0
	pid, status, err := proc.Wait(p, defs.Pid_t(targetPid), nohang)
	if err != 0 {
		return int(err)
	}
	if statusAddr != 0 && pid != 0 {
		p.Vm.Userwriten(statusAddr, 4, status)
	}
	return int(pid)
}

func sysGetpid(p *proc.Proc_t, _, _, _, _, _ int) int { return int(p.Pid) }

func sysGetuid(p *proc.Proc_t, _, _, _, _, _ int) int   { return p.Getuid() }
func sysGeteuid(p *proc.Proc_t, _, _, _, _, _ int) int  { return p.Geteuid() }
func sysGetgid(p *proc.Proc_t, _, _, _, _, _ int) int   { return p.Getgid() }
func sysGetegid(p *proc.Proc_t, _, _, _, _, _ int) int  { return p.Getegid() }

func sysSetuid(p *proc.Proc_t, uid, _, _, _, _ int) int  { return int(p.Setuid(uid)) }
func sysSeteuid(p *proc.Proc_t, uid, _, _, _, _ int) int { return int(p.Seteuid(uid)) }
func sysSetgid(p *proc.Proc_t, gid, _, _, _, _ int) int  { return int(p.Setgid(gid)) }
func sysSetegid(p *proc.Proc_t, gid, _, _, _, _ int) int { return int(p.Setegid(gid)) }

func sysKill(p *proc.Proc_t, pid, sig, _, _, _ int) int {
	return int(proc.Kill(defs.Pid_t(pid), defs.Signal_t(sig)))
}

// sysRenice is this kernel's renice(2): a non-root caller may only raise
// its own numeric priority (see proc.Proc_t.SetPriority's doc comment).
func sysRenice(p *proc.Proc_t, prio, _, _, _, _ int) int {
	return int(p.SetPriority(prio))
}

func sysGetprio(p *proc.Proc_t, _, _, _, _, _ int) int { return p.Priority() }

func sysYield(p *proc.Proc_t, _, _, _, _, _ int) int {
	proc.Yield(p)
	return 0
}

func sysSleep(p *proc.Proc_t, seconds, _, _, _, _ int) int {
	return int(proc.Sleep(p, time.Duration(seconds)*time.Second))
}

// sysNanosleep takes a pointer to a {sec, nsec} pair laid out the way
// vm.Vm_t.Usertimespec already decodes (two 8-byte fields), matching
// clock_gettime/nanosleep's timespec ABI.
func sysNanosleep(p *proc.Proc_t, tsAddr, _, _, _, _ int) int {
	secs, err := p.Vm.Userreadn(tsAddr, 8)
	if err != 0 {
		return int(-defs.EFAULT)
	}
	nsecs, err := p.Vm.Userreadn(tsAddr+8, 8)
	if err != 0 {
		return int(-defs.EFAULT)
	}
	d := time.Duration(secs)*time.Second + time.Duration(nsecs)*time.Nanosecond
	return int(proc.Sleep(p, d))
}

func sysBrk(p *proc.Proc_t, end, _, _, _, _ int) int {
	return int(proc.Brk(p, end))
}

func sysSbrk(p *proc.Proc_t, incr, _, _, _, _ int) int {
	old, err := proc.Sbrk(p, incr)
	if err != 0 {
		return int(err)
	}
	return old
}

func sysMmap(p *proc.Proc_t, addr, length, prot, flags, _ int) int {
	va, err := proc.Mmap(p, addr, length, prot, flags)
	if err != 0 {
		return int(err)
	}
	return va
}

// sysMmapEx is spec.md §4.5's mmap_ex: mmap backed by an open fd rather
// than MAP_ANON, populated eagerly at request time.
func sysMmapEx(p *proc.Proc_t, addr, length, prot, flags, fdn int) int {
	f, err := p.GetFd(fdn)
	if err != 0 {
		return int(err)
	}
	va, err := proc.MmapFile(p, addr, length, prot, flags, f.Fops, 0)
	if err != 0 {
		return int(err)
	}
	return va
}

func sysMunmap(p *proc.Proc_t, addr, length, _, _, _ int) int {
	p.Vm.Shrink(addr, addr+length)
	return 0
}

// sysMprotect is the mprotect(2)-equivalent supplemented feature
// (vm.Vm_t.Protect); see SPEC_FULL.md's "Supplemented features" section.
func sysMprotect(p *proc.Proc_t, addr, length, prot, _, _ int) int {
	perms := vm.PTE_U
	if prot&defs.PROT_WRITE != 0 {
		perms |= vm.PTE_W
	}
	return int(p.Vm.Protect(addr, length, perms))
}

func sysTime(p *proc.Proc_t, addr, _, _, _, _ int) int {
	now := time.Now().Unix()
	if addr != 0 {
		if err := p.Vm.Userwriten(addr, 8, int(now)); err != 0 {
			return int(-defs.EFAULT)
		}
	}
	return int(now)
}

// kernelVersion is this kernel's uname(2) string, surfaced here and via
// procfs's "version" file (SPEC_FULL.md's supplemented uname feature,
// grounded on original_source's src/kernel.c version banner).
const kernelVersion = "biscuit32 0.1 i386"

// sysUname copies kernelVersion (NUL padded to 65 bytes, matching
// struct utsname's field width) to buf.
func sysUname(p *proc.Proc_t, buf, _, _, _, _ int) int {
	out := make([]byte, 65)
	copy(out, kernelVersion)
	if err := copyoutBuf(p, buf, out); err != 0 {
		return err
	}
	return 0
}

func sysDlopen(p *proc.Proc_t, nameAddr, _, _, _, _ int) int {
	name, err := copyinPath(p, nameAddr)
	if err != 0 {
		return err
	}
	return dlopen(p, name)
}

func sysDlsym(p *proc.Proc_t, handle, nameAddr, _, _, _ int) int {
	name, err := copyinPath(p, nameAddr)
	if err != 0 {
		return err
	}
	addr, derr := p.DlSym(handle, name)
	if derr != 0 {
		return int(derr)
	}
	return int(addr)
}

func sysDlclose(p *proc.Proc_t, handle, _, _, _, _ int) int {
	return int(p.DlClose(handle))
}

func sysDlGetInit(p *proc.Proc_t, i, _, _, _, _ int) int {
	v, ok := p.GetInit(i)
	if !ok {
		return 0
	}
	return int(v)
}

func sysDlGetFini(p *proc.Proc_t, i, _, _, _, _ int) int {
	v, ok := p.GetFini(i)
	if !ok {
		return 0
	}
	return int(v)
}
