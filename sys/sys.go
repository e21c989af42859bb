// Package sys is the kernel's system-call layer: a numbered dispatch
// table reached from the trampoline that spec.md §4.7 describes as
// "software interrupt vector 0x80; number in eax; up to five arguments in
// ebx, ecx, edx, esi, edi; return value in eax". This kernel has no real
// interrupt vector to install a handler at (see package proc's doc
// comment on the closure-based execution model), so Dispatch stands in
// for the trampoline: a process body calls sys.Dispatch the same way
// real user code executes "int $0x80", with the same five-register
// argument convention and the same negated-errno return convention.
package sys

import (
	"kernel/defs"
	"kernel/proc"
)

// NR_MAX bounds the syscall table; numbers are assigned with the gaps
// original_source/src/syscall.h leaves between groups (exit/fork/io early,
// process control in the 20s-40s, newer additions filling whatever room
// is left), matching spec.md §4.7's "fixed table, gaps tolerated".
const NR_MAX = 220

const (
	SYS_EXIT   = 1
	SYS_FORK   = 2
	SYS_READ   = 3
	SYS_WRITE  = 4
	SYS_OPEN   = 5
	SYS_CLOSE  = 6
	SYS_WAIT   = 7
	SYS_CREAT  = 8
	SYS_UNLINK = 10
	SYS_EXECVE = 11

	SYS_GETPID  = 20
	SYS_GETUID  = 21
	SYS_GETEUID = 22
	SYS_GETGID  = 23
	SYS_GETEGID = 24
	SYS_SETUID  = 25
	SYS_SETEUID = 26
	SYS_SETGID  = 27
	SYS_SETEGID = 28
	SYS_KILL    = 29
	SYS_RENICE  = 30
	SYS_GETPRIO = 31

	SYS_MKDIR = 39
	SYS_RMDIR = 40

	SYS_DUP  = 41
	SYS_DUP2 = 42

	SYS_STAT  = 50
	SYS_FSTAT = 51
	SYS_LSTAT = 52
	SYS_CHMOD = 53
	SYS_IOCTL = 54
	SYS_FCHMOD = 55
	SYS_CHOWN  = 56
	SYS_FCHOWN = 57

	SYS_BRK = 45

	SYS_WAITPID = 60

	SYS_UNAME = 65

	SYS_SBRK = 69

	SYS_LSEEK = 70

	SYS_DLOPEN       = 80
	SYS_DLSYM        = 81
	SYS_DLCLOSE      = 82
	SYS_DL_GET_INIT  = 83
	SYS_DL_GET_FINI  = 84
	SYS_MPROTECT     = 85

	SYS_YIELD        = 158
	SYS_SLEEP        = 162
	SYS_NANOSLEEP    = 163
	SYS_MOUNT        = 165
	SYS_UMOUNT       = 166
	SYS_READDIR_FD   = 167
	SYS_MMAP         = 168
	SYS_MUNMAP       = 169
	SYS_TIME         = 170
	SYS_MMAP_EX      = 171
)

// SyscallFunc is the shape of every entry in the dispatch table: five
// generic argument words in, one signed result word out (negative means
// -errno, per spec.md §7's negated-errno convention).
type SyscallFunc func(p *proc.Proc_t, a1, a2, a3, a4, a5 int) int

var table [NR_MAX]SyscallFunc

func register(nr int, fn SyscallFunc) {
	if table[nr] != nil {
		panic("duplicate syscall number")
	}
	table[nr] = fn
}

func init() {
	register(SYS_EXIT, sysExit)
	register(SYS_FORK, sysFork)
	register(SYS_READ, sysRead)
	register(SYS_WRITE, sysWrite)
	register(SYS_OPEN, sysOpen)
	register(SYS_CLOSE, sysClose)
	register(SYS_WAIT, sysWait)
	register(SYS_CREAT, sysCreat)
	register(SYS_UNLINK, sysUnlink)
	register(SYS_EXECVE, sysExecve)

	register(SYS_GETPID, sysGetpid)
	register(SYS_GETUID, sysGetuid)
	register(SYS_GETEUID, sysGeteuid)
	register(SYS_GETGID, sysGetgid)
	register(SYS_GETEGID, sysGetegid)
	register(SYS_SETUID, sysSetuid)
	register(SYS_SETEUID, sysSeteuid)
	register(SYS_SETGID, sysSetgid)
	register(SYS_SETEGID, sysSetegid)
	register(SYS_KILL, sysKill)
	register(SYS_RENICE, sysRenice)
	register(SYS_GETPRIO, sysGetprio)

	register(SYS_MKDIR, sysMkdir)
	register(SYS_RMDIR, sysRmdir)
	register(SYS_DUP, sysDup)
	register(SYS_DUP2, sysDup2)

	register(SYS_STAT, sysStat)
	register(SYS_FSTAT, sysFstat)
	register(SYS_LSTAT, sysLstat)
	register(SYS_CHMOD, sysChmod)
	register(SYS_FCHMOD, sysFchmod)
	register(SYS_CHOWN, sysChown)
	register(SYS_FCHOWN, sysFchown)
	register(SYS_IOCTL, sysIoctl)

	register(SYS_BRK, sysBrk)
	register(SYS_SBRK, sysSbrk)
	register(SYS_WAITPID, sysWaitpid)
	register(SYS_UNAME, sysUname)
	register(SYS_LSEEK, sysLseek)

	register(SYS_DLOPEN, sysDlopen)
	register(SYS_DLSYM, sysDlsym)
	register(SYS_DLCLOSE, sysDlclose)
	register(SYS_DL_GET_INIT, sysDlGetInit)
	register(SYS_DL_GET_FINI, sysDlGetFini)
	register(SYS_MPROTECT, sysMprotect)

	register(SYS_YIELD, sysYield)
	register(SYS_SLEEP, sysSleep)
	register(SYS_NANOSLEEP, sysNanosleep)
	register(SYS_MOUNT, sysMount)
	register(SYS_UMOUNT, sysUmount)
	register(SYS_READDIR_FD, sysReaddirFd)
	register(SYS_MMAP, sysMmap)
	register(SYS_MMAP_EX, sysMmapEx)
	register(SYS_MUNMAP, sysMunmap)
	register(SYS_TIME, sysTime)
}

// Dispatch is the syscall trampoline's C-dispatcher-equivalent: it looks
// nr up in the fixed table and invokes it, returning ENOSYS for an
// unassigned or out-of-range slot rather than panicking, the same way a
// real kernel tolerates a user program probing syscall numbers it
// doesn't implement.
func Dispatch(p *proc.Proc_t, nr, a1, a2, a3, a4, a5 int) int {
	if nr < 0 || nr >= NR_MAX || table[nr] == nil {
		return int(-defs.ENOSYS)
	}
	return table[nr](p, a1, a2, a3, a4, a5)
}
