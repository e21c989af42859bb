// Package defs holds the types and constants shared by every kernel
// subsystem: error codes, identifiers, and the handful of numeric
// conventions that would otherwise create import cycles if they lived next
// to the code that uses them.
package defs

// Err_t is a negative errno-style error code. Zero means success. Kernel
// APIs return Err_t instead of error because the syscall boundary hands the
// raw integer to user space verbatim (see sys.Dispatch).
type Err_t int

// Errno values. Negate when returning to user space.
const (
	EPERM        Err_t = 1
	ENOENT       Err_t = 2
	ESRCH        Err_t = 3
	EINTR        Err_t = 4
	EIO          Err_t = 5
	ENXIO        Err_t = 6
	E2BIG        Err_t = 7
	ENOEXEC      Err_t = 8
	EBADF        Err_t = 9
	ECHILD       Err_t = 10
	EAGAIN       Err_t = 11
	ENOMEM       Err_t = 12
	EACCES       Err_t = 13
	EFAULT       Err_t = 14
	ENOTBLK      Err_t = 15
	EBUSY        Err_t = 16
	EEXIST       Err_t = 17
	EXDEV        Err_t = 18
	ENODEV       Err_t = 19
	ENOTDIR      Err_t = 20
	EISDIR       Err_t = 21
	EINVAL       Err_t = 22
	ENFILE       Err_t = 23
	EMFILE       Err_t = 24
	ENOTTY       Err_t = 25
	EFBIG        Err_t = 27
	ENOSPC       Err_t = 28
	ESPIPE       Err_t = 29
	EROFS        Err_t = 30
	EMLINK       Err_t = 31
	EPIPE        Err_t = 32
	ENAMETOOLONG Err_t = 36
	ENOSYS       Err_t = 38
	ENOTEMPTY    Err_t = 39
	ELOOP        Err_t = 40
	ENOTSOCK     Err_t = 88
	ENOHEAP      Err_t = 253 // kernel heap exhausted mid-copy; not a POSIX code
	ENOPROC      Err_t = 254 // no free PCB slot; not a POSIX code
)

// errnames gives panic messages and log lines a readable label instead of a
// bare integer.
var errnames = map[Err_t]string{
	EPERM: "EPERM", ENOENT: "ENOENT", ESRCH: "ESRCH", EINTR: "EINTR",
	EIO: "EIO", ENXIO: "ENXIO", E2BIG: "E2BIG", ENOEXEC: "ENOEXEC", EBADF: "EBADF",
	ECHILD: "ECHILD", EAGAIN: "EAGAIN", ENOMEM: "ENOMEM", EACCES: "EACCES",
	EFAULT: "EFAULT", ENOTBLK: "ENOTBLK", EBUSY: "EBUSY", EEXIST: "EEXIST",
	EXDEV: "EXDEV", ENODEV: "ENODEV", ENOTDIR: "ENOTDIR", EISDIR: "EISDIR",
	EINVAL: "EINVAL", ENFILE: "ENFILE", EMFILE: "EMFILE", ENOTTY: "ENOTTY",
	EFBIG: "EFBIG", ENOSPC: "ENOSPC", ESPIPE: "ESPIPE", EROFS: "EROFS",
	EMLINK: "EMLINK", EPIPE: "EPIPE", ENAMETOOLONG: "ENAMETOOLONG",
	ENOSYS: "ENOSYS", ENOTEMPTY: "ENOTEMPTY", ELOOP: "ELOOP",
	ENOTSOCK: "ENOTSOCK", ENOHEAP: "ENOHEAP", ENOPROC: "ENOPROC",
}

// String renders the error as its conventional name, e.g. "EINVAL".
func (e Err_t) String() string {
	if e < 0 {
		e = -e
	}
	if n, ok := errnames[e]; ok {
		return n
	}
	return "Err_t(?)"
}

// Pid_t identifies a process. Pids are small monotonic integers indexing
// the fixed-size process table (proc.Proctable), never pointers, so
// parent/child links can't form an ownership cycle.
type Pid_t int

// Tid_t identifies the single thread of control within a process. Biscuit's
// ancestry supports many kernel threads per process; this kernel's Non-goal
// list excludes SMP, so Tid_t exists mainly so signatures match the
// teacher's and a future multi-threaded process model has somewhere to
// grow, but today Tid_t(p.Pid) is the only thread of a process.
type Tid_t int

// Signal numbers, used by kill(2) and reflected into exit status as
// 128+signal.
type Signal_t int

const (
	SIGHUP  Signal_t = 1
	SIGINT  Signal_t = 2
	SIGQUIT Signal_t = 3
	SIGILL  Signal_t = 4
	SIGABRT Signal_t = 6
	SIGFPE  Signal_t = 8
	SIGKILL Signal_t = 9
	SIGSEGV Signal_t = 11
	SIGPIPE Signal_t = 13
	SIGALRM Signal_t = 14
	SIGTERM Signal_t = 15
	SIGCHLD Signal_t = 17
	SIGCONT Signal_t = 18
	SIGSTOP Signal_t = 19
)

// Fatal reports whether sig always terminates its target regardless of a
// handler. SIGKILL and SIGSEGV always terminate; every other signal
// terminates too, because this kernel has no per-handler signal delivery
// infrastructure yet (every signal is, for now, terminate-on-return-to-user).
func (s Signal_t) Fatal() bool {
	return true
}
