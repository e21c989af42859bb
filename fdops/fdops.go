// Package fdops declares the interfaces that sit between a file descriptor
// (fd.Fd_t) and whatever backs it — a vnode, a pipe end, a socket. Keeping
// them in their own package (instead of fd or fs) is what lets fs, vm, and
// circbuf all depend on "some open, readable/writable thing" without
// depending on each other, exactly the seam the teacher draws (fd, circbuf,
// and vm all import "fdops" rather than "fs").
package fdops

import "kernel/defs"

// Userio_i abstracts a destination/source for a byte transfer so the same
// read/write plumbing works whether the other end is a user virtual
// address range (vm.Userbuf_t), an iovec array, or a plain kernel slice
// (vm.Fakeubuf_t) — grounded on vm/userbuf.go's three implementations.
type Userio_i interface {
	Uioread(dst []uint8) (int, defs.Err_t)
	Uiowrite(src []uint8) (int, defs.Err_t)
	Remain() int
	Totalsz() int
}

// Ready_t is a bitmask of poll/select readiness conditions.
type Ready_t uint8

const (
	R_READ Ready_t = 1 << iota
	R_WRITE
	R_ERROR
	R_HUP
)

// Pollmsg_t describes one waiter's interest for Fdops_i.Pollone.
type Pollmsg_t struct {
	Events Ready_t
}

// Fdops_i is the operation set every open file descriptor dispatches
// through, named and shaped after the teacher's Fdops_i (referenced from
// fd.Fd_t.Fops and fd.Copyfd's Reopen/Close calls).
type Fdops_i interface {
	Close() defs.Err_t
	Fstat(*StatSink) defs.Err_t
	Lseek(off, whence int) (int, defs.Err_t)
	Mmapi(offset, len int, inheritable bool) ([]MMapInfo_t, defs.Err_t)
	Pathi() Inode_i
	Read(Userio_i) (int, defs.Err_t)
	Reopen() defs.Err_t
	Write(Userio_i) (int, defs.Err_t)
	Fullpath() (string, defs.Err_t)
	Truncate(newlen uint) defs.Err_t
	Pread(dst Userio_i, offset int) (int, defs.Err_t)
	Pwrite(src Userio_i, offset int) (int, defs.Err_t)
	Accept(Userio_i) (Fdops_i, uint, defs.Err_t)
	Bind(Userio_i) defs.Err_t
	Connect(Userio_i) defs.Err_t
	Listen(backlog int) (Fdops_i, defs.Err_t)
	Sendmsg(src Userio_i, toaddr []uint8, cmsg []uint8, flags int) (int, defs.Err_t)
	Recvmsg(dst Userio_i, fromsa Userio_i, cmsg Userio_i, cmsgflags int) (int, int, int, Ready_t, defs.Err_t)
	Pollone(Pollmsg_t) (Ready_t, defs.Err_t)
	Getsockopt(opt int, bufarg Userio_i, intarg int) (int, defs.Err_t)
	Setsockopt(level, opt int, bufarg Userio_i, intarg int) defs.Err_t
	Shutdown(read, write bool) defs.Err_t
}

// Inode_i is implemented by the vnode kind backing an fd, letting fd-layer
// code (dup tables, mmap) talk about "the underlying file" without
// depending on package fs.
type Inode_i interface {
	Inum() int
}

// StatSink receives the fields fstat/stat/lstat fill in; it's the minimal
// projection of stat.Stat_t that Fdops_i implementations can populate
// without importing the stat package's on-wire byte layout.
type StatSink struct {
	Mode  uint
	Size  uint
	UID   uint
	GID   uint
	Rdev  uint
	Inum  uint
}

// MMapInfo_t names a page that backs a file-mapped region, mirroring
// mem.Mmapinfo_t's role in the teacher without this package depending on
// mem. PhysFrame is a mem.Pa_t value in disguise (both are 32-bit frame
// addresses on this target); vm converts it back at the one call site that
// cares.
type MMapInfo_t struct {
	VirtOffset int
	PhysFrame  uint32
}
