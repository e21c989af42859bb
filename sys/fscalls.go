package sys

import (
	"kernel/defs"
	"kernel/fd"
	"kernel/fdops"
	"kernel/fs"
	"kernel/proc"
	"kernel/stat"
	"kernel/ustr"
)

func sysOpen(p *proc.Proc_t, pathAddr, flags, mode, _, _ int) int {
	path, err := copyinPath(p, pathAddr)
	if err != 0 {
		return err
	}
	if VFS == nil {
		return int(-defs.ENOENT)
	}
	nfd, ferr := VFS.Open(ustrToPath(path), flags, uint(mode))
	if ferr != 0 {
		return int(ferr)
	}
	if flags&defs.O_CLOEXEC != 0 {
		nfd.Perms |= fd.FD_CLOEXEC
	}
	fdn, aerr := p.AddFd(nfd)
	if aerr != 0 {
		nfd.Fops.Close()
		return int(aerr)
	}
	return fdn
}

func sysClose(p *proc.Proc_t, fdn, _, _, _, _ int) int {
	return int(p.CloseFd(fdn))
}

func sysCreat(p *proc.Proc_t, pathAddr, mode, _, _, _ int) int {
	return sysOpen(p, pathAddr, defs.O_CREAT|defs.O_WRONLY|defs.O_TRUNC, mode, 0, 0)
}

func sysUnlink(p *proc.Proc_t, pathAddr, _, _, _, _ int) int {
	path, err := copyinPath(p, pathAddr)
	if err != 0 {
		return err
	}
	if VFS == nil {
		return int(-defs.ENOENT)
	}
	return int(VFS.Unlink(ustrToPath(path)))
}

func sysMkdir(p *proc.Proc_t, pathAddr, mode, _, _, _ int) int {
	path, err := copyinPath(p, pathAddr)
	if err != 0 {
		return err
	}
	if VFS == nil {
		return int(-defs.ENOENT)
	}
	return int(VFS.Mkdir(ustrToPath(path), uint(mode)))
}

// sysRmdir reuses Unlink: the VFS's backends are responsible for refusing
// to unlink a non-empty directory (ENOTEMPTY), the same split real rmdir
// and unlink make at the syscall layer while sharing one directory-entry
// removal primitive underneath.
func sysRmdir(p *proc.Proc_t, pathAddr, _, _, _, _ int) int {
	return sysUnlink(p, pathAddr, 0, 0, 0, 0)
}

func sysRead(p *proc.Proc_t, fdn, bufAddr, n, _, _ int) int {
	f, err := p.GetFd(fdn)
	if err != 0 {
		return int(err)
	}
	ub := p.Vm.Mkuserbuf(bufAddr, n)
	cnt, rerr := f.Fops.Read(ub)
	if rerr != 0 {
		return int(rerr)
	}
	return cnt
}

func sysWrite(p *proc.Proc_t, fdn, bufAddr, n, _, _ int) int {
	f, err := p.GetFd(fdn)
	if err != 0 {
		return int(err)
	}
	ub := p.Vm.Mkuserbuf(bufAddr, n)
	cnt, werr := f.Fops.Write(ub)
	if werr != 0 {
		return int(werr)
	}
	return cnt
}

func sysLseek(p *proc.Proc_t, fdn, off, whence, _, _ int) int {
	f, err := p.GetFd(fdn)
	if err != 0 {
		return int(err)
	}
	npos, serr := f.Fops.Lseek(off, whence)
	if serr != 0 {
		return int(serr)
	}
	return npos
}

func sysDup(p *proc.Proc_t, fdn, _, _, _, _ int) int {
	f, err := p.GetFd(fdn)
	if err != 0 {
		return int(err)
	}
	nf, derr := fd.Copyfd(f)
	if derr != 0 {
		return int(derr)
	}
	newfdn, aerr := p.AddFd(nf)
	if aerr != 0 {
		nf.Fops.Close()
		return int(aerr)
	}
	return newfdn
}

func sysDup2(p *proc.Proc_t, oldfdn, newfdn, _, _, _ int) int {
	f, err := p.GetFd(oldfdn)
	if err != 0 {
		return int(err)
	}
	nf, derr := fd.Copyfd(f)
	if derr != 0 {
		return int(derr)
	}
	if serr := p.SetFdAt(newfdn, nf); serr != 0 {
		nf.Fops.Close()
		return int(serr)
	}
	return newfdn
}

func fillStatSink(st *stat.Stat_t, sink *fdops.StatSink) {
	st.Wmode(sink.Mode)
	st.Wsize(sink.Size)
	st.Wuid(sink.UID)
	st.Wgid(sink.GID)
	st.Wrdev(sink.Rdev)
	st.Wino(sink.Inum)
}

func sysStat(p *proc.Proc_t, pathAddr, statAddr, _, _, _ int) int {
	path, err := copyinPath(p, pathAddr)
	if err != 0 {
		return err
	}
	if VFS == nil {
		return int(-defs.ENOENT)
	}
	var st stat.Stat_t
	if ferr := VFS.Stat(ustrToPath(path), &st); ferr != 0 {
		return int(ferr)
	}
	return int(copyoutBuf(p, statAddr, st.Bytes()))
}

// sysLstat matches sysStat: this VFS has no symlink-following distinction
// at fs.Fs_t.Stat's level (the path resolver itself stops following
// symlinks at resolution depth, per spec.md §4.6), so lstat and stat share
// an implementation, matching how several of this kernel's backends treat
// symlinks as plain files today.
func sysLstat(p *proc.Proc_t, pathAddr, statAddr, _, _, _ int) int {
	return sysStat(p, pathAddr, statAddr, 0, 0, 0)
}

func sysFstat(p *proc.Proc_t, fdn, statAddr, _, _, _ int) int {
	f, err := p.GetFd(fdn)
	if err != 0 {
		return int(err)
	}
	var sink fdops.StatSink
	if ferr := f.Fops.Fstat(&sink); ferr != 0 {
		return int(ferr)
	}
	var st stat.Stat_t
	fillStatSink(&st, &sink)
	return int(copyoutBuf(p, statAddr, st.Bytes()))
}

// chownable_i is an optional capability a Vnode_i backend may implement to
// support chmod/chown; none of this kernel's backends do today (metadata
// is derived, not stored, for initramfs/devfs/procfs/tmpfs/fat), so these
// calls report ENOSYS until a backend opts in, rather than silently
// succeeding or panicking on a failed type assertion.
type chownable_i interface {
	Chmod(mode uint) defs.Err_t
	Chown(uid, gid uint) defs.Err_t
}

func sysChmod(p *proc.Proc_t, pathAddr, mode, _, _, _ int) int {
	path, err := copyinPath(p, pathAddr)
	if err != 0 {
		return err
	}
	if VFS == nil {
		return int(-defs.ENOENT)
	}
	vn, ferr := VFS.Lookup(ustrToPath(path))
	if ferr != 0 {
		return int(ferr)
	}
	c, ok := vn.(chownable_i)
	if !ok {
		return int(-defs.ENOSYS)
	}
	return int(c.Chmod(uint(mode)))
}

func sysFchmod(p *proc.Proc_t, fdn, mode, _, _, _ int) int {
	f, err := p.GetFd(fdn)
	if err != 0 {
		return int(err)
	}
	c, ok := f.Fops.Pathi().(chownable_i)
	if !ok {
		return int(-defs.ENOSYS)
	}
	return int(c.Chmod(uint(mode)))
}

func sysChown(p *proc.Proc_t, pathAddr, uid, gid, _, _ int) int {
	path, err := copyinPath(p, pathAddr)
	if err != 0 {
		return err
	}
	if VFS == nil {
		return int(-defs.ENOENT)
	}
	vn, ferr := VFS.Lookup(ustrToPath(path))
	if ferr != 0 {
		return int(ferr)
	}
	c, ok := vn.(chownable_i)
	if !ok {
		return int(-defs.ENOSYS)
	}
	return int(c.Chown(uint(uid), uint(gid)))
}

func sysFchown(p *proc.Proc_t, fdn, uid, gid, _, _ int) int {
	f, err := p.GetFd(fdn)
	if err != 0 {
		return int(err)
	}
	c, ok := f.Fops.Pathi().(chownable_i)
	if !ok {
		return int(-defs.ENOSYS)
	}
	return int(c.Chown(uint(uid), uint(gid)))
}

func sysReaddirFd(p *proc.Proc_t, fdn, index, nameAddr, bufSize, outType int) int {
	f, err := p.GetFd(fdn)
	if err != 0 {
		return int(err)
	}
	vn, ok := f.Fops.Pathi().(fs.Vnode_i)
	if !ok {
		return int(-defs.ENOTDIR)
	}
	ents, derr := vn.Readdir()
	if derr != 0 {
		return int(derr)
	}
	if index < 0 || index >= len(ents) {
		return 0
	}
	e := ents[index]
	name := e.Name
	if len(name) >= bufSize {
		name = name[:bufSize-1]
	}
	out := append(append(ustr.Ustr{}, name...), 0)
	if cerr := copyoutBuf(p, nameAddr, out); cerr != 0 {
		return cerr
	}
	if outType != 0 {
		t := 0
		if e.IsDir {
			t = 1
		}
		p.Vm.Userwriten(outType, 4, t)
	}
	return 1
}

// ioctl_i is an optional capability an Fdops_i implementation (a device
// node, typically) exposes for ioctl(2) pass-through, per spec.md §4.6's
// "ioctl(fd, cmd, arg): pass-through to the backend/device".
type ioctl_i interface {
	Ioctl(cmd, arg int) (int, defs.Err_t)
}

func sysIoctl(p *proc.Proc_t, fdn, cmd, arg, _, _ int) int {
	f, err := p.GetFd(fdn)
	if err != 0 {
		return int(err)
	}
	iop, ok := f.Fops.(ioctl_i)
	if !ok {
		return int(-defs.ENOTTY)
	}
	ret, ierr := iop.Ioctl(cmd, arg)
	if ierr != 0 {
		return int(ierr)
	}
	return ret
}

func sysMount(p *proc.Proc_t, sourceAddr, targetAddr, typAddr, _, _ int) int {
	if p.Geteuid() != 0 {
		return int(-defs.EPERM)
	}
	source, err := copyinPath(p, sourceAddr)
	if err != 0 {
		return err
	}
	target, err := copyinPath(p, targetAddr)
	if err != 0 {
		return err
	}
	typ, err := copyinPath(p, typAddr)
	if err != 0 {
		return err
	}
	if VFS == nil {
		return int(-defs.ENOENT)
	}
	backend, berr := fs.NewBackend(typ, source)
	if berr != 0 {
		return int(berr)
	}
	return int(VFS.Mount(ustrToPath(target), backend))
}

func sysUmount(p *proc.Proc_t, targetAddr, _, _, _, _ int) int {
	if p.Geteuid() != 0 {
		return int(-defs.EPERM)
	}
	target, err := copyinPath(p, targetAddr)
	if err != 0 {
		return err
	}
	if VFS == nil {
		return int(-defs.ENOENT)
	}
	return int(VFS.Unmount(ustrToPath(target)))
}
