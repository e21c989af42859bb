package sys

import (
	"kernel/defs"
	"kernel/elf32"
	"kernel/fs"
	"kernel/klog"
	"kernel/panicscreen"
	"kernel/proc"
	"kernel/stat"
	"kernel/ustr"
)

// VFS is the kernel's single mounted filesystem tree, set once by
// cmd/kernel during boot before any process can make an fs-touching
// syscall. Package sys cannot construct one itself: doing so would need
// every backend (initramfs, devfs, fat, ...) wired into this package
// instead of assembled once at boot per spec.md §9's boot order.
var VFS *fs.Fs_t

// readWholeVnode slurps vn's entire contents into a kernel buffer, used
// both by execve (which needs the whole image to hand to elf32.Parse) and
// by fsResolve (which hands elf32 a DT_NEEDED library's bytes the same
// way).
func readWholeVnode(vn fs.Vnode_i) ([]byte, defs.Err_t) {
	var st stat.Stat_t
	if err := vn.GetStat(&st); err != 0 {
		return nil, err
	}
	sz := int(st.Size())
	buf := make([]byte, sz)
	off := 0
	for off < sz {
		n, err := vn.ReadAt(buf[off:], off)
		if err != 0 {
			return nil, err
		}
		if n == 0 {
			break
		}
		off += n
	}
	return buf[:off], 0
}

// sysExecve implements execve(2): it reads the target binary whole,
// parses and maps it via elf32, and on success replaces p's address
// space. Per spec.md §4.8's failure contract, a failure discovered before
// the old address space is destroyed returns an error to the caller
// (handled entirely by elf32.Load/Parse returning before touching p); a
// binary with no registered native implementation (elf32.Loaded.Body ==
// nil) is ENOEXEC for the same reason — this kernel cannot interpret raw
// machine code.
func sysExecve(p *proc.Proc_t, pathAddr, argvAddr, envpAddr, _, _ int) int {
	path, err := copyinPath(p, pathAddr)
	if err != 0 {
		return err
	}
	argv, err := copyinStrVec(p, argvAddr)
	if err != 0 {
		return err
	}
	envp, err := copyinStrVec(p, envpAddr)
	if err != 0 {
		return err
	}

	if VFS == nil {
		return int(-defs.ENOENT)
	}
	vn, ferr := VFS.Lookup(ustr.Ustr(path))
	if ferr != 0 {
		return int(ferr)
	}
	if vn.IsDir() {
		return int(-defs.EACCES)
	}
	data, rerr := readWholeVnode(vn)
	if rerr != 0 {
		return int(rerr)
	}

	img, perr := elf32.Parse(data)
	if perr != nil {
		return int(-defs.ENOEXEC)
	}
	loaded, lerr := img.Load(path, argv, envp, fsResolve)
	if lerr != nil {
		return int(-defs.ENOEXEC)
	}
	if loaded.Body == nil {
		logUnrunnable(img, loaded.Entry, path)
		return int(-defs.ENOEXEC)
	}

	proc.Exec(p, path, loaded.Vm, loaded.Body)
	return 0
}

// logUnrunnable reports what a binary's real entry-point bytes decode to
// when execve can't find a registered native body for it, so the boot
// log shows the instructions this kernel declined to execute rather than
// a bare ENOEXEC.
func logUnrunnable(img *elf32.Image, entry uint32, path string) {
	off, ok := img.FileOffsetOf(entry)
	if !ok {
		return
	}
	dump := panicscreen.Dump(img.Data(), entry-uint32(off), off)
	klog.Logger.WithField("subsys", "exec").Warnf("%s: %s", path, dump)
}

// ResolveInitBody loads path the same way sysExecve does and, on success,
// installs the resulting address space directly into p and returns its
// registered native body. Used only by cmd/kernel to start PID 1, which
// has no prior address space or user-mode caller for a real execve(2) to
// replace — proc.Exec's "tear down the old Vm" step has nothing to tear
// down yet, so this skips straight to installing the new one.
func ResolveInitBody(p *proc.Proc_t, path string) proc.Entry_i {
	if VFS == nil {
		return nil
	}
	vn, ferr := VFS.Lookup(ustr.Ustr(path))
	if ferr != 0 || vn.IsDir() {
		return nil
	}
	data, rerr := readWholeVnode(vn)
	if rerr != 0 {
		return nil
	}
	img, perr := elf32.Parse(data)
	if perr != nil {
		return nil
	}
	loaded, lerr := img.Load(path, []string{path}, nil, fsResolve)
	if lerr != nil || loaded.Body == nil {
		return nil
	}
	p.Vm = loaded.Vm
	return loaded.Body
}
