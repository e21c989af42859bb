package sys

import (
	"kernel/defs"
	"kernel/elf32"
	"kernel/proc"
	"kernel/ustr"
)

// fsResolve implements elf32.Resolver by reading a candidate path whole
// out of the mounted VFS, the seam elf32 needs to stay decoupled from
// package fs (see elf32.Resolver's doc comment).
func fsResolve(path string) ([]byte, bool) {
	if VFS == nil {
		return nil, false
	}
	vn, err := VFS.Lookup(ustr.Ustr(path))
	if err != 0 || vn.IsDir() {
		return nil, false
	}
	data, rerr := readWholeVnode(vn)
	if rerr != 0 {
		return nil, false
	}
	return data, true
}

// sysDlopen's real work: resolve name against /lib only (no RUNPATH/RPATH
// context for an explicit dlopen, and LD_LIBRARY_PATH is not consulted)
// and install a handle for its resolved dynamic symbol table.
func dlopen(p *proc.Proc_t, name string) int {
	dynsym, _, _, err := elf32.MapLibrary(p.Vm, name, []string{"/lib"}, fsResolve)
	if err != nil {
		return int(-defs.ENOENT)
	}
	return p.DlOpen(name, dynsym)
}
