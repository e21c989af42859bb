package elf32

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"kernel/mem"
	"kernel/proc"
	"kernel/util"
	"kernel/vm"
)

// Resolver turns a candidate absolute path into a library's file bytes,
// the seam that lets elf32 do path search (per spec.md §4.8's order:
// LD_LIBRARY_PATH, RUNPATH, RPATH, /lib) without importing package fs
// itself — the same provider-interface pattern fs/procfs.Provider_i uses
// to keep procfs decoupled from package proc.
type Resolver func(path string) ([]byte, bool)

// registry_t maps a binary's VFS path to the native Go closure standing in
// for its machine code, the seam Load's Body field is filled from. This
// kernel has no x86 interpreter (see the package doc comment and
// SPEC_FULL.md's runtime model), so "loading a program" is necessarily
// split into two real halves done here (ELF parsing, address-space
// mapping, argv/envp layout, dynamic-link bookkeeping) and one simulated
// half (which Go closure actually runs) resolved through this registry,
// grounded on the same name-to-implementation pattern kernel/device uses
// for drivers.
type registry_t struct {
	mu sync.Mutex
	m  map[string]proc.Entry_i
}

// Registry is the kernel-wide table of native program bodies, filled
// through Register. Nothing registers entries at boot, so an execve finds
// a body only for paths some caller has registered.
var Registry = &registry_t{m: map[string]proc.Entry_i{}}

// Register installs body as path's native implementation.
func (r *registry_t) Register(path string, body proc.Entry_i) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[path] = body
}

// Lookup returns path's registered native implementation, if any.
func (r *registry_t) Lookup(path string) (proc.Entry_i, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.m[path]
	return b, ok
}

// searchDirs computes the DT_NEEDED resolution order spec.md §4.8 point 2
// specifies: LD_LIBRARY_PATH (from the new program's envp) first, then the
// binary's own DT_RUNPATH, then its DT_RPATH, then a fixed /lib fallback.
func searchDirs(f *elf.File, envp []string) []string {
	var dirs []string
	for _, kv := range envp {
		if rest, ok := strings.CutPrefix(kv, "LD_LIBRARY_PATH="); ok {
			dirs = append(dirs, strings.Split(rest, ":")...)
		}
	}
	if runpath, err := f.DynString(elf.DT_RUNPATH); err == nil {
		for _, p := range runpath {
			dirs = append(dirs, strings.Split(p, ":")...)
		}
	}
	if rpath, err := f.DynString(elf.DT_RPATH); err == nil {
		for _, p := range rpath {
			dirs = append(dirs, strings.Split(p, ":")...)
		}
	}
	dirs = append(dirs, "/lib")
	return dirs
}

// loadNeeded implicitly links every DT_NEEDED library named by f into as,
// aggregating their .init_array/.fini_array entries the way ld.so runs
// every loaded object's constructors before the main program starts.
func loadNeeded(as *vm.Vm_t, f *elf.File, envp []string, resolve Resolver) ([]uint32, []uint32, error) {
	needed, err := f.DynString(elf.DT_NEEDED)
	if err != nil {
		return nil, nil, fmt.Errorf("elf32: reading DT_NEEDED: %w", err)
	}
	dirs := searchDirs(f, envp)
	var initFns, finiFns []uint32
	for _, name := range needed {
		_, init, fini, err := MapLibrary(as, name, dirs, resolve)
		if err != nil {
			return nil, nil, err
		}
		initFns = append(initFns, init...)
		finiFns = append(finiFns, fini...)
	}
	return initFns, finiFns, nil
}

// MapLibrary resolves name against dirs via resolve, maps its PT_LOAD
// segments into as at a freshly chosen base, and returns its resolved
// dynamic symbol table (absolute addresses, load bias already applied)
// along with its own .init_array/.fini_array entries. Used both for a
// binary's implicit DT_NEEDED libraries (loadNeeded) and for an explicit
// dlopen(3) call (kernel/sys's sysDlopen).
func MapLibrary(as *vm.Vm_t, name string, dirs []string, resolve Resolver) (map[string]uint32, []uint32, []uint32, error) {
	var data []byte
	found := false
	for _, d := range dirs {
		candidate := strings.TrimRight(d, "/") + "/" + name
		if b, ok := resolve(candidate); ok {
			data, found = b, true
			break
		}
	}
	if !found {
		return nil, nil, nil, fmt.Errorf("elf32: could not resolve needed library %q", name)
	}

	lib, err := Parse(data)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("elf32: parsing needed library %q: %w", name, err)
	}

	span := librarySpan(lib.file)
	as.Lock_pmap()
	base := util.Roundup(as.Unusedva_inner(mem.USERMIN, span), mem.PGSIZE)
	as.Unlock_pmap()

	for _, prog := range lib.file.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if err := mapSegmentAt(as, prog, base); err != nil {
			return nil, nil, nil, fmt.Errorf("elf32: mapping library %q: %w", name, err)
		}
	}

	dynsym := map[string]uint32{}
	if syms, err := lib.file.DynamicSymbols(); err == nil {
		for _, s := range syms {
			if s.Name == "" || s.Value == 0 {
				continue
			}
			dynsym[s.Name] = uint32(s.Value) + uint32(base)
		}
	}

	initFns, _ := sectionWords(lib.file, ".init_array")
	finiFns, _ := sectionWords(lib.file, ".fini_array")
	for i := range initFns {
		initFns[i] += uint32(base)
	}
	for i := range finiFns {
		finiFns[i] += uint32(base)
	}

	return dynsym, initFns, finiFns, nil
}

// librarySpan returns the page-rounded size of the virtual address range
// a library's PT_LOAD segments occupy relative to its own base, so a
// fresh non-overlapping home for it can be found with Unusedva_inner.
func librarySpan(f *elf.File) int {
	var max uint64
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if end := p.Vaddr + p.Memsz; end > max {
			max = end
		}
	}
	return util.Roundup(int(max), mem.PGSIZE)
}

// sectionWords decodes name's bytes as an array of little-endian 32-bit
// words, the layout a linker gives .init_array/.fini_array.
func sectionWords(f *elf.File, name string) ([]uint32, error) {
	sec := f.Section(name)
	if sec == nil {
		return nil, nil
	}
	data, err := sec.Data()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, len(data)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return out, nil
}
