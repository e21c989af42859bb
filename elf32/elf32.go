// Package elf32 is the kernel's ELF loader: it validates an ELF32/i386
// image, maps its PT_LOAD segments into a freshly allocated address space,
// zero-fills BSS, lays out the argv/envp vector on a fresh user stack per
// the System V i386 ABI, and resolves PT_DYNAMIC's DT_NEEDED libraries
// through a small loader-assist API (dlopen/dlsym/dlclose), per spec.md
// §4.8 and SPEC_FULL.md's "[ELF loader]" section.
//
// Header decoding reuses the standard library's debug/elf, the same
// package the teacher's own kernel/chentry.go already uses to rewrite an
// ELF entry point; debug/elf has no notion of "map this into a target
// address space" so the segment-mapping and stack-building logic below is
// hand-written, grounded on the teacher's Vm_t region/page-fault machinery
// (vm.Vmadd_anon, Sys_pgfault's demand-zero fill) instead of a real MMU.
package elf32

import (
	"bytes"
	"debug/elf"
	"fmt"

	"kernel/mem"
	"kernel/proc"
	"kernel/util"
	"kernel/vm"
)

// Image is a parsed, not-yet-mapped ELF32 binary.
type Image struct {
	file   *elf.File
	data   []byte
	dynoff int64 // unused: never set or read, always 0
}

// Parse validates data as an ELF32/i386 image per spec.md §4.8's ELF32
// contract: magic (checked by debug/elf itself), class 32-bit,
// little-endian, an executable or dynamic type, and machine i386.
func Parse(data []byte) (*Image, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("elf32: not a 32-bit object (class %v)", f.Class)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("elf32: not little-endian")
	}
	if f.Type != elf.ET_EXEC && f.Type != elf.ET_DYN {
		return nil, fmt.Errorf("elf32: not an executable or dynamic object (type %v)", f.Type)
	}
	if f.Machine != elf.EM_386 {
		return nil, fmt.Errorf("elf32: not an i386 object (machine %v)", f.Machine)
	}
	return &Image{file: f, data: data}, nil
}

// Loaded describes a mapped image: the address space it was mapped into,
// the entry point to resume at, the stack pointer argv/envp were laid out
// from, and the native program body to run in lieu of real machine
// instructions at Entry (see Registry, below).
type Loaded struct {
	Vm       *vm.Vm_t
	Entry    uint32
	StackTop uint32
	Needed   []string
	Body     proc.Entry_i
	InitFns  []uint32
	FiniFns  []uint32
}

const (
	stackPages = 16
	stackSize  = stackPages * mem.PGSIZE
	// one unmapped guard page below USERMAX catches a runaway stack write
	// before it could ever be mistaken for a valid mapping.
	stackTop = mem.USERMAX - mem.PGSIZE
)

// Load maps img into a fresh address space, resolves DT_NEEDED libraries
// via resolve, lays out argv/envp on a new user stack, and returns the
// result ready to hand to proc.Exec. path names the binary being loaded,
// used only to look up its native Body in Registry.
func (img *Image) Load(path string, argv, envp []string, resolve Resolver) (*Loaded, error) {
	as, ok := vm.NewAddressSpace()
	if !ok {
		return nil, fmt.Errorf("elf32: out of memory allocating address space")
	}

	for _, prog := range img.file.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if err := mapSegment(as, prog); err != nil {
			return nil, err
		}
	}

	needed, err := img.file.DynString(elf.DT_NEEDED)
	if err != nil && img.hasDynamic() {
		return nil, fmt.Errorf("elf32: reading DT_NEEDED: %w", err)
	}
	initFns, err := sectionWords(img.file, ".init_array")
	if err != nil {
		initFns = nil
	}
	var finiFns []uint32
	if img.hasDynamic() {
		libInit, libFini, err := loadNeeded(as, img.file, envp, resolve)
		if err != nil {
			return nil, err
		}
		initFns = append(initFns, libInit...)
		finiFns = append(finiFns, libFini...)
	}
	if fa, err := sectionWords(img.file, ".fini_array"); err == nil {
		finiFns = append(finiFns, fa...)
	}

	sp, err := buildStack(as, argv, envp)
	if err != nil {
		return nil, err
	}

	// No native implementation registered for this binary means this
	// kernel has no x86 instruction interpreter to run it with. Mapping
	// still succeeds (dlopen-only loads and loader tests only care about
	// that part); Body is nil and proc.Exec's caller must treat that as
	// ENOEXEC rather than silently resuming nothing.
	body, _ := Registry.Lookup(path)

	return &Loaded{
		Vm:       as,
		Entry:    uint32(img.file.Entry),
		StackTop: sp,
		Needed:   needed,
		Body:     body,
		InitFns:  initFns,
		FiniFns:  finiFns,
	}, nil
}

// FileOffsetOf translates a virtual address within some PT_LOAD segment
// back to a byte offset into the image's own file data, for callers (see
// panicscreen) that want to look at the real bytes loaded at that
// address rather than anything mapped into a Vm_t.
func (img *Image) FileOffsetOf(vaddr uint32) (int, bool) {
	for _, prog := range img.file.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if uint64(vaddr) >= prog.Vaddr && uint64(vaddr) < prog.Vaddr+prog.Filesz {
			return int(prog.Off + (uint64(vaddr) - prog.Vaddr)), true
		}
	}
	return 0, false
}

// Data returns the image's raw file bytes, for the same diagnostic use.
func (img *Image) Data() []byte { return img.data }

func (img *Image) hasDynamic() bool {
	for _, p := range img.file.Progs {
		if p.Type == elf.PT_DYNAMIC {
			return true
		}
	}
	return false
}

// mapSegment maps one PT_LOAD segment into as at its own link-time address
// (bias 0); see mapSegmentAt.
func mapSegment(as *vm.Vm_t, prog *elf.Prog) error {
	return mapSegmentAt(as, prog, 0)
}

// mapSegmentAt maps one PT_LOAD segment into as at prog.Vaddr+bias: a
// private anonymous region sized to the segment's page-rounded memsz, the
// file's bytes copied in up to filesz, and the memsz-filesz tail left
// demand-zero (VANON pages come back zeroed from Sys_pgfault, so no
// explicit zero-fill is needed for the BSS tail). bias is nonzero only
// when mapping a PT_LOAD segment of an ET_DYN shared library resolved via
// DT_NEEDED/dlopen, whose segments are linked relative to address 0.
func mapSegmentAt(as *vm.Vm_t, prog *elf.Prog, bias int) error {
	if prog.Memsz == 0 {
		return nil
	}
	vaddr := int(prog.Vaddr) + bias
	start := util.Rounddown(vaddr, mem.PGSIZE)
	end := util.Roundup(vaddr+int(prog.Memsz), mem.PGSIZE)

	perms := mem.Pa_t(vm.PTE_U)
	if prog.Flags&elf.PF_W != 0 {
		perms |= vm.PTE_W
	}
	as.Vmadd_anon(start, end-start, perms)

	if prog.Filesz == 0 {
		return nil
	}
	buf := make([]byte, prog.Filesz)
	r := prog.Open()
	if _, err := r.Read(buf); err != nil {
		return fmt.Errorf("elf32: reading PT_LOAD segment: %w", err)
	}
	if err := as.K2user(buf, vaddr); err != 0 {
		return fmt.Errorf("elf32: mapping PT_LOAD segment: %v", err)
	}
	return nil
}

