package elf32

import (
	"encoding/binary"
	"testing"

	"kernel/mem"
	"kernel/proc"
)

func TestMain(m *testing.M) {
	mem.Phys_init(4096)
	m.Run()
}

// buildMinimalELF32 encodes a bare Elf32_Ehdr with no program or section
// headers: enough for debug/elf.NewFile to parse successfully and for
// Parse's own class/data/type/machine checks to run against real decoded
// fields instead of hand-rolled ones.
func buildMinimalELF32(class byte, etype, machine uint16, entry uint32) []byte {
	b := make([]byte, 52)
	b[0], b[1], b[2], b[3] = 0x7f, 'E', 'L', 'F'
	b[4] = class // EI_CLASS
	b[5] = 1     // EI_DATA: ELFDATA2LSB
	b[6] = 1     // EI_VERSION
	binary.LittleEndian.PutUint16(b[16:18], etype)
	binary.LittleEndian.PutUint16(b[18:20], machine)
	binary.LittleEndian.PutUint32(b[20:24], 1) // e_version
	binary.LittleEndian.PutUint32(b[24:28], entry)
	// e_phoff, e_shoff left zero: no program/section headers
	binary.LittleEndian.PutUint16(b[40:42], 52) // e_ehsize
	binary.LittleEndian.PutUint16(b[42:44], 32) // e_phentsize
	binary.LittleEndian.PutUint16(b[46:48], 40) // e_shentsize
	return b
}

const (
	elfclass32 = 1
	elfclass64 = 2
	etExec     = 2
	emI386     = 3
	em386Wrong = 62 // EM_X86_64, used to prove the machine check rejects it
)

func TestParseAcceptsValidI386Executable(t *testing.T) {
	data := buildMinimalELF32(elfclass32, etExec, emI386, 0x08048000)
	img, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if uint32(img.file.Entry) != 0x08048000 {
		t.Fatalf("Entry: got 0x%x, want 0x08048000", img.file.Entry)
	}
}

func TestParseRejectsWrongMachine(t *testing.T) {
	data := buildMinimalELF32(elfclass32, etExec, em386Wrong, 0)
	if _, err := Parse(data); err == nil {
		t.Fatal("Parse: expected error for non-i386 machine, got nil")
	}
}

func TestParseRejectsNon32BitClass(t *testing.T) {
	// A 64-bit-class byte with a 32-bit-sized body either fails inside
	// debug/elf (header too short for Elf64_Ehdr) or reaches Parse's own
	// class check; either way Parse must not return a usable Image.
	data := buildMinimalELF32(elfclass64, etExec, emI386, 0)
	if _, err := Parse(data); err == nil {
		t.Fatal("Parse: expected error for 64-bit class, got nil")
	}
}

func TestLoadWithNoSegmentsProducesUsableStack(t *testing.T) {
	data := buildMinimalELF32(elfclass32, etExec, emI386, 0x08048000)
	img, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	loaded, lerr := img.Load("/bin/nop", []string{"/bin/nop"}, []string{"HOME=/"}, nil)
	if lerr != nil {
		t.Fatalf("Load: %v", lerr)
	}
	if loaded.Entry != 0x08048000 {
		t.Fatalf("Entry: got 0x%x, want 0x08048000", loaded.Entry)
	}
	if loaded.StackTop == 0 || loaded.StackTop >= uint32(stackTop) {
		t.Fatalf("StackTop: got 0x%x, want in (0, 0x%x)", loaded.StackTop, stackTop)
	}
	if loaded.Body != nil {
		t.Fatal("Body: expected nil for an unregistered path")
	}
}

func TestRegistryLookup(t *testing.T) {
	var body proc.Entry_i = func(p *proc.Proc_t) {}
	Registry.Register("/bin/registered-test", body)
	if _, ok := Registry.Lookup("/bin/registered-test"); !ok {
		t.Fatal("Lookup: expected registered body to be found")
	}
	if _, ok := Registry.Lookup("/bin/never-registered"); ok {
		t.Fatal("Lookup: expected no body for an unregistered path")
	}
}

func TestFileOffsetOfUnmappedAddressIsNotFound(t *testing.T) {
	data := buildMinimalELF32(elfclass32, etExec, emI386, 0x08048000)
	img, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := img.FileOffsetOf(0x08048000); ok {
		t.Fatal("FileOffsetOf: expected not-found with no PT_LOAD segments")
	}
}
