// Command elfpatch rewrites the entry point of an ELF32/i386 binary, the
// build-time step that points the kernel image at its real load address
// once the bootloader has decided where it will be placed in physical
// memory.
//
// Grounded on the teacher's kernel/chentry.go, which does the equivalent
// job for a 64-bit x86-64 image; this kernel targets 32-bit i386 (spec.md
// §1), so the ELF class/machine checks and the header's on-disk layout
// both differ, and the CLI is built on the ambient stack's go-flags
// parser rather than raw os.Args.
package main

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
)

type options struct {
	Positional struct {
		File string `positional-arg-name:"file" description:"ELF32/i386 binary to patch"`
		Addr string `positional-arg-name:"addr" description:"new entry address (decimal or 0x-prefixed hex)"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	addr, err := strconv.ParseUint(opts.Positional.Addr, 0, 32)
	if err != nil {
		log.Fatalf("elfpatch: invalid address %q: %v", opts.Positional.Addr, err)
	}

	f, err := os.OpenFile(opts.Positional.File, os.O_RDWR, 0)
	if err != nil {
		log.Fatalf("elfpatch: %v", err)
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		log.Fatalf("elfpatch: %v", err)
	}
	if err := check32(&ef.FileHeader); err != nil {
		log.Fatalf("elfpatch: %v", err)
	}

	log.Infof("elfpatch: %s entry 0x%x -> 0x%x", opts.Positional.File, ef.FileHeader.Entry, addr)
	ef.FileHeader.Entry = addr

	if _, err := f.Seek(0, 0); err != nil {
		log.Fatalf("elfpatch: %v", err)
	}
	if err := writeHeader32(f, &ef.FileHeader); err != nil {
		log.Fatalf("elfpatch: %v", err)
	}
}

func check32(eh *elf.FileHeader) error {
	if eh.Ident[0] != 0x7f || string(eh.Ident[1:4]) != "ELF" {
		return fmt.Errorf("not an ELF file")
	}
	if eh.Class != elf.ELFCLASS32 {
		return fmt.Errorf("not a 32-bit object (class %v)", eh.Class)
	}
	if eh.Data != elf.ELFDATA2LSB {
		return fmt.Errorf("not little-endian")
	}
	if eh.Type != elf.ET_EXEC {
		return fmt.Errorf("not an executable ELF")
	}
	if eh.Machine != elf.EM_386 {
		return fmt.Errorf("not an i386 object (machine %v)", eh.Machine)
	}
	return nil
}

// writeHeader32 rewrites only the e_entry field (offset 24, a 4-byte
// little-endian word in Elf32_Ehdr) rather than the whole header: debug/elf's
// FileHeader doesn't map byte-for-byte onto either the 32- or 64-bit on-disk
// ehdr, so round-tripping the struct (as the 64-bit teacher version does)
// would corrupt every field after e_entry on a 32-bit binary.
func writeHeader32(f *os.File, eh *elf.FileHeader) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(eh.Entry))
	_, err := f.WriteAt(buf[:], 24)
	return err
}
