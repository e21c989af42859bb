// Package panicscreen renders a short diagnostic disassembly of the real
// i386 machine code an ELF image carries at some address, for the one
// place this kernel still has genuine x86 bytes to show a user: a binary
// that execve(2) loaded and mapped correctly but has no registered native
// body (see elf32.Registry), so there is nothing for this kernel to run
// in its place. Rather than just report ENOEXEC, sysExecve hands the
// loaded image's bytes here so the boot log shows what the binary
// actually wanted to execute.
//
// Grounded on the teacher's trap/fault dump path (kernel/trap.go prints
// the faulting instruction's bytes on a real page fault); this kernel has
// no CPU trap frame to read registers from, but it does have the ELF
// image's own bytes, which golang.org/x/arch/x86/x86asm can decode the
// same way a real fault handler would disassemble around %eip.
package panicscreen

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// maxInsns bounds how many instructions Dump decodes, so a corrupt or
// non-code region can't make this loop for a very long time one byte at
// a time on decode failures.
const maxInsns = 16

// Dump decodes up to maxInsns instructions starting at the byte offset
// off within code, formatted one per line as "base+offset: mnemonic". A
// byte sequence x86asm can't decode ends the dump at that point rather
// than aborting it entirely; seeing the instructions that did decode is
// more useful than nothing.
func Dump(code []byte, base uint32, off int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "entry point 0x%x could not be mapped to a registered program; decoded instructions follow:\n", base+uint32(off))
	for i := 0; i < maxInsns && off < len(code); i++ {
		inst, err := x86asm.Decode(code[off:], 32)
		if err != nil {
			fmt.Fprintf(&sb, "0x%x: <decode error: %v>\n", base+uint32(off), err)
			break
		}
		fmt.Fprintf(&sb, "0x%x: %s\n", base+uint32(off), x86asm.GNUSyntax(inst, uint64(base)+uint64(off), nil))
		if inst.Len == 0 {
			break
		}
		off += inst.Len
	}
	return sb.String()
}
