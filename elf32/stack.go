package elf32

import (
	"encoding/binary"
	"fmt"

	"kernel/mem"
	"kernel/vm"
)

// buildStack lays out argv/envp on a fresh stackPages-sized user stack
// immediately below stackTop, following the System V i386 ABI's process
// initialization image: starting from the lowest address, argc, the argv
// pointer vector (NULL terminated), the envp pointer vector (NULL
// terminated), a minimal auxiliary vector (just AT_NULL, since this
// kernel's native program bodies don't consult auxv), then the argv/envp
// string bytes themselves up near stackTop. It returns the initial stack
// pointer, the value spec.md §4.8 says a loaded program's Entry resumes
// with in esp.
func buildStack(as *vm.Vm_t, argv, envp []string) (uint32, error) {
	base := stackTop - stackSize
	as.Vmadd_anon(base, stackSize, mem.Pa_t(vm.PTE_U|vm.PTE_W))

	// Lay strings out first so their final user addresses are known before
	// the pointer vectors that reference them are built.
	var strs []byte
	argvOff := make([]int, len(argv))
	for i, s := range argv {
		argvOff[i] = len(strs)
		strs = append(strs, s...)
		strs = append(strs, 0)
	}
	envpOff := make([]int, len(envp))
	for i, s := range envp {
		envpOff[i] = len(strs)
		strs = append(strs, s...)
		strs = append(strs, 0)
	}

	auxWords := 2 // AT_NULL = {0, 0}
	ptrWords := 1 + (len(argv) + 1) + (len(envp) + 1) + auxWords
	ptrBytes := ptrWords * 4

	stringsStart := align4down(stackTop - len(strs))
	spStart := align4down(stringsStart - ptrBytes)
	if spStart < base {
		return 0, fmt.Errorf("elf32: argv/envp too large for a %d-byte stack", stackSize)
	}

	buf := make([]byte, stackTop-spStart)
	put32 := func(off int, v uint32) {
		binary.LittleEndian.PutUint32(buf[off:], v)
	}
	stringsOff := stringsStart - spStart
	copy(buf[stringsOff:], strs)

	off := 0
	put32(off, uint32(len(argv)))
	off += 4
	for _, o := range argvOff {
		put32(off, uint32(stringsStart+o))
		off += 4
	}
	put32(off, 0) // argv NULL terminator
	off += 4
	for _, o := range envpOff {
		put32(off, uint32(stringsStart+o))
		off += 4
	}
	put32(off, 0) // envp NULL terminator
	off += 4
	put32(off, 0) // AT_NULL.a_type
	off += 4
	put32(off, 0) // AT_NULL.a_val

	if err := as.K2user(buf, spStart); err != 0 {
		return 0, fmt.Errorf("elf32: writing stack image: %v", err)
	}
	return uint32(spStart), nil
}

func align4down(v int) int {
	return v &^ 3
}
