package sys

import (
	"kernel/defs"
	"kernel/proc"
	"kernel/ustr"
)

// maxStrArg bounds a single argv/envp/path string, argMax bounds the total
// count of strings in an argv or envp vector, and maxIOBuf bounds a single
// read/write's kernel-side copy buffer, per spec.md §4.7 point 3's
// "enforce a maximum length ... fail with EFAULT on any validation miss".
const (
	maxStrArg = 4096
	argMax    = 256
	maxIOBuf  = 1 << 20
)

// copyinPath copies a NUL-terminated path string out of p's user space,
// converting every possible failure (unmapped page, missing user bit, a
// string that never terminates within maxStrArg) into EFAULT, the single
// failure mode spec.md §4.7 assigns the whole validation step.
func copyinPath(p *proc.Proc_t, uva int) (string, int) {
	if uva == 0 {
		return "", int(-defs.EFAULT)
	}
	s, err := p.Vm.Userstr(uva, maxStrArg)
	if err != 0 {
		return "", int(-defs.EFAULT)
	}
	return string(s), 0
}

// copyinStrVec copies a NULL-terminated vector of NUL-terminated strings
// (argv or envp's layout) out of user space, capping both the vector
// length and each string's length.
func copyinStrVec(p *proc.Proc_t, uva int) ([]string, int) {
	if uva == 0 {
		return nil, 0
	}
	var out []string
	for i := 0; i < argMax; i++ {
		ptrval, err := p.Vm.Userreadn(uva+i*4, 4)
		if err != 0 {
			return nil, int(-defs.EFAULT)
		}
		if ptrval == 0 {
			return out, 0
		}
		s, err2 := copyinPath(p, ptrval)
		if err2 != 0 {
			return nil, err2
		}
		out = append(out, s)
	}
	return nil, int(-defs.E2BIG)
}

// copyinBuf reads n bytes from user address uva into a fresh kernel
// buffer, the variable-length-structure discipline spec.md §4.7 point 3
// requires for anything not a single fixed-size word.
func copyinBuf(p *proc.Proc_t, uva, n int) ([]byte, int) {
	if n < 0 || n > maxIOBuf {
		return nil, int(-defs.EFAULT)
	}
	buf := make([]byte, n)
	if err := p.Vm.User2k(buf, uva); err != 0 {
		return nil, int(-defs.EFAULT)
	}
	return buf, 0
}

// copyoutBuf writes buf to user address uva, EFAULT on any page that
// isn't present, user-writable, and in range.
func copyoutBuf(p *proc.Proc_t, uva int, buf []byte) int {
	if err := p.Vm.K2user(buf, uva); err != 0 {
		return int(-defs.EFAULT)
	}
	return 0
}

func ustrToPath(s string) ustr.Ustr {
	return ustr.Ustr(s)
}
