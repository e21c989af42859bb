// Package bpath canonicalizes absolute paths: collapsing "." and ".."
// components and repeated slashes into the minimal absolute form the VFS
// path resolver and fd.Cwd_t work with.
package bpath

import "kernel/ustr"

// Canonicalize reduces an absolute path to its canonical form: no empty
// components, no "." components, and ".." components applied against
// whatever precedes them (a leading ".." stays absorbed, since there is
// nothing above root to go to — the VFS mount table, not this function,
// is responsible for letting ".." cross a mount point into its parent
// filesystem).
func Canonicalize(p ustr.Ustr) ustr.Ustr {
	comps := split(p)
	out := comps[:0]
	for _, c := range comps {
		switch {
		case len(c) == 0, c.Isdot():
			continue
		case c.Isdotdot():
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, c)
		}
	}
	ret := ustr.MkUstrRoot()[:1]
	for i, c := range out {
		if i > 0 {
			ret = append(ret, '/')
		}
		ret = append(ret, c...)
	}
	return ret
}

func split(p ustr.Ustr) []ustr.Ustr {
	var comps []ustr.Ustr
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				comps = append(comps, p[start:i])
			}
			start = i + 1
		}
	}
	return comps
}
