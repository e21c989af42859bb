// Package procfs is a synthetic directory of process and kernel
// introspection files, generated on read from whatever implements
// Provider_i (package proc, wired in by cmd/kernel at boot) rather than
// stored. Kept decoupled from package proc itself — procfs imports no
// process-management types directly — so fs's backend set has no import
// cycle back into proc, the same seam fdops draws between fd and fs.
package procfs

import (
	"bytes"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"kernel/defs"
	"kernel/fs"
	"kernel/stat"
	"kernel/ustr"
)

// ProcInfo is one process's procfs-visible summary.
type ProcInfo struct {
	Pid   int
	Name  string
	State string
}

// Provider_i is implemented by package proc and installed with SetProvider
// once the scheduler is up; until then procfs serves empty/zero data
// rather than failing lookups outright, so it can be mounted before proc
// is fully initialized.
type Provider_i interface {
	Uptime() time.Duration
	MemInfo() (totalBytes, usedBytes uint64)
	Cmdline() string
	Version() string
	Processes() []ProcInfo
	Profile(pid int) ([]byte, bool)
}

var provider atomic.Value // Provider_i

// SetProvider installs the process-table/memory-stats source procfs reads
// from. Called once, by cmd/kernel, after proc and mem are initialized.
func SetProvider(p Provider_i) {
	provider.Store(&p)
}

func get() Provider_i {
	v := provider.Load()
	if v == nil {
		return nil
	}
	return *(v.(*Provider_i))
}

var nextInum int64 = 2000000

func allocInum() int { return int(atomic.AddInt64(&nextInum, 1)) }

// genFile_t is a read-only file whose content is computed on demand.
type genFile_t struct {
	inum int
	gen  func() []byte
}

func (g *genFile_t) Inum() int   { return g.inum }
func (g *genFile_t) IsDir() bool { return false }
func (g *genFile_t) Lookup(ustr.Ustr) (fs.Vnode_i, defs.Err_t)       { return nil, -defs.ENOTDIR }
func (g *genFile_t) Create(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t) { return nil, -defs.ENOTDIR }
func (g *genFile_t) Mkdir(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t)  { return nil, -defs.ENOTDIR }
func (g *genFile_t) Unlink(ustr.Ustr) defs.Err_t                    { return -defs.ENOTDIR }
func (g *genFile_t) Readdir() ([]fs.Dirent_t, defs.Err_t)           { return nil, -defs.ENOTDIR }
func (g *genFile_t) GetStat(st *stat.Stat_t) defs.Err_t {
	st.Wino(uint(g.inum))
	st.Wmode(defs.S_IFREG | 0444)
	st.Wsize(uint(len(g.gen())))
	return 0
}
func (g *genFile_t) SetSize(uint) defs.Err_t { return -defs.EPERM }
func (g *genFile_t) ReadAt(dst []uint8, off int) (int, defs.Err_t) {
	b := g.gen()
	if off >= len(b) {
		return 0, 0
	}
	return copy(dst, b[off:]), 0
}
func (g *genFile_t) WriteAt([]uint8, int) (int, defs.Err_t) { return 0, -defs.EPERM }

// pidDir_t is /proc/<pid>: a directory of per-process files.
type pidDir_t struct {
	inum int
	pid  int
}

func (p *pidDir_t) Inum() int   { return p.inum }
func (p *pidDir_t) IsDir() bool { return true }
func (p *pidDir_t) Create(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t) { return nil, -defs.EPERM }
func (p *pidDir_t) Mkdir(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t)  { return nil, -defs.EPERM }
func (p *pidDir_t) Unlink(ustr.Ustr) defs.Err_t                    { return -defs.EPERM }
func (p *pidDir_t) SetSize(uint) defs.Err_t                       { return -defs.EISDIR }
func (p *pidDir_t) ReadAt([]uint8, int) (int, defs.Err_t)         { return 0, -defs.EISDIR }
func (p *pidDir_t) WriteAt([]uint8, int) (int, defs.Err_t)        { return 0, -defs.EISDIR }
func (p *pidDir_t) GetStat(st *stat.Stat_t) defs.Err_t {
	st.Wino(uint(p.inum))
	st.Wmode(defs.S_IFDIR | 0555)
	return 0
}
func (p *pidDir_t) Readdir() ([]fs.Dirent_t, defs.Err_t) {
	return []fs.Dirent_t{
		{Name: ustr.Ustr("status"), Inum: allocInum()},
		{Name: ustr.Ustr("cmdline"), Inum: allocInum()},
		{Name: ustr.Ustr("profile"), Inum: allocInum()},
	}, 0
}
func (p *pidDir_t) Lookup(name ustr.Ustr) (fs.Vnode_i, defs.Err_t) {
	switch string(name) {
	case "status":
		return &genFile_t{inum: allocInum(), gen: func() []byte { return []byte(p.statusLine()) }}, 0
	case "cmdline":
		return &genFile_t{inum: allocInum(), gen: func() []byte { return []byte(p.cmdline()) }}, 0
	case "profile":
		return &genFile_t{inum: allocInum(), gen: p.profile}, 0
	}
	return nil, -defs.ENOENT
}

func (p *pidDir_t) info() (ProcInfo, bool) {
	prov := get()
	if prov == nil {
		return ProcInfo{}, false
	}
	for _, pi := range prov.Processes() {
		if pi.Pid == p.pid {
			return pi, true
		}
	}
	return ProcInfo{}, false
}

func (p *pidDir_t) statusLine() string {
	pi, ok := p.info()
	if !ok {
		return ""
	}
	return fmt.Sprintf("Name:\t%s\nPid:\t%d\nState:\t%s\n", pi.Name, pi.Pid, pi.State)
}

func (p *pidDir_t) cmdline() string {
	pi, ok := p.info()
	if !ok {
		return ""
	}
	return pi.Name + "\x00"
}

func (p *pidDir_t) profile() []byte {
	prov := get()
	if prov == nil {
		return nil
	}
	b, ok := prov.Profile(p.pid)
	if !ok {
		return nil
	}
	return b
}

// rootDir_t is procfs's "/".
type rootDir_t struct{ inum int }

func (r *rootDir_t) Inum() int   { return r.inum }
func (r *rootDir_t) IsDir() bool { return true }
func (r *rootDir_t) Create(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t) { return nil, -defs.EPERM }
func (r *rootDir_t) Mkdir(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t)  { return nil, -defs.EPERM }
func (r *rootDir_t) Unlink(ustr.Ustr) defs.Err_t                    { return -defs.EPERM }
func (r *rootDir_t) SetSize(uint) defs.Err_t                       { return -defs.EISDIR }
func (r *rootDir_t) ReadAt([]uint8, int) (int, defs.Err_t)         { return 0, -defs.EISDIR }
func (r *rootDir_t) WriteAt([]uint8, int) (int, defs.Err_t)        { return 0, -defs.EISDIR }
func (r *rootDir_t) GetStat(st *stat.Stat_t) defs.Err_t {
	st.Wino(uint(r.inum))
	st.Wmode(defs.S_IFDIR | 0555)
	return 0
}

func (r *rootDir_t) Readdir() ([]fs.Dirent_t, defs.Err_t) {
	ents := []fs.Dirent_t{
		{Name: ustr.Ustr("cmdline")},
		{Name: ustr.Ustr("uptime")},
		{Name: ustr.Ustr("meminfo")},
		{Name: ustr.Ustr("version")},
	}
	if prov := get(); prov != nil {
		for _, pi := range prov.Processes() {
			ents = append(ents, fs.Dirent_t{Name: ustr.Ustr(strconv.Itoa(pi.Pid)), IsDir: true})
		}
	}
	for i := range ents {
		ents[i].Inum = allocInum()
	}
	return ents, 0
}

func (r *rootDir_t) Lookup(name ustr.Ustr) (fs.Vnode_i, defs.Err_t) {
	switch string(name) {
	case "cmdline":
		return &genFile_t{inum: allocInum(), gen: func() []byte {
			if p := get(); p != nil {
				return []byte(p.Cmdline())
			}
			return nil
		}}, 0
	case "uptime":
		return &genFile_t{inum: allocInum(), gen: func() []byte {
			if p := get(); p != nil {
				return []byte(fmt.Sprintf("%.2f\n", p.Uptime().Seconds()))
			}
			return []byte("0.00\n")
		}}, 0
	case "meminfo":
		return &genFile_t{inum: allocInum(), gen: func() []byte {
			var total, used uint64
			if p := get(); p != nil {
				total, used = p.MemInfo()
			}
			var b bytes.Buffer
			fmt.Fprintf(&b, "MemTotal:\t%d kB\n", total/1024)
			fmt.Fprintf(&b, "MemUsed:\t%d kB\n", used/1024)
			fmt.Fprintf(&b, "MemFree:\t%d kB\n", (total-used)/1024)
			return b.Bytes()
		}}, 0
	case "version":
		return &genFile_t{inum: allocInum(), gen: func() []byte {
			if p := get(); p != nil {
				return []byte(p.Version() + "\n")
			}
			return []byte("kernel\n")
		}}, 0
	}
	if pid, err := strconv.Atoi(string(name)); err == nil {
		if prov := get(); prov != nil {
			for _, pi := range prov.Processes() {
				if pi.Pid == pid {
					return &pidDir_t{inum: allocInum(), pid: pid}, 0
				}
			}
		}
		return nil, -defs.ENOENT
	}
	return nil, -defs.ENOENT
}

// Fs_t is the procfs backend.
type Fs_t struct {
	root *rootDir_t
}

// MkFs constructs procfs.
func MkFs() *Fs_t {
	return &Fs_t{root: &rootDir_t{inum: 1999999}}
}

func (f *Fs_t) Root() fs.Vnode_i { return f.root }
func (f *Fs_t) Name() string     { return "procfs" }
func (f *Fs_t) Sync() defs.Err_t { return 0 }
