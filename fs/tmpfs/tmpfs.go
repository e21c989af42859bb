// Package tmpfs is a fully in-memory filesystem: every file's data lives in
// a plain Go byte slice, every directory in a plain Go map, with nothing
// ever written through to a block device. Grounded on the teacher's
// in-memory disk idiom (ufs/driver.go's Blockmem-backed disk) generalized
// one step further — here there is no block layer at all, since tmpfs has
// no persistence contract to honor.
package tmpfs

import (
	"sync"
	"sync/atomic"

	"kernel/defs"
	"kernel/fs"
	"kernel/stat"
	"kernel/ustr"
)

var nextInum int64

func allocInum() int {
	return int(atomic.AddInt64(&nextInum, 1))
}

type node_t struct {
	mu       sync.RWMutex
	inum     int
	isDir    bool
	mode     uint
	data     []byte
	children map[string]*node_t
	names    []string // insertion order, for stable Readdir
}

func mkFileNode(mode uint) *node_t {
	return &node_t{inum: allocInum(), mode: mode}
}

func mkDirNode(mode uint) *node_t {
	return &node_t{inum: allocInum(), isDir: true, mode: mode, children: map[string]*node_t{}}
}

// Vnode_t wraps a node_t to satisfy kernel/fs.Vnode_i.
type Vnode_t struct {
	n *node_t
}

func wrap(n *node_t) *Vnode_t { return &Vnode_t{n: n} }

func (v *Vnode_t) Inum() int { return v.n.inum }

func (v *Vnode_t) IsDir() bool { return v.n.isDir }

func (v *Vnode_t) Lookup(name ustr.Ustr) (fs.Vnode_i, defs.Err_t) {
	v.n.mu.RLock()
	defer v.n.mu.RUnlock()
	if !v.n.isDir {
		return nil, -defs.ENOTDIR
	}
	c, ok := v.n.children[string(name)]
	if !ok {
		return nil, -defs.ENOENT
	}
	return wrap(c), 0
}

func (v *Vnode_t) Create(name ustr.Ustr, mode uint) (fs.Vnode_i, defs.Err_t) {
	v.n.mu.Lock()
	defer v.n.mu.Unlock()
	if !v.n.isDir {
		return nil, -defs.ENOTDIR
	}
	if _, ok := v.n.children[string(name)]; ok {
		return nil, -defs.EEXIST
	}
	c := mkFileNode(mode)
	v.n.children[string(name)] = c
	v.n.names = append(v.n.names, string(name))
	return wrap(c), 0
}

func (v *Vnode_t) Mkdir(name ustr.Ustr, mode uint) (fs.Vnode_i, defs.Err_t) {
	v.n.mu.Lock()
	defer v.n.mu.Unlock()
	if !v.n.isDir {
		return nil, -defs.ENOTDIR
	}
	if _, ok := v.n.children[string(name)]; ok {
		return nil, -defs.EEXIST
	}
	c := mkDirNode(mode)
	v.n.children[string(name)] = c
	v.n.names = append(v.n.names, string(name))
	return wrap(c), 0
}

func (v *Vnode_t) Unlink(name ustr.Ustr) defs.Err_t {
	v.n.mu.Lock()
	defer v.n.mu.Unlock()
	if !v.n.isDir {
		return -defs.ENOTDIR
	}
	c, ok := v.n.children[string(name)]
	if !ok {
		return -defs.ENOENT
	}
	if c.isDir && len(c.children) != 0 {
		return -defs.ENOTEMPTY
	}
	delete(v.n.children, string(name))
	for i, nm := range v.n.names {
		if nm == string(name) {
			v.n.names = append(v.n.names[:i], v.n.names[i+1:]...)
			break
		}
	}
	return 0
}

func (v *Vnode_t) Readdir() ([]fs.Dirent_t, defs.Err_t) {
	v.n.mu.RLock()
	defer v.n.mu.RUnlock()
	if !v.n.isDir {
		return nil, -defs.ENOTDIR
	}
	ents := make([]fs.Dirent_t, 0, len(v.n.names))
	for _, nm := range v.n.names {
		c := v.n.children[nm]
		ents = append(ents, fs.Dirent_t{Name: ustr.Ustr(nm), Inum: c.inum, IsDir: c.isDir})
	}
	return ents, 0
}

func (v *Vnode_t) GetStat(st *stat.Stat_t) defs.Err_t {
	v.n.mu.RLock()
	defer v.n.mu.RUnlock()
	mode := v.n.mode
	if v.n.isDir {
		mode |= defs.S_IFDIR
	} else {
		mode |= defs.S_IFREG
	}
	st.Wino(uint(v.n.inum))
	st.Wmode(mode)
	st.Wsize(uint(len(v.n.data)))
	st.Wrdev(0)
	st.Wblocks(uint((len(v.n.data) + 511) / 512))
	return 0
}

// SetSize truncates or extends the file's backing buffer.
func (v *Vnode_t) SetSize(sz uint) defs.Err_t {
	v.n.mu.Lock()
	defer v.n.mu.Unlock()
	if v.n.isDir {
		return -defs.EISDIR
	}
	if int(sz) <= len(v.n.data) {
		v.n.data = v.n.data[:sz]
		return 0
	}
	grown := make([]byte, sz)
	copy(grown, v.n.data)
	v.n.data = grown
	return 0
}

func (v *Vnode_t) ReadAt(dst []uint8, off int) (int, defs.Err_t) {
	v.n.mu.RLock()
	defer v.n.mu.RUnlock()
	if v.n.isDir {
		return 0, -defs.EISDIR
	}
	if off >= len(v.n.data) {
		return 0, 0
	}
	n := copy(dst, v.n.data[off:])
	return n, 0
}

func (v *Vnode_t) WriteAt(src []uint8, off int) (int, defs.Err_t) {
	v.n.mu.Lock()
	defer v.n.mu.Unlock()
	if v.n.isDir {
		return 0, -defs.EISDIR
	}
	end := off + len(src)
	if end > len(v.n.data) {
		grown := make([]byte, end)
		copy(grown, v.n.data)
		v.n.data = grown
	}
	copy(v.n.data[off:end], src)
	return len(src), 0
}

// Fs_t is a tmpfs instance: one root directory node.
type Fs_t struct {
	root *node_t
}

// MkFs constructs an empty tmpfs.
func MkFs() *Fs_t {
	return &Fs_t{root: mkDirNode(uint(0755))}
}

func (f *Fs_t) Root() fs.Vnode_i { return wrap(f.root) }
func (f *Fs_t) Name() string     { return "tmpfs" }
func (f *Fs_t) Sync() defs.Err_t { return 0 }
