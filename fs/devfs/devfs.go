// Package devfs is a synthetic directory of device nodes: a handful of
// always-present pseudo-devices (null, zero, random, kmsg) plus one entry
// per device registered with kernel/device, generated on every Lookup and
// Readdir rather than stored, since the device registry is already the
// source of truth. Grounded on the teacher's console/device special files
// being opened by fixed path, generalized into an actual directory the way
// Linux's devtmpfs works.
package devfs

import (
	"crypto/rand"
	"sort"
	"sync/atomic"

	"kernel/defs"
	"kernel/device"
	"kernel/fs"
	"kernel/klog"
	"kernel/stat"
	"kernel/ustr"
)

var nextInum int64 = 1000000 // keep devfs inode numbers out of other backends' ranges

func allocInum() int { return int(atomic.AddInt64(&nextInum, 1)) }

// node_i is implemented by every kind of devfs entry (directory, pseudo
// device, registered device).
type node_i interface {
	fs.Vnode_i
}

// dirNode_t is devfs's single directory (devfs has no subdirectories).
type dirNode_t struct {
	inum int
}

func (d *dirNode_t) Inum() int   { return d.inum }
func (d *dirNode_t) IsDir() bool { return true }

func (d *dirNode_t) Lookup(name ustr.Ustr) (fs.Vnode_i, defs.Err_t) {
	switch string(name) {
	case "null":
		return &nullNode_t{inum: allocInum()}, 0
	case "zero":
		return &zeroNode_t{inum: allocInum()}, 0
	case "random", "urandom":
		return &randomNode_t{inum: allocInum()}, 0
	case "kmsg":
		return &kmsgNode_t{inum: allocInum()}, 0
	}
	if dev, ok := device.Lookup(string(name)); ok {
		if cd, ok := dev.(device.CharOps); ok {
			return &charNode_t{inum: allocInum(), dev: cd}, 0
		}
		return &blockNode_t{inum: allocInum(), name: string(name)}, 0
	}
	return nil, -defs.ENOENT
}

func (d *dirNode_t) Create(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t) { return nil, -defs.EPERM }
func (d *dirNode_t) Mkdir(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t)  { return nil, -defs.EPERM }
func (d *dirNode_t) Unlink(ustr.Ustr) defs.Err_t                     { return -defs.EPERM }

func (d *dirNode_t) Readdir() ([]fs.Dirent_t, defs.Err_t) {
	names := []string{"null", "zero", "random", "urandom", "kmsg"}
	names = append(names, device.Names()...)
	sort.Strings(names)
	ents := make([]fs.Dirent_t, 0, len(names))
	for _, n := range names {
		ents = append(ents, fs.Dirent_t{Name: ustr.Ustr(n), Inum: allocInum(), IsDir: false})
	}
	return ents, 0
}

func (d *dirNode_t) GetStat(st *stat.Stat_t) defs.Err_t {
	st.Wino(uint(d.inum))
	st.Wmode(defs.S_IFDIR | 0755)
	return 0
}
func (d *dirNode_t) SetSize(uint) defs.Err_t                 { return -defs.EISDIR }
func (d *dirNode_t) ReadAt([]uint8, int) (int, defs.Err_t)   { return 0, -defs.EISDIR }
func (d *dirNode_t) WriteAt([]uint8, int) (int, defs.Err_t)  { return 0, -defs.EISDIR }

// nullNode_t discards writes and reads as EOF, like /dev/null.
type nullNode_t struct{ inum int }

func (n *nullNode_t) Inum() int   { return n.inum }
func (n *nullNode_t) IsDir() bool { return false }
func (n *nullNode_t) Lookup(ustr.Ustr) (fs.Vnode_i, defs.Err_t)       { return nil, -defs.ENOTDIR }
func (n *nullNode_t) Create(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t) { return nil, -defs.ENOTDIR }
func (n *nullNode_t) Mkdir(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t)  { return nil, -defs.ENOTDIR }
func (n *nullNode_t) Unlink(ustr.Ustr) defs.Err_t                    { return -defs.ENOTDIR }
func (n *nullNode_t) Readdir() ([]fs.Dirent_t, defs.Err_t)           { return nil, -defs.ENOTDIR }
func (n *nullNode_t) GetStat(st *stat.Stat_t) defs.Err_t {
	st.Wino(uint(n.inum))
	st.Wmode(defs.S_IFCHR | 0666)
	return 0
}
func (n *nullNode_t) SetSize(uint) defs.Err_t { return 0 }
func (n *nullNode_t) ReadAt([]uint8, int) (int, defs.Err_t)  { return 0, 0 }
func (n *nullNode_t) WriteAt(src []uint8, int) (int, defs.Err_t) { return len(src), 0 }

// zeroNode_t reads as an infinite stream of zero bytes.
type zeroNode_t struct{ inum int }

func (n *zeroNode_t) Inum() int   { return n.inum }
func (n *zeroNode_t) IsDir() bool { return false }
func (n *zeroNode_t) Lookup(ustr.Ustr) (fs.Vnode_i, defs.Err_t)       { return nil, -defs.ENOTDIR }
func (n *zeroNode_t) Create(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t) { return nil, -defs.ENOTDIR }
func (n *zeroNode_t) Mkdir(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t)  { return nil, -defs.ENOTDIR }
func (n *zeroNode_t) Unlink(ustr.Ustr) defs.Err_t                    { return -defs.ENOTDIR }
func (n *zeroNode_t) Readdir() ([]fs.Dirent_t, defs.Err_t)           { return nil, -defs.ENOTDIR }
func (n *zeroNode_t) GetStat(st *stat.Stat_t) defs.Err_t {
	st.Wino(uint(n.inum))
	st.Wmode(defs.S_IFCHR | 0666)
	return 0
}
func (n *zeroNode_t) SetSize(uint) defs.Err_t { return 0 }
func (n *zeroNode_t) ReadAt(dst []uint8, off int) (int, defs.Err_t) {
	for i := range dst {
		dst[i] = 0
	}
	return len(dst), 0
}
func (n *zeroNode_t) WriteAt(src []uint8, int) (int, defs.Err_t) { return len(src), 0 }

// randomNode_t serves bytes from the host CSPRNG.
type randomNode_t struct{ inum int }

func (n *randomNode_t) Inum() int   { return n.inum }
func (n *randomNode_t) IsDir() bool { return false }
func (n *randomNode_t) Lookup(ustr.Ustr) (fs.Vnode_i, defs.Err_t)       { return nil, -defs.ENOTDIR }
func (n *randomNode_t) Create(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t) { return nil, -defs.ENOTDIR }
func (n *randomNode_t) Mkdir(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t)  { return nil, -defs.ENOTDIR }
func (n *randomNode_t) Unlink(ustr.Ustr) defs.Err_t                    { return -defs.ENOTDIR }
func (n *randomNode_t) Readdir() ([]fs.Dirent_t, defs.Err_t)           { return nil, -defs.ENOTDIR }
func (n *randomNode_t) GetStat(st *stat.Stat_t) defs.Err_t {
	st.Wino(uint(n.inum))
	st.Wmode(defs.S_IFCHR | 0444)
	return 0
}
func (n *randomNode_t) SetSize(uint) defs.Err_t { return 0 }
func (n *randomNode_t) ReadAt(dst []uint8, off int) (int, defs.Err_t) {
	if _, err := rand.Read(dst); err != nil {
		return 0, -defs.EIO
	}
	return len(dst), 0
}
func (n *randomNode_t) WriteAt(src []uint8, int) (int, defs.Err_t) { return len(src), 0 }

// kmsgNode_t exposes the kernel log ring.
type kmsgNode_t struct{ inum int }

func (n *kmsgNode_t) Inum() int   { return n.inum }
func (n *kmsgNode_t) IsDir() bool { return false }
func (n *kmsgNode_t) Lookup(ustr.Ustr) (fs.Vnode_i, defs.Err_t)       { return nil, -defs.ENOTDIR }
func (n *kmsgNode_t) Create(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t) { return nil, -defs.ENOTDIR }
func (n *kmsgNode_t) Mkdir(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t)  { return nil, -defs.ENOTDIR }
func (n *kmsgNode_t) Unlink(ustr.Ustr) defs.Err_t                    { return -defs.ENOTDIR }
func (n *kmsgNode_t) Readdir() ([]fs.Dirent_t, defs.Err_t)           { return nil, -defs.ENOTDIR }
func (n *kmsgNode_t) GetStat(st *stat.Stat_t) defs.Err_t {
	st.Wino(uint(n.inum))
	st.Wmode(defs.S_IFCHR | 0444)
	return 0
}
func (n *kmsgNode_t) SetSize(uint) defs.Err_t { return -defs.EPERM }
func (n *kmsgNode_t) ReadAt(dst []uint8, off int) (int, defs.Err_t) {
	buf := klog.Snapshot()
	if off >= len(buf) {
		return 0, 0
	}
	return copy(dst, buf[off:]), 0
}
func (n *kmsgNode_t) WriteAt(src []uint8, int) (int, defs.Err_t) { return 0, -defs.EPERM }

// charNode_t wraps a registered device.CharOps as a devfs entry.
type charNode_t struct {
	inum int
	dev  device.CharOps
}

func (n *charNode_t) Inum() int   { return n.inum }
func (n *charNode_t) IsDir() bool { return false }
func (n *charNode_t) Lookup(ustr.Ustr) (fs.Vnode_i, defs.Err_t)       { return nil, -defs.ENOTDIR }
func (n *charNode_t) Create(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t) { return nil, -defs.ENOTDIR }
func (n *charNode_t) Mkdir(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t)  { return nil, -defs.ENOTDIR }
func (n *charNode_t) Unlink(ustr.Ustr) defs.Err_t                    { return -defs.ENOTDIR }
func (n *charNode_t) Readdir() ([]fs.Dirent_t, defs.Err_t)           { return nil, -defs.ENOTDIR }
func (n *charNode_t) GetStat(st *stat.Stat_t) defs.Err_t {
	st.Wino(uint(n.inum))
	st.Wmode(defs.S_IFCHR | 0666)
	return 0
}
func (n *charNode_t) SetSize(uint) defs.Err_t { return -defs.EPERM }
func (n *charNode_t) ReadAt(dst []uint8, off int) (int, defs.Err_t)  { return n.dev.Read(dst) }
func (n *charNode_t) WriteAt(src []uint8, off int) (int, defs.Err_t) { return n.dev.Write(src) }

// blockNode_t is a placeholder entry for a registered block device; actual
// I/O against it goes through mount, not through read/write on the node
// itself (this kernel has no raw block-device read/write syscall path).
type blockNode_t struct {
	inum int
	name string
}

func (n *blockNode_t) Inum() int   { return n.inum }
func (n *blockNode_t) IsDir() bool { return false }
func (n *blockNode_t) Lookup(ustr.Ustr) (fs.Vnode_i, defs.Err_t)       { return nil, -defs.ENOTDIR }
func (n *blockNode_t) Create(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t) { return nil, -defs.ENOTDIR }
func (n *blockNode_t) Mkdir(ustr.Ustr, uint) (fs.Vnode_i, defs.Err_t)  { return nil, -defs.ENOTDIR }
func (n *blockNode_t) Unlink(ustr.Ustr) defs.Err_t                    { return -defs.ENOTDIR }
func (n *blockNode_t) Readdir() ([]fs.Dirent_t, defs.Err_t)           { return nil, -defs.ENOTDIR }
func (n *blockNode_t) GetStat(st *stat.Stat_t) defs.Err_t {
	st.Wino(uint(n.inum))
	st.Wmode(defs.S_IFBLK | 0660)
	return 0
}
func (n *blockNode_t) SetSize(uint) defs.Err_t                  { return -defs.EPERM }
func (n *blockNode_t) ReadAt([]uint8, int) (int, defs.Err_t)    { return 0, -defs.ENOSYS }
func (n *blockNode_t) WriteAt([]uint8, int) (int, defs.Err_t)   { return 0, -defs.ENOSYS }

// Fs_t is the devfs backend: one synthetic directory.
type Fs_t struct {
	root *dirNode_t
}

// MkFs constructs devfs.
func MkFs() *Fs_t {
	return &Fs_t{root: &dirNode_t{inum: 999999}}
}

func (f *Fs_t) Root() fs.Vnode_i { return f.root }
func (f *Fs_t) Name() string     { return "devfs" }
func (f *Fs_t) Sync() defs.Err_t { return 0 }
