// Package fs is the kernel's virtual filesystem: a mount table layered over
// pluggable backends (initramfs, devfs, procfs, tmpfs, FAT16/FAT32), grounded
// on the path-walking and Cwd_t-driven open idiom the teacher's fs/fd/ufs
// packages establish, generalized from biscuit's single fixed on-disk format
// to a tree of independently mountable Filesystem_i implementations.
package fs

import (
	"strings"
	"sync"

	"kernel/defs"
	"kernel/fd"
	"kernel/fdops"
	"kernel/stat"
	"kernel/ustr"
)

// Dirent_t is one entry returned by Vnode_i.Readdir.
type Dirent_t struct {
	Name  ustr.Ustr
	Inum  int
	IsDir bool
}

// Vnode_i is implemented by every backend's notion of an inode: a file,
// directory, or device node. Path walking, create/unlink, and stat all go
// through this interface so the VFS core never knows which backend it is
// talking to.
type Vnode_i interface {
	fdops.Inode_i
	Lookup(name ustr.Ustr) (Vnode_i, defs.Err_t)
	Create(name ustr.Ustr, mode uint) (Vnode_i, defs.Err_t)
	Mkdir(name ustr.Ustr, mode uint) (Vnode_i, defs.Err_t)
	Unlink(name ustr.Ustr) defs.Err_t
	Readdir() ([]Dirent_t, defs.Err_t)
	GetStat(*stat.Stat_t) defs.Err_t
	SetSize(sz uint) defs.Err_t
	ReadAt(dst []uint8, off int) (int, defs.Err_t)
	WriteAt(src []uint8, off int) (int, defs.Err_t)
	IsDir() bool
}

// Filesystem_i is a mountable backend: something that can hand out a root
// Vnode_i and persist whatever state it owns.
type Filesystem_i interface {
	Root() Vnode_i
	Name() string
	Sync() defs.Err_t
}

// BackendCtor builds a Filesystem_i instance from mount(2)'s source
// argument (a device name for block-backed filesystems, ignored for
// in-heap ones like tmpfs/devfs/procfs).
type BackendCtor func(source string) (Filesystem_i, defs.Err_t)

var (
	backendsMu sync.Mutex
	backends   = map[string]BackendCtor{}
)

// RegisterBackend installs ctor under type name typ, letting sys.Mount
// turn a mount(2) type string into a constructed backend without
// package fs importing every concrete backend (fat, tmpfs, devfs, ...)
// itself; cmd/kernel registers the real ones at boot.
func RegisterBackend(typ string, ctor BackendCtor) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[typ] = ctor
}

// NewBackend constructs a Filesystem_i of the named type.
func NewBackend(typ, source string) (Filesystem_i, defs.Err_t) {
	backendsMu.Lock()
	ctor, ok := backends[typ]
	backendsMu.Unlock()
	if !ok {
		return nil, -defs.ENODEV
	}
	return ctor(source)
}

// mountFrame_t records where control returns to when ".." walks back out of
// a mounted backend into the filesystem that covers it.
type mountFrame_t struct {
	fs    Filesystem_i
	vn    Vnode_i
	depth int
}

// Fs_t is the kernel's single VFS instance: one root backend plus whatever
// backends are mounted under it.
type Fs_t struct {
	mu     sync.RWMutex
	root   Filesystem_i
	mounts map[string]Filesystem_i
}

// MkFs constructs a Fs_t rooted at root.
func MkFs(root Filesystem_i) *Fs_t {
	return &Fs_t{root: root, mounts: map[string]Filesystem_i{}}
}

func splitPath(p ustr.Ustr) []ustr.Ustr {
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

func joinComps(comps []ustr.Ustr) string {
	var sb strings.Builder
	for _, c := range comps {
		sb.WriteByte('/')
		sb.Write(c)
	}
	if sb.Len() == 0 {
		return "/"
	}
	return sb.String()
}

// Mount grafts sub's root onto path, which must already exist as a
// directory in the tree (the root filesystem always satisfies this for
// "/"). A second mount on the same path fails with EBUSY rather than
// shadowing the first, since this kernel never needs mount stacking.
func (f *Fs_t) Mount(path ustr.Ustr, sub Filesystem_i) defs.Err_t {
	key := joinComps(splitPath(path))
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mounts[key]; ok {
		return -defs.EBUSY
	}
	f.mounts[key] = sub
	return 0
}

// Unmount removes the backend mounted at path.
func (f *Fs_t) Unmount(path ustr.Ustr) defs.Err_t {
	key := joinComps(splitPath(path))
	f.mu.Lock()
	defer f.mu.Unlock()
	if key == "/" {
		return -defs.EINVAL
	}
	if _, ok := f.mounts[key]; !ok {
		return -defs.EINVAL
	}
	delete(f.mounts, key)
	return 0
}

// resolve walks path from the root backend, crossing into and back out of
// mounted backends as it goes. ".." taken at the root of a mounted backend
// pops back into the directory of the enclosing filesystem that the mount
// covers, rather than asking the backend (which has no idea it is mounted)
// to resolve its own parent.
func (f *Fs_t) resolve(path ustr.Ustr) (Filesystem_i, Vnode_i, defs.Err_t) {
	comps := splitPath(path)
	f.mu.RLock()
	defer f.mu.RUnlock()

	curFS := f.root
	curVn := f.root.Root()
	depth := 0
	var stack []mountFrame_t
	var pathSoFar []ustr.Ustr

	for _, c := range comps {
		if c.Isdot() {
			continue
		}
		if c.Isdotdot() {
			if depth == 0 {
				if len(stack) > 0 {
					top := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					curFS, curVn, depth = top.fs, top.vn, top.depth
					if len(pathSoFar) > 0 {
						pathSoFar = pathSoFar[:len(pathSoFar)-1]
					}
				}
				continue
			}
			nv, err := curVn.Lookup(c)
			if err != 0 {
				return nil, nil, err
			}
			curVn = nv
			depth--
			if len(pathSoFar) > 0 {
				pathSoFar = pathSoFar[:len(pathSoFar)-1]
			}
			continue
		}
		if !curVn.IsDir() {
			return nil, nil, -defs.ENOTDIR
		}
		nv, err := curVn.Lookup(c)
		if err != 0 {
			return nil, nil, err
		}
		curVn = nv
		depth++
		pathSoFar = append(pathSoFar, c)
		if sub, ok := f.mounts[joinComps(pathSoFar)]; ok {
			stack = append(stack, mountFrame_t{fs: curFS, vn: curVn, depth: depth})
			curFS = sub
			curVn = sub.Root()
			depth = 0
		}
	}
	return curFS, curVn, 0
}

func dirAndBase(path ustr.Ustr) (ustr.Ustr, ustr.Ustr) {
	comps := splitPath(path)
	if len(comps) == 0 {
		return ustr.MkUstrRoot(), nil
	}
	base := comps[len(comps)-1]
	dir := joinComps(comps[:len(comps)-1])
	return ustr.Ustr(dir), base
}

// resolveParent resolves everything but the final path component, returning
// the parent directory vnode and the final component's name.
func (f *Fs_t) resolveParent(path ustr.Ustr) (Vnode_i, ustr.Ustr, defs.Err_t) {
	dir, base := dirAndBase(path)
	if base == nil {
		return nil, nil, -defs.EINVAL
	}
	_, vn, err := f.resolve(dir)
	if err != 0 {
		return nil, nil, err
	}
	if !vn.IsDir() {
		return nil, nil, -defs.ENOTDIR
	}
	return vn, base, 0
}

// Lookup resolves path to a vnode without opening it.
func (f *Fs_t) Lookup(path ustr.Ustr) (Vnode_i, defs.Err_t) {
	_, vn, err := f.resolve(path)
	return vn, err
}

// Open resolves path and returns a file descriptor backed by the resolved
// vnode, creating it first if flags asks for O_CREAT and it does not exist.
func (f *Fs_t) Open(path ustr.Ustr, flags int, mode uint) (*fd.Fd_t, defs.Err_t) {
	_, vn, err := f.resolve(path)
	if err == -defs.ENOENT && flags&defs.O_CREAT != 0 {
		parent, base, perr := f.resolveParent(path)
		if perr != 0 {
			return nil, perr
		}
		nvn, cerr := parent.Create(base, mode)
		if cerr != 0 {
			return nil, cerr
		}
		vn = nvn
		err = 0
	}
	if err != 0 {
		return nil, err
	}
	if flags&defs.O_DIRECTORY != 0 && !vn.IsDir() {
		return nil, -defs.ENOTDIR
	}
	perms := fd.FD_READ | fd.FD_WRITE
	if flags&defs.O_TRUNC != 0 && !vn.IsDir() {
		vn.SetSize(0)
	}
	ff := mkVnodeFile(vn, string(path), flags)
	return &fd.Fd_t{Fops: ff, Perms: perms}, 0
}

// Mkdir creates a directory at path.
func (f *Fs_t) Mkdir(path ustr.Ustr, mode uint) defs.Err_t {
	parent, base, err := f.resolveParent(path)
	if err != 0 {
		return err
	}
	_, err = parent.Mkdir(base, mode)
	return err
}

// Unlink removes the directory entry at path.
func (f *Fs_t) Unlink(path ustr.Ustr) defs.Err_t {
	parent, base, err := f.resolveParent(path)
	if err != 0 {
		return err
	}
	return parent.Unlink(base)
}

// Stat fills st with the metadata for path.
func (f *Fs_t) Stat(path ustr.Ustr, st *stat.Stat_t) defs.Err_t {
	_, vn, err := f.resolve(path)
	if err != 0 {
		return err
	}
	return vn.GetStat(st)
}

// MkRootCwd returns a Cwd_t for a freshly started process, rooted at "/".
func (f *Fs_t) MkRootCwd() (*fd.Cwd_t, defs.Err_t) {
	rfd, err := f.Open(ustr.MkUstrRoot(), defs.O_RDONLY|defs.O_DIRECTORY, 0)
	if err != 0 {
		return nil, err
	}
	return fd.MkRootCwd(rfd), 0
}
