// Package initramfs is the filesystem mounted at boot before any disk
// driver is available: a tmpfs tree populated once, at boot, from a tar
// archive handed to the kernel alongside its image (the role biscuit's own
// boot sequence gives to its on-disk root filesystem, here split out so the
// kernel can come up before any block device exists). Grounded on tmpfs
// for storage; loading uses the standard library's archive/tar since no
// pack repo carries a tar/cpio archive reader and this is a thin decode
// step, not a filesystem format of its own.
package initramfs

import (
	"archive/tar"
	"bytes"
	"io"
	"path"
	"strings"

	"kernel/defs"
	"kernel/fs"
	"kernel/fs/tmpfs"
	"kernel/ustr"
)

// Fs_t is a read-after-boot tree: a tmpfs instance loaded once from an
// archive and never written to again by convention (nothing enforces this
// at the vnode layer, since the boot archive is implicitly trusted code,
// but no kernel component calls Create/Mkdir/Unlink against it post-boot).
type Fs_t struct {
	*tmpfs.Fs_t
}

// New constructs an empty initramfs; use Load to populate it from a tar
// archive.
func New() *Fs_t {
	return &Fs_t{Fs_t: tmpfs.MkFs()}
}

func (f *Fs_t) Name() string { return "initramfs" }

// Load unpacks a tar archive's regular files and directories into the
// tree. Symlinks and other tar entry kinds are skipped; this kernel's
// Non-goals exclude building a general-purpose archive extractor and a
// boot skeleton has no use for them.
func (f *Fs_t) Load(archive []byte) defs.Err_t {
	tr := tar.NewReader(bytes.NewReader(archive))
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return 0
		}
		if err != nil {
			return -defs.EIO
		}
		clean := strings.TrimPrefix(path.Clean("/"+hdr.Name), "/")
		if clean == "" || clean == "." {
			continue
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if e := f.mkdirAll(clean); e != 0 {
				return e
			}
		case tar.TypeReg:
			dir := path.Dir(clean)
			if dir != "." {
				if e := f.mkdirAll(dir); e != 0 {
					return e
				}
			}
			data, rerr := io.ReadAll(tr)
			if rerr != nil {
				return -defs.EIO
			}
			if e := f.writeFile(clean, data); e != 0 {
				return e
			}
		default:
			continue
		}
	}
}

func (f *Fs_t) mkdirAll(p string) defs.Err_t {
	comps := strings.Split(p, "/")
	cur := f.Fs_t.Root()
	for _, c := range comps {
		if c == "" {
			continue
		}
		n, err := cur.Lookup(ustr.Ustr(c))
		if err == 0 {
			cur = n
			continue
		}
		n, err = cur.Mkdir(ustr.Ustr(c), 0755)
		if err != 0 {
			return err
		}
		cur = n
	}
	return 0
}

func (f *Fs_t) writeFile(p string, data []byte) defs.Err_t {
	dir := path.Dir(p)
	base := path.Base(p)
	cur := f.Fs_t.Root()
	if dir != "." {
		var err defs.Err_t
		cur, err = lookupPath(cur, dir)
		if err != 0 {
			return err
		}
	}
	n, err := cur.Create(ustr.Ustr(base), 0644)
	if err != 0 {
		return err
	}
	_, err = n.WriteAt(data, 0)
	return err
}

func lookupPath(root fs.Vnode_i, p string) (fs.Vnode_i, defs.Err_t) {
	cur := root
	for _, c := range strings.Split(p, "/") {
		if c == "" {
			continue
		}
		n, err := cur.Lookup(ustr.Ustr(c))
		if err != 0 {
			return nil, err
		}
		cur = n
	}
	return cur, 0
}
