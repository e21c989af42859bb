package fs

import (
	"sync"

	"kernel/defs"
	"kernel/fdops"
	"kernel/stat"
)

// vnodeFile_t is the Fdops_i every vfs.Open call hands back: a cursor over
// a Vnode_i. One instance is shared between a descriptor and its dup'd
// copies (fd.Copyfd copies the *Fd_t, not the Fops it points at), so the
// offset it tracks is correctly shared the way the teacher's own fd kinds
// share state across dup().
type vnodeFile_t struct {
	mu    sync.Mutex
	vn    Vnode_i
	path  string
	flags int
	off   int
}

func mkVnodeFile(vn Vnode_i, path string, flags int) *vnodeFile_t {
	return &vnodeFile_t{vn: vn, path: path, flags: flags}
}

func (vf *vnodeFile_t) Close() defs.Err_t { return 0 }

func (vf *vnodeFile_t) Fstat(sink *fdops.StatSink) defs.Err_t {
	var st stat.Stat_t
	if err := vf.vn.GetStat(&st); err != 0 {
		return err
	}
	sink.Mode = st.Mode()
	sink.Size = st.Size()
	sink.UID = st.Uid()
	sink.GID = st.Gid()
	sink.Rdev = st.Rdev()
	sink.Inum = uint(vf.vn.Inum())
	return 0
}

func (vf *vnodeFile_t) Lseek(off, whence int) (int, defs.Err_t) {
	vf.mu.Lock()
	defer vf.mu.Unlock()
	switch whence {
	case defs.SEEK_SET:
		vf.off = off
	case defs.SEEK_CUR:
		vf.off += off
	case defs.SEEK_END:
		var st stat.Stat_t
		if err := vf.vn.GetStat(&st); err != 0 {
			return 0, err
		}
		vf.off = int(st.Size()) + off
	default:
		return 0, -defs.EINVAL
	}
	if vf.off < 0 {
		vf.off = 0
	}
	return vf.off, 0
}

func (vf *vnodeFile_t) Mmapi(offset, len int, inheritable bool) ([]fdops.MMapInfo_t, defs.Err_t) {
	return nil, -defs.ENOSYS
}

func (vf *vnodeFile_t) Pathi() fdops.Inode_i { return vf.vn }

func (vf *vnodeFile_t) Read(dst fdops.Userio_i) (int, defs.Err_t) {
	vf.mu.Lock()
	off := vf.off
	vf.mu.Unlock()
	n, err := vf.Pread(dst, off)
	if err != 0 {
		return 0, err
	}
	vf.mu.Lock()
	vf.off += n
	vf.mu.Unlock()
	return n, 0
}

func (vf *vnodeFile_t) Reopen() defs.Err_t { return 0 }

func (vf *vnodeFile_t) Write(src fdops.Userio_i) (int, defs.Err_t) {
	vf.mu.Lock()
	off := vf.off
	if vf.flags&defs.O_APPEND != 0 {
		var st stat.Stat_t
		if err := vf.vn.GetStat(&st); err == 0 {
			off = int(st.Size())
		}
	}
	vf.mu.Unlock()
	n, err := vf.Pwrite(src, off)
	if err != 0 {
		return 0, err
	}
	vf.mu.Lock()
	vf.off = off + n
	vf.mu.Unlock()
	return n, 0
}

func (vf *vnodeFile_t) Fullpath() (string, defs.Err_t) { return vf.path, 0 }

func (vf *vnodeFile_t) Truncate(newlen uint) defs.Err_t {
	return vf.vn.SetSize(newlen)
}

func (vf *vnodeFile_t) Pread(dst fdops.Userio_i, offset int) (int, defs.Err_t) {
	if vf.vn.IsDir() {
		return vf.readdirInto(dst, offset)
	}
	buf := make([]uint8, dst.Remain())
	n, err := vf.vn.ReadAt(buf, offset)
	if err != 0 {
		return 0, err
	}
	wn, err := dst.Uiowrite(buf[:n])
	if err != 0 {
		return 0, err
	}
	return wn, 0
}

func (vf *vnodeFile_t) Pwrite(src fdops.Userio_i, offset int) (int, defs.Err_t) {
	buf := make([]uint8, src.Remain())
	n, err := src.Uioread(buf)
	if err != 0 {
		return 0, err
	}
	wn, err := vf.vn.WriteAt(buf[:n], offset)
	if err != 0 {
		return 0, err
	}
	return wn, 0
}

// readdirInto serializes directory entries as newline-separated
// "<inum> <d|f> <name>" records starting at byte offset off. This kernel
// has no binary getdents ABI to match, so the syscall layer's getdents
// simply hands these lines back to user space to split.
func (vf *vnodeFile_t) readdirInto(dst fdops.Userio_i, off int) (int, defs.Err_t) {
	ents, err := vf.vn.Readdir()
	if err != 0 {
		return 0, err
	}
	var buf []byte
	for _, e := range ents {
		kind := byte('f')
		if e.IsDir {
			kind = 'd'
		}
		line := itoa(e.Inum) + " " + string(kind) + " " + string(e.Name) + "\n"
		buf = append(buf, line...)
	}
	if off >= len(buf) {
		return 0, 0
	}
	n, werr := dst.Uiowrite(buf[off:])
	if werr != 0 {
		return 0, werr
	}
	return n, 0
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b [20]byte
	i := len(b)
	for n > 0 {
		i--
		b[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		b[i] = '-'
	}
	return string(b[i:])
}

func (vf *vnodeFile_t) Accept(fdops.Userio_i) (fdops.Fdops_i, uint, defs.Err_t) {
	return nil, 0, -defs.ENOTSOCK
}
func (vf *vnodeFile_t) Bind(fdops.Userio_i) defs.Err_t    { return -defs.ENOTSOCK }
func (vf *vnodeFile_t) Connect(fdops.Userio_i) defs.Err_t { return -defs.ENOTSOCK }
func (vf *vnodeFile_t) Listen(backlog int) (fdops.Fdops_i, defs.Err_t) {
	return nil, -defs.ENOTSOCK
}
func (vf *vnodeFile_t) Sendmsg(src fdops.Userio_i, toaddr, cmsg []uint8, flags int) (int, defs.Err_t) {
	return 0, -defs.ENOTSOCK
}
func (vf *vnodeFile_t) Recvmsg(dst fdops.Userio_i, fromsa, cmsg fdops.Userio_i, cmsgflags int) (int, int, int, fdops.Ready_t, defs.Err_t) {
	return 0, 0, 0, 0, -defs.ENOTSOCK
}
func (vf *vnodeFile_t) Pollone(pm fdops.Pollmsg_t) (fdops.Ready_t, defs.Err_t) {
	r := fdops.Ready_t(0)
	if pm.Events&fdops.R_READ != 0 {
		r |= fdops.R_READ
	}
	if pm.Events&fdops.R_WRITE != 0 {
		r |= fdops.R_WRITE
	}
	return r, 0
}
func (vf *vnodeFile_t) Getsockopt(opt int, bufarg fdops.Userio_i, intarg int) (int, defs.Err_t) {
	return 0, -defs.ENOTSOCK
}
func (vf *vnodeFile_t) Setsockopt(level, opt int, bufarg fdops.Userio_i, intarg int) defs.Err_t {
	return -defs.ENOTSOCK
}
func (vf *vnodeFile_t) Shutdown(read, write bool) defs.Err_t { return -defs.ENOTSOCK }
