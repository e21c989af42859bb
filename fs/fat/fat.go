// Package fat implements FAT16 and FAT32, read-write, over any backing
// store that looks like a host file (device.Blockfile_t's ReadAt/WriteAt).
// Directory entries are the classic 32-byte 8.3 format; long filename
// entries are recognized and skipped rather than decoded, a deliberate
// simplification (documented in DESIGN.md) since nothing in this kernel's
// own userland needs names longer than 8.3 to round-trip. Grounded on the
// teacher's fs/blk.go for the disk-request shape FAT16/32 long predates and
// generalizes away from (no log, no inode bitmap — just a table and
// directory chains, the format's own bookkeeping).
package fat

import (
	"encoding/binary"
	"strings"
	"sync"

	"kernel/defs"
	"kernel/fs"
	"kernel/stat"
	"kernel/ustr"
)

// BlockDev is the minimal synchronous, sector-addressable disk interface
// FAT needs; device.Blockfile_t satisfies it directly.
type BlockDev interface {
	ReadAt(buf []byte, off int64) (int, error)
	WriteAt(buf []byte, off int64) (int, error)
}

const (
	dirEntSize  = 32
	attrReadOnly = 0x01
	attrHidden   = 0x02
	attrSystem   = 0x04
	attrVolumeID = 0x08
	attrDir      = 0x10
	attrArchive  = 0x20
	attrLongName = attrReadOnly | attrHidden | attrSystem | attrVolumeID

	eocFAT16 = 0xFFF8
	eocFAT32 = 0x0FFFFFF8
	freeClus = 0
)

type bpb_t struct {
	bytesPerSector    uint16
	sectorsPerCluster uint8
	reservedSectors   uint16
	numFATs           uint8
	rootEntCnt        uint16
	totSec16          uint16
	totSec32          uint32
	fatSz16           uint16
	fatSz32           uint32
	rootCluster       uint32 // FAT32 only
	is32              bool
}

func parseBPB(sec0 []byte) bpb_t {
	b := bpb_t{}
	b.bytesPerSector = binary.LittleEndian.Uint16(sec0[11:13])
	b.sectorsPerCluster = sec0[13]
	b.reservedSectors = binary.LittleEndian.Uint16(sec0[14:16])
	b.numFATs = sec0[16]
	b.rootEntCnt = binary.LittleEndian.Uint16(sec0[17:19])
	b.totSec16 = binary.LittleEndian.Uint16(sec0[19:21])
	b.fatSz16 = binary.LittleEndian.Uint16(sec0[22:24])
	b.totSec32 = binary.LittleEndian.Uint32(sec0[32:36])
	b.fatSz32 = binary.LittleEndian.Uint32(sec0[36:40])
	b.rootCluster = binary.LittleEndian.Uint32(sec0[44:48])
	b.is32 = b.fatSz16 == 0
	return b
}

func (b bpb_t) totSec() uint32 {
	if b.totSec16 != 0 {
		return uint32(b.totSec16)
	}
	return b.totSec32
}

func (b bpb_t) fatSz() uint32 {
	if b.fatSz16 != 0 {
		return uint32(b.fatSz16)
	}
	return b.fatSz32
}

func (b bpb_t) rootDirSectors() uint32 {
	return uint32((uint32(b.rootEntCnt)*dirEntSize + uint32(b.bytesPerSector) - 1) / uint32(b.bytesPerSector))
}

func (b bpb_t) firstDataSector() uint32 {
	return uint32(b.reservedSectors) + uint32(b.numFATs)*b.fatSz() + b.rootDirSectors()
}

func (b bpb_t) clusterSize() int {
	return int(b.sectorsPerCluster) * int(b.bytesPerSector)
}

func (b bpb_t) clusterCount() uint32 {
	dataSec := b.totSec() - b.firstDataSector()
	return dataSec / uint32(b.sectorsPerCluster)
}

func (b bpb_t) clusterOffset(cluster uint32) int64 {
	firstSec := b.firstDataSector() + (cluster-2)*uint32(b.sectorsPerCluster)
	return int64(firstSec) * int64(b.bytesPerSector)
}

func (b bpb_t) fatOffset() int64 {
	return int64(b.reservedSectors) * int64(b.bytesPerSector)
}

func (b bpb_t) rootDirOffset() int64 {
	return int64(uint32(b.reservedSectors)+uint32(b.numFATs)*b.fatSz()) * int64(b.bytesPerSector)
}

// Fs_t is a mounted FAT filesystem instance.
type Fs_t struct {
	mu  sync.Mutex
	dev BlockDev
	bpb bpb_t
	fat []uint32 // one entry per cluster, cached fully in memory
}

// Mount reads the boot sector and FAT off dev and returns a ready Fs_t.
func Mount(dev BlockDev) (*Fs_t, error) {
	sec0 := make([]byte, 512)
	if _, err := dev.ReadAt(sec0, 0); err != nil {
		return nil, err
	}
	b := parseBPB(sec0)
	f := &Fs_t{dev: dev, bpb: b}
	if err := f.loadFAT(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fs_t) loadFAT() error {
	n := f.bpb.fatSz() * uint32(f.bpb.bytesPerSector)
	raw := make([]byte, n)
	if _, err := f.dev.ReadAt(raw, f.bpb.fatOffset()); err != nil {
		return err
	}
	count := f.bpb.clusterCount() + 2
	f.fat = make([]uint32, count)
	if f.bpb.is32 {
		for i := uint32(0); i < count && int(i)*4+4 <= len(raw); i++ {
			f.fat[i] = binary.LittleEndian.Uint32(raw[i*4:]) & 0x0FFFFFFF
		}
	} else {
		for i := uint32(0); i < count && int(i)*2+2 <= len(raw); i++ {
			f.fat[i] = uint32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	}
	return nil
}

func (f *Fs_t) isEOC(v uint32) bool {
	if f.bpb.is32 {
		return v >= eocFAT32
	}
	return v >= eocFAT16
}

func (f *Fs_t) writeFATEntry(cluster uint32, val uint32) {
	f.fat[cluster] = val
	off := f.bpb.fatOffset()
	var buf []byte
	if f.bpb.is32 {
		buf = make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, val&0x0FFFFFFF)
		off += int64(cluster) * 4
	} else {
		buf = make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(val))
		off += int64(cluster) * 2
	}
	for i := uint8(0); i < f.bpb.numFATs; i++ {
		f.dev.WriteAt(buf, off+int64(i)*int64(f.bpb.fatSz())*int64(f.bpb.bytesPerSector))
	}
}

func (f *Fs_t) allocCluster() (uint32, defs.Err_t) {
	for c := uint32(2); c < uint32(len(f.fat)); c++ {
		if f.fat[c] == freeClus {
			end := uint32(eocFAT16)
			if f.bpb.is32 {
				end = eocFAT32
			}
			f.writeFATEntry(c, end)
			return c, 0
		}
	}
	return 0, -defs.ENOSPC
}

func (f *Fs_t) chain(start uint32) []uint32 {
	var chain []uint32
	c := start
	for c != 0 && !f.isEOC(c) && int(c) < len(f.fat) {
		chain = append(chain, c)
		c = f.fat[c]
	}
	return chain
}

func (f *Fs_t) readClusters(start uint32, n int) []byte {
	chain := f.chain(start)
	csz := f.bpb.clusterSize()
	buf := make([]byte, 0, len(chain)*csz)
	for _, c := range chain {
		cb := make([]byte, csz)
		f.dev.ReadAt(cb, f.bpb.clusterOffset(c))
		buf = append(buf, cb...)
	}
	if n >= 0 && n < len(buf) {
		buf = buf[:n]
	}
	return buf
}

// dirent_t is the decoded classic 8.3 directory entry.
type dirent_t struct {
	name    string
	attr    byte
	cluster uint32
	size    uint32
	slotOff int64 // byte offset of this entry on disk, for in-place rewrite
}

func decodeName(raw []byte) string {
	base := strings.TrimRight(string(raw[0:8]), " ")
	ext := strings.TrimRight(string(raw[8:11]), " ")
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func encodeName(name string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}
	base := name
	ext := ""
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		base, ext = name[:i], name[i+1:]
	}
	base = strings.ToUpper(base)
	ext = strings.ToUpper(ext)
	for i := 0; i < len(base) && i < 8; i++ {
		out[i] = base[i]
	}
	for i := 0; i < len(ext) && i < 3; i++ {
		out[8+i] = ext[i]
	}
	return out
}

// listDir reads every live directory entry in the cluster chain starting
// at start, or the fixed-size FAT16 root region when isRoot16 is true.
func (f *Fs_t) listDir(start uint32, isRoot16 bool) []dirent_t {
	var raw []byte
	var base int64
	if isRoot16 {
		raw = make([]byte, f.bpb.rootDirSectors()*uint32(f.bpb.bytesPerSector))
		base = f.bpb.rootDirOffset()
		f.dev.ReadAt(raw, base)
	} else {
		raw = f.readClusters(start, -1)
		base = f.bpb.clusterOffset(f.chain(start)[0])
	}
	var ents []dirent_t
	for off := 0; off+dirEntSize <= len(raw); off += dirEntSize {
		e := raw[off : off+dirEntSize]
		if e[0] == 0x00 {
			break
		}
		if e[0] == 0xE5 {
			continue
		}
		if e[11] == attrLongName {
			continue
		}
		hi := binary.LittleEndian.Uint16(e[20:22])
		lo := binary.LittleEndian.Uint16(e[26:28])
		ents = append(ents, dirent_t{
			name:    decodeName(e),
			attr:    e[11],
			cluster: uint32(hi)<<16 | uint32(lo),
			size:    binary.LittleEndian.Uint32(e[28:32]),
			slotOff: base + int64(off),
		})
	}
	return ents
}

func (f *Fs_t) writeDirEntry(parentCluster uint32, isRoot16 bool, name string, attr byte, cluster uint32) (int64, defs.Err_t) {
	var raw []byte
	var base int64
	if isRoot16 {
		raw = make([]byte, f.bpb.rootDirSectors()*uint32(f.bpb.bytesPerSector))
		base = f.bpb.rootDirOffset()
		f.dev.ReadAt(raw, base)
	} else {
		chain := f.chain(parentCluster)
		raw = f.readClusters(parentCluster, -1)
		base = f.bpb.clusterOffset(chain[0])
	}
	slot := -1
	for off := 0; off+dirEntSize <= len(raw); off += dirEntSize {
		if raw[off] == 0x00 || raw[off] == 0xE5 {
			slot = off
			break
		}
	}
	if slot == -1 {
		if isRoot16 {
			return 0, -defs.ENOSPC
		}
		nc, err := f.allocCluster()
		if err != 0 {
			return 0, err
		}
		last := f.chain(parentCluster)
		f.writeFATEntry(last[len(last)-1], nc)
		zero := make([]byte, f.bpb.clusterSize())
		f.dev.WriteAt(zero, f.bpb.clusterOffset(nc))
		slot = 0
		base = f.bpb.clusterOffset(nc)
		raw = zero
	}
	ent := make([]byte, dirEntSize)
	nm := encodeName(name)
	copy(ent[0:11], nm[:])
	ent[11] = attr
	binary.LittleEndian.PutUint16(ent[20:22], uint16(cluster>>16))
	binary.LittleEndian.PutUint16(ent[26:28], uint16(cluster))
	entOff := base + int64(slot)
	f.dev.WriteAt(ent, entOff)
	return entOff, 0
}

func (f *Fs_t) findEntry(parentCluster uint32, isRoot16 bool, name string) (dirent_t, bool) {
	for _, e := range f.listDir(parentCluster, isRoot16) {
		if strings.EqualFold(e.name, name) {
			return e, true
		}
	}
	return dirent_t{}, false
}

// Vnode_t is a FAT file or directory.
type Vnode_t struct {
	fs       *Fs_t
	cluster  uint32
	isRoot16 bool
	isDir    bool
	size     uint32
	slotOff  int64
}

func (v *Vnode_t) Inum() int   { return int(v.cluster) + 1 }
func (v *Vnode_t) IsDir() bool { return v.isDir }

func (f *Fs_t) vnodeFor(e dirent_t) *Vnode_t {
	return &Vnode_t{fs: f, cluster: e.cluster, isDir: e.attr&attrDir != 0, size: e.size, slotOff: e.slotOff}
}

func (v *Vnode_t) Lookup(name ustr.Ustr) (fs.Vnode_i, defs.Err_t) {
	if !v.isDir {
		return nil, -defs.ENOTDIR
	}
	e, ok := v.fs.findEntry(v.cluster, v.isRoot16, string(name))
	if !ok {
		return nil, -defs.ENOENT
	}
	return v.fs.vnodeFor(e), 0
}

func (v *Vnode_t) Create(name ustr.Ustr, mode uint) (fs.Vnode_i, defs.Err_t) {
	if !v.isDir {
		return nil, -defs.ENOTDIR
	}
	if _, ok := v.fs.findEntry(v.cluster, v.isRoot16, string(name)); ok {
		return nil, -defs.EEXIST
	}
	c, err := v.fs.allocCluster()
	if err != 0 {
		return nil, err
	}
	off, err := v.fs.writeDirEntry(v.cluster, v.isRoot16, string(name), attrArchive, c)
	if err != 0 {
		return nil, err
	}
	return &Vnode_t{fs: v.fs, cluster: c, isDir: false, slotOff: off}, 0
}

func (v *Vnode_t) Mkdir(name ustr.Ustr, mode uint) (fs.Vnode_i, defs.Err_t) {
	if !v.isDir {
		return nil, -defs.ENOTDIR
	}
	if _, ok := v.fs.findEntry(v.cluster, v.isRoot16, string(name)); ok {
		return nil, -defs.EEXIST
	}
	c, err := v.fs.allocCluster()
	if err != 0 {
		return nil, err
	}
	zero := make([]byte, v.fs.bpb.clusterSize())
	v.fs.dev.WriteAt(zero, v.fs.bpb.clusterOffset(c))
	off, err := v.fs.writeDirEntry(v.cluster, v.isRoot16, string(name), attrDir, c)
	if err != 0 {
		return nil, err
	}
	return &Vnode_t{fs: v.fs, cluster: c, isDir: true, slotOff: off}, 0
}

func (v *Vnode_t) Unlink(name ustr.Ustr) defs.Err_t {
	if !v.isDir {
		return -defs.ENOTDIR
	}
	e, ok := v.fs.findEntry(v.cluster, v.isRoot16, string(name))
	if !ok {
		return -defs.ENOENT
	}
	if e.attr&attrDir != 0 && len(v.fs.listDir(e.cluster, false)) != 0 {
		return -defs.ENOTEMPTY
	}
	v.fs.dev.WriteAt([]byte{0xE5}, e.slotOff)
	for _, c := range v.fs.chain(e.cluster) {
		v.fs.writeFATEntry(c, freeClus)
	}
	return 0
}

func (v *Vnode_t) Readdir() ([]fs.Dirent_t, defs.Err_t) {
	if !v.isDir {
		return nil, -defs.ENOTDIR
	}
	ents := v.fs.listDir(v.cluster, v.isRoot16)
	out := make([]fs.Dirent_t, 0, len(ents))
	for _, e := range ents {
		if e.attr&attrVolumeID != 0 {
			continue
		}
		out = append(out, fs.Dirent_t{Name: ustr.Ustr(e.name), Inum: int(e.cluster) + 1, IsDir: e.attr&attrDir != 0})
	}
	return out, 0
}

func (v *Vnode_t) GetStat(st *stat.Stat_t) defs.Err_t {
	mode := uint(0644)
	if v.isDir {
		mode |= defs.S_IFDIR
	} else {
		mode |= defs.S_IFREG
	}
	st.Wino(uint(v.Inum()))
	st.Wmode(mode)
	st.Wsize(uint(v.size))
	return 0
}

func (v *Vnode_t) SetSize(sz uint) defs.Err_t {
	if v.isDir {
		return -defs.EISDIR
	}
	chain := v.fs.chain(v.cluster)
	need := (int(sz) + v.fs.bpb.clusterSize() - 1) / v.fs.bpb.clusterSize()
	if need == 0 {
		need = 1
	}
	for len(chain) < need {
		nc, err := v.fs.allocCluster()
		if err != 0 {
			return err
		}
		v.fs.writeFATEntry(chain[len(chain)-1], nc)
		chain = append(chain, nc)
	}
	for len(chain) > need {
		last := chain[len(chain)-1]
		chain = chain[:len(chain)-1]
		v.fs.writeFATEntry(chain[len(chain)-1], func() uint32 {
			if v.fs.bpb.is32 {
				return eocFAT32
			}
			return eocFAT16
		}())
		v.fs.writeFATEntry(last, freeClus)
	}
	v.size = uint32(sz)
	v.writeBackSize()
	return 0
}

func (v *Vnode_t) writeBackSize() {
	if v.slotOff == 0 {
		return
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v.size)
	v.fs.dev.WriteAt(buf, v.slotOff+28)
}

func (v *Vnode_t) ReadAt(dst []uint8, off int) (int, defs.Err_t) {
	if v.isDir {
		return 0, -defs.EISDIR
	}
	if off >= int(v.size) {
		return 0, 0
	}
	data := v.fs.readClusters(v.cluster, int(v.size))
	n := copy(dst, data[off:])
	return n, 0
}

func (v *Vnode_t) WriteAt(src []uint8, off int) (int, defs.Err_t) {
	if v.isDir {
		return 0, -defs.EISDIR
	}
	end := off + len(src)
	if end > int(v.size) {
		if err := v.SetSize(uint(end)); err != 0 {
			return 0, err
		}
	}
	chain := v.fs.chain(v.cluster)
	csz := v.fs.bpb.clusterSize()
	written := 0
	for written < len(src) {
		pos := off + written
		idx := pos / csz
		if idx >= len(chain) {
			break
		}
		inClus := pos % csz
		n := csz - inClus
		if n > len(src)-written {
			n = len(src) - written
		}
		v.fs.dev.WriteAt(src[written:written+n], v.fs.bpb.clusterOffset(chain[idx])+int64(inClus))
		written += n
	}
	return written, 0
}

// Root returns the filesystem's root directory vnode.
func (f *Fs_t) Root() fs.Vnode_i {
	if f.bpb.is32 {
		return &Vnode_t{fs: f, cluster: f.bpb.rootCluster, isDir: true}
	}
	return &Vnode_t{fs: f, isRoot16: true, isDir: true}
}

func (f *Fs_t) Name() string { return "fat" }

func (f *Fs_t) Sync() defs.Err_t { return 0 }
