package fat

import (
	"encoding/binary"
	"testing"

	. "gopkg.in/check.v1"

	"kernel/ustr"
)

func Test(t *testing.T) { TestingT(t) }

type FatSuite struct{}

var _ = Suite(&FatSuite{})

// memDisk_t is an in-memory BlockDev, standing in for device.Blockfile_t
// the way a test double stands in for a real host-file-backed disk.
type memDisk_t struct {
	data []byte
}

func (m *memDisk_t) ReadAt(buf []byte, off int64) (int, error) {
	n := copy(buf, m.data[off:])
	return n, nil
}

func (m *memDisk_t) WriteAt(buf []byte, off int64) (int, error) {
	n := copy(m.data[off:], buf)
	return n, nil
}

// mkFAT16Image builds a minimal, empty FAT16 volume: 512-byte sectors, one
// sector per cluster, a single 1-sector FAT, and a 1-sector (16-entry)
// root directory, matching the BPB field layout parseBPB decodes.
func mkFAT16Image() *memDisk_t {
	const sectorSize = 512
	const totalSectors = 64
	img := make([]byte, totalSectors*sectorSize)

	binary.LittleEndian.PutUint16(img[11:13], sectorSize)
	img[13] = 1 // sectorsPerCluster
	binary.LittleEndian.PutUint16(img[14:16], 1) // reservedSectors
	img[16] = 1 // numFATs
	binary.LittleEndian.PutUint16(img[17:19], 16) // rootEntCnt
	binary.LittleEndian.PutUint16(img[19:21], totalSectors)
	binary.LittleEndian.PutUint16(img[22:24], 1) // fatSz16

	// FAT entries 0 and 1 are reserved (media descriptor + EOC marker);
	// real FAT16 volumes always start their table this way.
	fatOff := 1 * sectorSize
	binary.LittleEndian.PutUint16(img[fatOff:], 0xFFF8)
	binary.LittleEndian.PutUint16(img[fatOff+2:], 0xFFFF)

	return &memDisk_t{data: img}
}

func (s *FatSuite) TestMountEmptyVolume(c *C) {
	dev := mkFAT16Image()
	fsys, err := Mount(dev)
	c.Assert(err, IsNil)
	root := fsys.Root()
	c.Assert(root.IsDir(), Equals, true)
	ents, derr := root.Readdir()
	c.Assert(int(derr), Equals, 0)
	c.Assert(ents, HasLen, 0)
}

func (s *FatSuite) TestCreateWriteReadRoundtrip(c *C) {
	dev := mkFAT16Image()
	fsys, err := Mount(dev)
	c.Assert(err, IsNil)
	root := fsys.Root()

	vn, cerr := root.Create(ustr.Ustr("hello.txt"), 0644)
	c.Assert(int(cerr), Equals, 0)
	c.Assert(vn.IsDir(), Equals, false)

	payload := []byte("hello, fat16")
	n, werr := vn.WriteAt(payload, 0)
	c.Assert(int(werr), Equals, 0)
	c.Assert(n, Equals, len(payload))

	buf := make([]byte, len(payload))
	n, rerr := vn.ReadAt(buf, 0)
	c.Assert(int(rerr), Equals, 0)
	c.Assert(n, Equals, len(payload))
	c.Assert(string(buf), Equals, string(payload))

	ents, derr := root.Readdir()
	c.Assert(int(derr), Equals, 0)
	c.Assert(ents, HasLen, 1)
	c.Assert(string(ents[0].Name), Equals, "HELLO.TXT")
}

func (s *FatSuite) TestMkdirAndNestedLookup(c *C) {
	dev := mkFAT16Image()
	fsys, err := Mount(dev)
	c.Assert(err, IsNil)
	root := fsys.Root()

	dir, derr := root.Mkdir(ustr.Ustr("sub"), 0755)
	c.Assert(int(derr), Equals, 0)
	c.Assert(dir.IsDir(), Equals, true)

	found, lerr := root.Lookup(ustr.Ustr("sub"))
	c.Assert(int(lerr), Equals, 0)
	c.Assert(found.IsDir(), Equals, true)
}

func (s *FatSuite) TestUnlinkRemovesEntry(c *C) {
	dev := mkFAT16Image()
	fsys, err := Mount(dev)
	c.Assert(err, IsNil)
	root := fsys.Root()

	_, cerr := root.Create(ustr.Ustr("gone.txt"), 0644)
	c.Assert(int(cerr), Equals, 0)

	uerr := root.Unlink(ustr.Ustr("gone.txt"))
	c.Assert(int(uerr), Equals, 0)

	_, lerr := root.Lookup(ustr.Ustr("gone.txt"))
	c.Assert(int(lerr), Not(Equals), 0)
}
