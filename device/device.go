// Package device is the kernel's device manager: a name-to-driver registry
// that devfs enumerates and that ioctl/open dispatch through, the way the
// teacher's kernel wires concrete drivers (ahci, console) directly into fs
// and fd call sites instead of through a level of indirection. This
// kernel's Non-goals exclude real hardware drivers, so the registry is the
// seam real block/console/null/random drivers would plug into, populated
// here with the simulated ones SPEC_FULL.md asks for.
package device

import (
	"fmt"
	"sort"
	"sync"

	"kernel/defs"
)

// Ops is implemented by every device registered with the manager. Concrete
// device kinds (block, character) type-assert this down to a richer
// interface after Lookup.
type Ops interface {
	DevName() string
}

var (
	mu   sync.Mutex
	regs = map[string]Ops{}
)

// Register adds dev to the registry under its own name. It panics on a
// duplicate name, the same fail-fast the teacher uses for its fixed device
// major/minor table (defs.Mkdev's domain).
func Register(dev Ops) {
	mu.Lock()
	defer mu.Unlock()
	name := dev.DevName()
	if _, ok := regs[name]; ok {
		panic(fmt.Sprintf("device: %q already registered", name))
	}
	regs[name] = dev
}

// Lookup returns the device registered under name.
func Lookup(name string) (Ops, bool) {
	mu.Lock()
	defer mu.Unlock()
	d, ok := regs[name]
	return d, ok
}

// Names returns every registered device name in sorted order, for devfs's
// directory listing.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	ns := make([]string, 0, len(regs))
	for n := range regs {
		ns = append(ns, n)
	}
	sort.Strings(ns)
	return ns
}

// CharOps is a simple character device: byte-stream read/write with no
// seek, the contract devfs's null/zero/kmsg nodes implement.
type CharOps interface {
	Ops
	Read(dst []uint8) (int, defs.Err_t)
	Write(src []uint8) (int, defs.Err_t)
}
