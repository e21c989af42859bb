package proc

import "kernel/defs"

// dlHandle_t is one dlopen'd library's symbol table, keyed by name for
// dlsym(3)'s ".dynsym/.dynstr" lookup, per spec.md §4.8 point 5.
type dlHandle_t struct {
	name   string
	dynsym map[string]uint32
}

// SetInitFini records the init_fn/fini_fn pointer arrays the ELF loader
// collected from a binary's (and its resolved libraries') .init_array/
// .fini_array sections, exposed to user space index-at-a-time via
// SYS_DL_GET_INIT/SYS_DL_GET_FINI (spec.md §4.8 point 4).
func (p *Proc_t) SetInitFini(init, fini []uint32) {
	p.Lock()
	defer p.Unlock()
	p.dlInit = init
	p.dlFini = fini
}

// GetInit returns the i'th recorded init function pointer, or ok=false
// once i runs past the end (SYS_DL_GET_INIT's "0 at end" contract is the
// syscall wrapper's job; this just reports presence).
func (p *Proc_t) GetInit(i int) (uint32, bool) {
	p.Lock()
	defer p.Unlock()
	if i < 0 || i >= len(p.dlInit) {
		return 0, false
	}
	return p.dlInit[i], true
}

// GetFini is GetInit's .fini_array analogue.
func (p *Proc_t) GetFini(i int) (uint32, bool) {
	p.Lock()
	defer p.Unlock()
	if i < 0 || i >= len(p.dlFini) {
		return 0, false
	}
	return p.dlFini[i], true
}

// DlOpen installs a new handle for a resolved library's symbol table and
// returns its handle id, the value user space passes to dlsym/dlclose.
func (p *Proc_t) DlOpen(name string, dynsym map[string]uint32) int {
	p.Lock()
	defer p.Unlock()
	if p.dlHandles == nil {
		p.dlHandles = make(map[int]*dlHandle_t)
	}
	p.nextHandle++
	id := p.nextHandle
	p.dlHandles[id] = &dlHandle_t{name: name, dynsym: dynsym}
	return id
}

// DlSym resolves name within the library behind handle.
func (p *Proc_t) DlSym(handle int, name string) (uint32, defs.Err_t) {
	p.Lock()
	defer p.Unlock()
	h, ok := p.dlHandles[handle]
	if !ok {
		return 0, -defs.EINVAL
	}
	addr, ok := h.dynsym[name]
	if !ok {
		return 0, -defs.ENOENT
	}
	return addr, 0
}

// DlClose retires handle.
func (p *Proc_t) DlClose(handle int) defs.Err_t {
	p.Lock()
	defer p.Unlock()
	if _, ok := p.dlHandles[handle]; !ok {
		return -defs.EINVAL
	}
	delete(p.dlHandles, handle)
	return 0
}
