// Package tinfo tracks per-thread scheduling state. The teacher's version
// stashes a *Tnote_t directly on the OS thread via a runtime hook
// (runtime.Gptr/Setgptr) that only exists in biscuit's forked Go runtime,
// because a biscuit "thread" runs bare-metal on its own kernel stack. This
// kernel models a thread as one goroutine instead, so Current/SetCurrent/
// ClearCurrent keep the teacher's call shape (no arguments, one note per
// calling thread) by keying a map on the calling goroutine's id, parsed out
// of a runtime.Stack trace the same way several goroutine-local-storage
// packages in the wild do it — there is no stdlib or ecosystem primitive
// for "data attached to the calling goroutine" because the language
// deliberately omits one.
package tinfo

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"

	"kernel/defs"
)

/// Tnote_t stores per-thread state used by the runtime.
type Tnote_t struct {
	State    interface{}
	Alive    bool
	Killed   bool
	Isdoomed bool
	// protects killed, Killnaps.Cond and Kerr, and is a leaf lock
	sync.Mutex
	Killnaps struct {
		Killch chan bool
		Cond   *sync.Cond
		Kerr   defs.Err_t
	}
}

/// Doomed reports whether the thread is marked as doomed.
func (t *Tnote_t) Doomed() bool {
	return t.Isdoomed
}

/// Threadinfo_t tracks all thread notes.
type Threadinfo_t struct {
	Notes map[defs.Tid_t]*Tnote_t
	sync.Mutex
}

/// Init initializes the thread info map.
func (t *Threadinfo_t) Init() {
	t.Notes = make(map[defs.Tid_t]*Tnote_t)
}

var (
	curmu sync.Mutex
	cur   = make(map[int64]*Tnote_t)
)

// goid extracts the calling goroutine's numeric id from the header line of
// its own stack trace ("goroutine 123 [running]:...").
func goid() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		panic("unexpected stack header")
	}
	b = b[len(prefix):]
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		panic("unparsable goroutine id")
	}
	return id
}

/// Current returns the current thread note.
func Current() *Tnote_t {
	g := goid()
	curmu.Lock()
	t, ok := cur[g]
	curmu.Unlock()
	if !ok {
		panic("nuts")
	}
	return t
}

/// SetCurrent installs p as the current thread note.
func SetCurrent(p *Tnote_t) {
	if p == nil {
		panic("nuts")
	}
	g := goid()
	curmu.Lock()
	defer curmu.Unlock()
	if _, ok := cur[g]; ok {
		panic("nuts")
	}
	cur[g] = p
}

/// ClearCurrent removes the current thread note.
func ClearCurrent() {
	g := goid()
	curmu.Lock()
	defer curmu.Unlock()
	if _, ok := cur[g]; !ok {
		panic("nuts")
	}
	delete(cur, g)
}
