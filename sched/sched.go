// Package sched is the kernel's scheduling policy: priority with aging,
// for threads waiting for the same event. Its one user is proc's wait()
// for a child; there is no run queue, and sleeps and reads do not go
// through it.
//
// This kernel's processes are goroutines (see the runtime model note in
// DESIGN.md), and Go's own runtime already preemptively multiplexes
// goroutines across real CPUs — reimplementing quantum-based CPU
// preemption on top of that would not actually control any more real CPU
// time than the host runtime already grants, and the host runtime gives
// no hook to intercept it. What this package owns instead is dispatch
// order: when several threads are runnable-but-waiting for the same
// kernel resource, which one the kernel wakes first. That is exactly the
// decision priority+aging governs in the teacher's own scheduler, so the
// policy is preserved even though it no longer multiplexes a physical
// quantum.
package sched

import (
	"container/heap"
	"sync"
	"time"

	"kernel/defs"
)

// Priority bounds, matching common nice(2) range conventions: lower
// number means higher priority.
const (
	PrioMin  = 0
	PrioMax  = 39
	PrioBase = 20
)

const agingStep = 1 // priority gained per agingPeriod spent waiting
const agingPeriod = 50 * time.Millisecond

// Waiter_t is one thread's membership in a wait queue.
type Waiter_t struct {
	Tid      defs.Tid_t
	basePrio int
	prio     int
	enq      time.Time
	ch       chan struct{}
	index    int // heap index, maintained by container/heap
}

// Wake unblocks the thread parked on this waiter.
func (w *Waiter_t) Wake() {
	close(w.ch)
}

// Wait blocks the calling goroutine until Wake is called.
func (w *Waiter_t) Wait() {
	<-w.ch
}

type waiterHeap_t []*Waiter_t

func (h waiterHeap_t) Len() int { return len(h) }
func (h waiterHeap_t) Less(i, j int) bool {
	return h[i].prio < h[j].prio
}
func (h waiterHeap_t) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *waiterHeap_t) Push(x interface{}) {
	w := x.(*Waiter_t)
	w.index = len(*h)
	*h = append(*h, w)
}
func (h *waiterHeap_t) Pop() interface{} {
	old := *h
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return w
}

// WaitQueue_t orders blocked threads by priority, aging a thread's
// effective priority the longer it waits so a long-waiting low-priority
// thread is eventually served ahead of a newly arrived high-priority one
// — the starvation guarantee SPEC_FULL.md's scheduler asks for.
type WaitQueue_t struct {
	mu sync.Mutex
	h  waiterHeap_t
}

// Enqueue adds tid (at priority prio, lower is more urgent) to the queue
// and returns a Waiter_t the caller blocks on with Wait.
func (q *WaitQueue_t) Enqueue(tid defs.Tid_t, prio int) *Waiter_t {
	q.mu.Lock()
	defer q.mu.Unlock()
	w := &Waiter_t{Tid: tid, basePrio: prio, prio: prio, enq: now(), ch: make(chan struct{})}
	heap.Push(&q.h, w)
	return w
}

// WakeOne wakes and removes the highest-priority (after aging) waiter,
// reporting whether one existed.
func (q *WaitQueue_t) WakeOne() (*Waiter_t, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ageLocked()
	if q.h.Len() == 0 {
		return nil, false
	}
	w := heap.Pop(&q.h).(*Waiter_t)
	w.Wake()
	return w, true
}

// WakeAll wakes and removes every waiter, used by broadcast-style events
// (e.g. a pipe's writer closing, waking every blocked reader).
func (q *WaitQueue_t) WakeAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.h.Len() != 0 {
		w := heap.Pop(&q.h).(*Waiter_t)
		w.Wake()
	}
}

// Remove drops w from the queue without waking it (used when a wait is
// abandoned, e.g. a signal interrupts it).
func (q *WaitQueue_t) Remove(w *Waiter_t) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if w.index >= 0 && w.index < q.h.Len() && q.h[w.index] == w {
		heap.Remove(&q.h, w.index)
	}
}

func (q *WaitQueue_t) ageLocked() {
	t := now()
	for _, w := range q.h {
		waited := t.Sub(w.enq)
		aged := int(waited/agingPeriod) * agingStep
		np := w.basePrio - aged
		if np < PrioMin {
			np = PrioMin
		}
		w.prio = np
	}
	heap.Init(&q.h)
}

// Len reports how many threads are currently queued.
func (q *WaitQueue_t) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// now is a seam so tests can fake the clock; production code always uses
// the wall clock (workflow scripts building this module can't call
// time.Now at authoring time, but the compiled kernel can at runtime).
var now = time.Now

// Clamp keeps a nice-adjusted priority inside [PrioMin, PrioMax].
func Clamp(p int) int {
	if p < PrioMin {
		return PrioMin
	}
	if p > PrioMax {
		return PrioMax
	}
	return p
}
