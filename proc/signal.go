package proc

import "kernel/defs"

// Kill delivers sig to pid. This kernel has no per-handler signal
// delivery (spec's Non-goals exclude it) so every signal either does
// nothing observable yet or, if defs.Signal_t.Fatal reports it always
// terminates its target, marks the target doomed: its tinfo note's
// Isdoomed flag is set and a Sleep it is blocked in is woken early, the
// same way a real kernel's pending-signal check fires on the next safe
// point instead of mid-instruction. A wait(2) it is blocked in is not
// woken; the target notices the signal only after that wait returns.
func Kill(pid defs.Pid_t, sig defs.Signal_t) defs.Err_t {
	p, ok := Lookup(pid)
	if !ok {
		return -defs.ESRCH
	}

	p.Lock()
	note := p.note
	if sig.Fatal() {
		p.pendingSig = sig
	}
	p.Unlock()

	if note == nil {
		// process hasn't started running yet; pendingSig will be
		// noticed as soon as it does.
		return 0
	}

	note.Lock()
	note.Killed = true
	if sig.Fatal() {
		note.Isdoomed = true
	}
	select {
	case note.Killnaps.Killch <- true:
	default:
	}
	note.Unlock()
	return 0
}

// Doomed reports whether p has been marked for unconditional termination
// and, if so, the wait(2) status Exit should report for it. A process's
// own Entry_i should check this at the same kind of safe points a real
// kernel checks pending signals (loop heads, after blocking syscalls) and
// call Exit with the returned status when true.
func (p *Proc_t) Doomed() (int, bool) {
	p.Lock()
	defer p.Unlock()
	if p.pendingSig != 0 {
		return defs.MkSignaled(int(p.pendingSig)), true
	}
	return 0, false
}
