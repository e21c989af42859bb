package proc

import (
	"time"

	"kernel/defs"
)

// Sleep blocks the calling process for d, or until it is killed, matching
// sleep(2)/nanosleep(2)'s shared contract (spec.md §4.5 treats them as one
// operation differing only in the precision of their argument). Returns
// EINTR if a fatal signal cuts the sleep short.
func Sleep(p *Proc_t, d time.Duration) defs.Err_t {
	p.setState(SLEEPING)
	defer p.setState(RUNNING)

	p.Lock()
	note := p.note
	p.Unlock()

	var killch chan bool
	if note != nil {
		killch = note.Killnaps.Killch
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return 0
	case <-killch:
		return -defs.EINTR
	}
}
