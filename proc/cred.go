package proc

import (
	"kernel/defs"
	"kernel/sched"
)

const rootUid = 0

// Getuid, Geteuid, Getgid, Getegid return p's real/effective credentials.
func (p *Proc_t) Getuid() int  { p.Lock(); defer p.Unlock(); return p.Ruid }
func (p *Proc_t) Geteuid() int { p.Lock(); defer p.Unlock(); return p.Euid }
func (p *Proc_t) Getgid() int  { p.Lock(); defer p.Unlock(); return p.Rgid }
func (p *Proc_t) Getegid() int { p.Lock(); defer p.Unlock(); return p.Egid }

// Setuid sets p's real, effective, and saved uid to uid. A non-root caller
// (effective uid != 0) may only set it to one of its own real or saved
// uids; root may set it to anything.
func (p *Proc_t) Setuid(uid int) defs.Err_t {
	p.Lock()
	defer p.Unlock()
	if p.Euid != rootUid && uid != p.Ruid && uid != p.Suid {
		return -defs.EPERM
	}
	p.Ruid, p.Euid, p.Suid = uid, uid, uid
	return 0
}

// Seteuid sets only p's effective uid, under the same privilege rule as
// Setuid.
func (p *Proc_t) Seteuid(uid int) defs.Err_t {
	p.Lock()
	defer p.Unlock()
	if p.Euid != rootUid && uid != p.Ruid && uid != p.Suid {
		return -defs.EPERM
	}
	p.Euid = uid
	return 0
}

// Setgid is Setuid's gid analogue; root-ness is still judged by effective
// uid, matching POSIX (there is no separate "root group").
func (p *Proc_t) Setgid(gid int) defs.Err_t {
	p.Lock()
	defer p.Unlock()
	if p.Euid != rootUid && gid != p.Rgid && gid != p.Sgid {
		return -defs.EPERM
	}
	p.Rgid, p.Egid, p.Sgid = gid, gid, gid
	return 0
}

// Setegid is Setgid's effective-only analogue.
func (p *Proc_t) Setegid(gid int) defs.Err_t {
	p.Lock()
	defer p.Unlock()
	if p.Euid != rootUid && gid != p.Rgid && gid != p.Sgid {
		return -defs.EPERM
	}
	p.Egid = gid
	return 0
}

// Umask sets p's file creation mask, returning the previous value.
func (p *Proc_t) Umask(mask uint) uint {
	p.Lock()
	defer p.Unlock()
	old := p.Umask
	p.Umask = mask & 0777
	return old
}

// SetPriority is this kernel's renice-equivalent, supplemented from
// original_source's src/scheduler.c: a process may only raise its own
// numeric priority value (i.e. voluntarily lower its scheduling urgency),
// never lower it, matching the original's one-directional renice and
// sched.Clamp's bounds. A process whose effective uid is root may also
// lower it.
func (p *Proc_t) SetPriority(prio int) defs.Err_t {
	clamped := sched.Clamp(prio)
	p.Lock()
	defer p.Unlock()
	if clamped < p.prio && p.Euid != rootUid {
		return -defs.EPERM
	}
	p.prio = clamped
	return 0
}

// Priority returns p's current static priority.
func (p *Proc_t) Priority() int {
	p.Lock()
	defer p.Unlock()
	return p.prio
}
