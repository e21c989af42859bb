// This file implements fs/procfs.Provider_i so cmd/kernel can install
// package proc as procfs's data source at boot (procfs.SetProvider), the
// seam DESIGN.md's fs/procfs entry describes.
package proc

import (
	"bytes"
	"time"

	"github.com/google/pprof/profile"

	"kernel/defs"
	"kernel/fs/procfs"
	"kernel/mem"
)

var bootTime = struct {
	set bool
	t   time.Time
}{}

// Boot records the kernel's start time for /proc/uptime; called once by
// cmd/kernel during boot sequencing.
func Boot(t time.Time) {
	bootTime.set = true
	bootTime.t = t
}

type provider_t struct{}

// Provider is the fs/procfs.Provider_i implementation cmd/kernel installs
// via procfs.SetProvider(proc.Provider) once the process table exists.
var Provider procfs.Provider_i = provider_t{}

func (provider_t) Uptime() time.Duration {
	if !bootTime.set {
		return 0
	}
	return time.Since(bootTime.t)
}

func (provider_t) MemInfo() (totalBytes, usedBytes uint64) {
	free, pmaps := mem.Physmem.Pgcount()
	total := len(mem.Physmem.Pgs)
	used := total - free - pmaps
	if used < 0 {
		used = 0
	}
	return uint64(total) * uint64(mem.PGSIZE), uint64(used) * uint64(mem.PGSIZE)
}

func (provider_t) Cmdline() string {
	return cmdline
}

func (provider_t) Version() string {
	return "biscuit32 0.1 i386"
}

func (provider_t) Processes() []procfs.ProcInfo {
	procs := All()
	ret := make([]procfs.ProcInfo, 0, len(procs))
	for _, p := range procs {
		ret = append(ret, procfs.ProcInfo{
			Pid:   int(p.Pid),
			Name:  p.Name,
			State: p.State().String(),
		})
	}
	return ret
}

// Profile renders pid's accounting data as a one-sample pprof profile
// (user/system nanoseconds as two "cpu" sample values), so /proc/<pid>/
// profile serves something pprof itself can parse rather than a bespoke
// text format.
func (provider_t) Profile(pid int) ([]byte, bool) {
	p, ok := Lookup(defs.Pid_t(pid))
	if !ok {
		return nil, false
	}
	p.Acc.Lock()
	userns, sysns := p.Acc.Userns, p.Acc.Sysns
	p.Acc.Unlock()

	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "user", Unit: "nanoseconds"},
			{Type: "sys", Unit: "nanoseconds"},
		},
		Sample: []*profile.Sample{
			{
				Location: nil,
				Value:    []int64{userns, sysns},
				Label:    map[string][]string{"proc": {p.Name}},
			},
		},
		TimeNanos: time.Now().UnixNano(),
	}

	var buf bytes.Buffer
	if err := prof.Write(&buf); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

var cmdline = "root=/dev/sda1"

// SetCmdline records the boot command line procfs's /proc/cmdline serves.
func SetCmdline(s string) {
	cmdline = s
}
