// Package klog is the kernel's message ring: a fixed-size byte ring every
// subsystem writes through via a logrus.Hook, readable from user space as
// devfs's kmsg node exactly the way dmesg reads /dev/kmsg on Linux.
// Grounded on the teacher's structured-logging idiom (logrus fields per
// subsystem) paired with circbuf's ring-buffer storage, repurposed here
// from a per-pipe buffer into one global kernel-wide log ring.
package klog

import (
	"bytes"
	"sync"

	"github.com/sirupsen/logrus"
)

const ringSize = 256 * 1024

var (
	mu   sync.Mutex
	ring [ringSize]byte
	head int  // next byte to write
	full bool // ring has wrapped at least once
)

// hook_t adapts the ring buffer into a logrus.Hook so every logrus.Logger
// in the kernel can feed it via AddHook, the same way the teacher wires
// structured fields onto its loggers.
type hook_t struct{}

func (hook_t) Levels() []logrus.Level { return logrus.AllLevels }

func (hook_t) Fire(e *logrus.Entry) error {
	line, err := e.String()
	if err != nil {
		return err
	}
	write([]byte(line))
	return nil
}

// Logger is the kernel-wide logrus.Logger every subsystem logs through;
// subsystems attach their own name via Logger.WithField("subsys", name).
var Logger = logrus.New()

func init() {
	Logger.AddHook(hook_t{})
	Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: false})
}

func write(b []byte) {
	mu.Lock()
	defer mu.Unlock()
	for _, c := range b {
		ring[head] = c
		head = (head + 1) % ringSize
		if head == 0 {
			full = true
		}
	}
}

// Printf logs a formatted line at info level, the shorthand most kernel
// call sites use instead of the full logrus field API.
func Printf(format string, args ...interface{}) {
	Logger.Infof(format, args...)
}

// Snapshot returns the ring's contents in chronological order, oldest
// byte first, for kmsg reads.
func Snapshot() []byte {
	mu.Lock()
	defer mu.Unlock()
	if !full {
		out := make([]byte, head)
		copy(out, ring[:head])
		return out
	}
	var buf bytes.Buffer
	buf.Write(ring[head:])
	buf.Write(ring[:head])
	return buf.Bytes()
}
