//go:build linux || darwin || freebsd || netbsd || openbsd

package srv

import (
	"time"

	"golang.org/x/sys/unix"
)

func processCPUTime() (time.Duration, bool) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0, false
	}
	return time.Duration(ru.Utime.Nano() + ru.Stime.Nano()), true
}
