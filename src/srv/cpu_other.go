//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package srv

import "time"

// processCPUTime is unavailable here, so spinning is never disabled by
// the CPU high-water mark.
func processCPUTime() (time.Duration, bool) {
	return 0, false
}
