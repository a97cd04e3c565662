package srv

import (
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// CPUMonitor estimates the share of the machine this process is using.
// Samples are taken by the monitor goroutine; readers never block.
type CPUMonitor struct {
	mu       sync.Mutex
	lastCPU  time.Duration
	lastWall time.Time
	ncpu     int

	pctBits atomic.Uint64
}

func NewCPUMonitor() *CPUMonitor {
	m := &CPUMonitor{
		ncpu:     runtime.NumCPU(),
		lastWall: time.Now(),
	}
	if cpu, ok := processCPUTime(); ok {
		m.lastCPU = cpu
	}
	return m
}

// Percent returns usage in [0, 100] normalized by the number of CPUs.
func (m *CPUMonitor) Percent() float64 {
	return math.Float64frombits(m.pctBits.Load())
}

func (m *CPUMonitor) Sample(now time.Time) {
	cpu, ok := processCPUTime()
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	wall := now.Sub(m.lastWall)
	used := cpu - m.lastCPU
	m.lastWall = now
	m.lastCPU = cpu
	if wall <= 0 || m.ncpu == 0 {
		return
	}

	pct := 100 * float64(used) / (float64(wall) * float64(m.ncpu))
	pct = math.Max(0, math.Min(100, pct))
	m.pctBits.Store(math.Float64bits(pct))
}
