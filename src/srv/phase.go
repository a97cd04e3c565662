package srv

import (
	"sync/atomic"
)

type ShutdownPhase int32

const (
	PhaseNone ShutdownPhase = iota
	// New work is refused and foreground waiters give up.
	PhaseCleanupRequested
	// Background goroutines are being stopped in dependency order.
	PhaseThreadsExiting
	// Every registered goroutine has joined.
	PhaseStopped
)

func (p ShutdownPhase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseCleanupRequested:
		return "cleanup-requested"
	case PhaseThreadsExiting:
		return "threads-exiting"
	case PhaseStopped:
		return "stopped"
	}
	return "unknown"
}

// Phase is the process-wide shutdown state. It only moves forward.
type Phase struct {
	v atomic.Int32
}

func (p *Phase) Get() ShutdownPhase {
	return ShutdownPhase(p.v.Load())
}

// Advance moves the phase to `to` if it is later than the current one and
// reports whether it did.
func (p *Phase) Advance(to ShutdownPhase) bool {
	for {
		cur := p.v.Load()
		if ShutdownPhase(cur) >= to {
			return false
		}
		if p.v.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}

func (p *Phase) AtLeast(ph ShutdownPhase) bool {
	return p.Get() >= ph
}
