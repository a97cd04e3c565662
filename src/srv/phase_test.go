package srv

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseNeverRegresses(t *testing.T) {
	var p Phase
	assert.Equal(t, PhaseNone, p.Get())

	assert.True(t, p.Advance(PhaseThreadsExiting))
	assert.False(t, p.Advance(PhaseCleanupRequested))
	assert.Equal(t, PhaseThreadsExiting, p.Get())
	assert.True(t, p.AtLeast(PhaseCleanupRequested))
	assert.False(t, p.AtLeast(PhaseStopped))

	assert.True(t, p.Advance(PhaseStopped))
	assert.False(t, p.Advance(PhaseStopped))
	assert.Equal(t, "stopped", p.Get().String())
}

func TestPhaseConcurrentAdvance(t *testing.T) {
	var p Phase
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			//nolint:gosec
			p.Advance(ShutdownPhase(i%3 + 1))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, PhaseStopped, p.Get())
}

func TestActivity(t *testing.T) {
	var a Activity
	snap := a.Get()
	assert.False(t, a.Changed(snap))
	a.Inc()
	assert.True(t, a.Changed(snap))
	assert.Equal(t, snap+1, a.Get())
}

func TestCPUMonitorPercentBounds(t *testing.T) {
	m := NewCPUMonitor()
	m.Sample(m.lastWall.Add(10_000_000))
	pct := m.Percent()
	assert.GreaterOrEqual(t, pct, 0.0)
	assert.LessOrEqual(t, pct, 100.0)
}
