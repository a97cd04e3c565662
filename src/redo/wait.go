package redo

import (
	"runtime"
	"time"

	"github.com/Blackdeer1524/redopipe/src/srv"
)

// CPUUsage reports the process's share of the machine in percent.
type CPUUsage interface {
	Percent() float64
}

type waitResult int

const (
	waitSatisfied waitResult = iota
	waitStopped
)

type waitStrategy struct {
	policy WaitPolicy
	cpu    CPUUsage
	// activity enables idle relaxation of the sleep timeout when set.
	activity *srv.Activity
	// spinGate may forbid spinning for reasons of its own.
	spinGate func() bool
}

func (w waitStrategy) canSpin() bool {
	if w.policy.SpinDelay == 0 {
		return false
	}
	if w.cpu != nil && w.policy.CPUHighWater > 0 && w.cpu.Percent() > w.policy.CPUHighWater {
		return false
	}
	if w.spinGate != nil && !w.spinGate() {
		return false
	}
	return true
}

// wait blocks until cond holds or stop does. cond wins when both hold.
func (w waitStrategy) wait(ev *event, cond func() bool, stop func() bool) waitResult {
	if cond() {
		return waitSatisfied
	}

	if w.canSpin() {
		for range w.policy.SpinDelay {
			if cond() {
				return waitSatisfied
			}
			if stop() {
				return waitStopped
			}
			runtime.Gosched()
		}
	}

	relax := w.activity != nil && w.policy.MaxTimeout > w.policy.Timeout
	var seen uint64
	if relax {
		seen = w.activity.Get()
	}

	timeout := w.policy.Timeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		ch := ev.wait()
		if cond() {
			return waitSatisfied
		}
		if stop() {
			return waitStopped
		}

		timer.Reset(timeout)
		select {
		case <-ch:
			continue
		case <-timer.C:
		}

		if !relax {
			continue
		}
		if w.activity.Changed(seen) {
			seen = w.activity.Get()
			timeout = w.policy.Timeout
		} else {
			timeout = min(2*timeout, w.policy.MaxTimeout)
		}
	}
}
