package redo

import (
	"sync"
	"sync/atomic"
)

// event is a resettable broadcast. A waiter arms it with wait(), re-checks
// its condition and then blocks on the returned channel; set() wakes every
// armed waiter. Setters must publish their state change before calling set.
type event struct {
	armed atomic.Bool
	mu    sync.Mutex
	ch    chan struct{}
}

func (e *event) wait() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ch == nil {
		e.ch = make(chan struct{})
	}
	e.armed.Store(true)
	return e.ch
}

func (e *event) set() {
	if !e.armed.Load() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ch != nil {
		close(e.ch)
		e.ch = nil
	}
	e.armed.Store(false)
}
